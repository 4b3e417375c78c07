package ip

import (
	"fmt"
	"log/slog"
	"strings"
)

// Strategy selects how a record group discovers its public address.
type Strategy int

const (
	// StrategyIpify queries api.ipify.org / api6.ipify.org. This is the default.
	StrategyIpify Strategy = iota
	// StrategyIcanhazip queries ipv4.icanhazip.com / ipv6.icanhazip.com.
	StrategyIcanhazip
	// StrategyOpenDNS queries myip.opendns.com against the OpenDNS resolvers.
	StrategyOpenDNS
	// StrategyCustom labels web resolvers built with caller supplied URLs.
	StrategyCustom
)

// String returns the configuration name of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyIpify:
		return "ipify"
	case StrategyIcanhazip:
		return "icanhazip"
	case StrategyOpenDNS:
		return "opendns"
	case StrategyCustom:
		return "custom"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy converts a configuration value to a Strategy.
// An empty value selects ipify.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ipify", "ipfiy":
		return StrategyIpify, nil
	case "icanhazip":
		return StrategyIcanhazip, nil
	case "opendns":
		return StrategyOpenDNS, nil
	default:
		return 0, fmt.Errorf("unknown resolver %q (must be ipify, icanhazip, or opendns)", s)
	}
}

// NewResolver builds the Resolver for strategy on top of cache.
func NewResolver(strategy Strategy, cache *Cache, logger *slog.Logger) (Resolver, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch strategy {
	case StrategyIpify:
		r := NewWebResolver(cache, IpifyIPv4URL, IpifyIPv6URL, WithWebLogger(logger))
		r.strategy = StrategyIpify
		return r, nil
	case StrategyIcanhazip:
		r := NewWebResolver(cache, IcanhazipIPv4URL, IcanhazipIPv6URL, WithWebLogger(logger))
		r.strategy = StrategyIcanhazip
		return r, nil
	case StrategyOpenDNS:
		return NewDNSResolver(cache, WithDNSLogger(logger)), nil
	default:
		return nil, fmt.Errorf("resolver strategy %s cannot be built without explicit endpoints", strategy)
	}
}
