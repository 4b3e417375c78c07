package ip

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/miekg/dns"
)

// OpenDNS answers queries for this name with the address the query came from.
const (
	OpenDNSQueryName  = "myip.opendns.com."
	OpenDNSIPv4Server = "208.67.222.222:53"
	OpenDNSIPv6Server = "[2620:119:35::35]:53"
)

// DefaultDNSTimeout bounds one DNS exchange.
const DefaultDNSTimeout = 5 * time.Second

// DNSResolver discovers the public address by asking a resolver that echoes the
// querying address back, one server per family.
type DNSResolver struct {
	strategy  Strategy
	queryName string
	servers   map[Family]string
	client    *dns.Client
	cache     *Cache
	logger    *slog.Logger
}

// DNSOption is a functional option for configuring the DNSResolver.
type DNSOption func(*DNSResolver)

// WithDNSLogger sets a custom logger.
func WithDNSLogger(logger *slog.Logger) DNSOption {
	return func(r *DNSResolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithDNSServer overrides the server ("host:port") queried for one family.
func WithDNSServer(f Family, server string) DNSOption {
	return func(r *DNSResolver) {
		r.servers[f] = server
	}
}

// WithQueryName overrides the echo name.
func WithQueryName(name string) DNSOption {
	return func(r *DNSResolver) {
		r.queryName = dns.Fqdn(name)
	}
}

// NewDNSResolver creates a resolver using the OpenDNS echo service.
func NewDNSResolver(cache *Cache, opts ...DNSOption) *DNSResolver {
	r := &DNSResolver{
		strategy:  StrategyOpenDNS,
		queryName: OpenDNSQueryName,
		servers: map[Family]string{
			IPv4: OpenDNSIPv4Server,
			IPv6: OpenDNSIPv6Server,
		},
		client: &dns.Client{Net: "udp", Timeout: DefaultDNSTimeout},
		cache:  cache,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Resolve implements Resolver.
func (r *DNSResolver) Resolve(ctx context.Context, f Family) (netip.Addr, error) {
	return cachedResolve(ctx, r.cache, r.strategy, f, r.logger, r.lookup)
}

func (r *DNSResolver) lookup(ctx context.Context, f Family) (netip.Addr, error) {
	server, ok := r.servers[f]
	if !ok || server == "" {
		return netip.Addr{}, fmt.Errorf("no DNS server configured for %s", f)
	}

	qtype := dns.TypeA
	if f == IPv6 {
		qtype = dns.TypeAAAA
	}

	m := new(dns.Msg)
	m.SetQuestion(r.queryName, qtype)
	m.RecursionDesired = false

	in, _, err := r.client.ExchangeContext(ctx, m, server)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("querying %s: %w", server, err)
	}
	if in.Rcode != dns.RcodeSuccess {
		return netip.Addr{}, fmt.Errorf("querying %s: %w: rcode %s", server, ErrNoAnswer, dns.RcodeToString[in.Rcode])
	}

	for _, rr := range in.Answer {
		var raw string
		switch v := rr.(type) {
		case *dns.A:
			if f != IPv4 {
				continue
			}
			raw = v.A.String()
		case *dns.AAAA:
			if f != IPv6 {
				continue
			}
			raw = v.AAAA.String()
		default:
			continue
		}
		return ParseAddr(f, raw)
	}

	return netip.Addr{}, fmt.Errorf("querying %s: %w", server, ErrNoAnswer)
}
