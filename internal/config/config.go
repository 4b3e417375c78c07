// Package config loads and validates ddnsweaver configuration files.
package config

import (
	"time"

	"gitlab.bluewillows.net/root/ddnsweaver/internal/ip"
	"gitlab.bluewillows.net/root/ddnsweaver/internal/scheduler"
	"gitlab.bluewillows.net/root/ddnsweaver/providers/cloudflare"
)

// Defaults applied when neither the file nor the environment sets a value.
const (
	DefaultPath       = "config.toml"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
	DefaultHealthPort = 0
	DefaultTimezone   = "Local"

	// ipCacheTTLPerFamily is the default cache lifetime contributed by each
	// configured record family, so a full pass shares one lookup per family.
	ipCacheTTLPerFamily = 2 * time.Second
)

// Config is the validated runtime configuration.
type Config struct {
	// Path is the file the configuration was loaded from.
	Path string

	// Scheduling
	Cron     string
	Schedule *scheduler.Schedule
	Timezone string
	Location *time.Location

	// IPCacheTTL is how long a resolved address is reused.
	IPCacheTTL time.Duration

	// Logging
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text

	// HealthPort serves /health, /ready and /metrics in recurring mode. 0 disables it.
	HealthPort int

	Groups []Group
}

// Group is a set of records sharing one resolver strategy and one credential.
type Group struct {
	Index    int
	Resolver ip.Strategy

	// Cloudflare is nil when the group declares no credential.
	Cloudflare *cloudflare.Config

	Records []Record
}

// Record is one DNS name kept in sync for one or more address families.
type Record struct {
	Name     string
	TTL      int
	Proxied  bool
	Families []ip.Family
}

// TotalRecords returns the number of configured records across all groups.
func (c *Config) TotalRecords() int {
	n := 0
	for _, g := range c.Groups {
		n += len(g.Records)
	}
	return n
}

// TotalFamilies returns the number of (record, family) pairs across all groups.
func (c *Config) TotalFamilies() int {
	n := 0
	for _, g := range c.Groups {
		for _, r := range g.Records {
			n += len(r.Families)
		}
	}
	return n
}

// DefaultIPCacheTTL returns the cache lifetime used when ip_cache_ttl is unset.
func DefaultIPCacheTTL(families int) time.Duration {
	if families < 1 {
		families = 1
	}
	return time.Duration(families) * ipCacheTTLPerFamily
}
