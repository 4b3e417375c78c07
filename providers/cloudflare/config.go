package cloudflare

import (
	"errors"
	"fmt"
	"strings"

	"gitlab.bluewillows.net/root/ddnsweaver/pkg/provider"
)

// Setting names reported in *provider.ConfigError.
const (
	FieldToken  = "auth_token"
	FieldZoneID = "zone_id"
	FieldZone   = "zone"
)

// TTL bounds enforced by Cloudflare. TTLAutomatic lets Cloudflare pick (300s, or
// whatever the proxy dictates for proxied records).
const (
	TTLAutomatic = 1
	MinTTL       = 60
	MaxTTL       = 86400
)

// Config holds the credential and zone of one Cloudflare record group.
type Config struct {
	Token  string // API token (Bearer authentication)
	ZoneID string // Zone ID (optional if Zone is set)
	Zone   string // Zone name for lookup (used if ZoneID is empty)
}

// Validate checks the credential and zone. Every problem is reported as a
// *provider.ConfigError; several problems are joined.
func (c *Config) Validate() error {
	var errs []error

	if c.Token == "" {
		errs = append(errs, provider.ErrConfigMissing(FieldToken))
	}
	switch {
	case c.ZoneID == "" && c.Zone == "":
		errs = append(errs, provider.ErrConfigMissing(FieldZoneID))
	case c.ZoneID == "" && !strings.Contains(strings.Trim(c.Zone, "."), "."):
		errs = append(errs, provider.ErrConfigInvalid(FieldZone, c.Zone, "must be a domain name such as example.com"))
	}

	return errors.Join(errs...)
}

// ValidateTTL checks a record TTL against Cloudflare's accepted range.
func ValidateTTL(ttl int) error {
	if ttl == TTLAutomatic {
		return nil
	}
	if ttl < MinTTL || ttl > MaxTTL {
		return fmt.Errorf("ttl %d must be %d (automatic) or between %d and %d seconds", ttl, TTLAutomatic, MinTTL, MaxTTL)
	}
	return nil
}

// configFromMap builds a Config from the registry's string map.
// Recognised keys: TOKEN, ZONE_ID, ZONE.
func configFromMap(m map[string]string) *Config {
	return &Config{
		Token:  strings.TrimSpace(m["TOKEN"]),
		ZoneID: strings.TrimSpace(m["ZONE_ID"]),
		Zone:   strings.TrimSpace(m["ZONE"]),
	}
}

// ToMap renders c in the form accepted by Factory.
func (c *Config) ToMap() map[string]string {
	m := map[string]string{"TOKEN": c.Token}
	if c.ZoneID != "" {
		m["ZONE_ID"] = c.ZoneID
	}
	if c.Zone != "" {
		m["ZONE"] = c.Zone
	}
	return m
}
