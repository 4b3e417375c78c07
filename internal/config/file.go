package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FileConfig represents the configuration file structure.
// TOML is the primary format; YAML files use the same keys.
type FileConfig struct {
	// Cron is a five-field cron expression for recurring mode.
	Cron string `toml:"cron" yaml:"cron"`

	// Timezone the cron expression is evaluated in: an IANA name, "Local", "UTC" or an offset like "+02:00".
	Timezone string `toml:"timezone" yaml:"timezone,omitempty"`

	// IPCacheTTL is a Go duration ("30s"). Unset means 2s per configured family.
	IPCacheTTL string `toml:"ip_cache_ttl" yaml:"ip_cache_ttl,omitempty"`

	Log    *FileLogConfig    `toml:"log" yaml:"log,omitempty"`
	Server *FileServerConfig `toml:"server" yaml:"server,omitempty"`

	Domains []FileDomainGroup `toml:"domains" yaml:"domains"`
}

// FileLogConfig holds logging settings.
type FileLogConfig struct {
	Level  string `toml:"level" yaml:"level,omitempty"`   // debug, info, warn, error
	Format string `toml:"format" yaml:"format,omitempty"` // json, text
}

// FileServerConfig holds health/metrics server settings.
type FileServerConfig struct {
	Port int `toml:"port" yaml:"port,omitempty"`
}

// FileDomainGroup is one [[domains]] entry.
type FileDomainGroup struct {
	Resolver   string          `toml:"resolver" yaml:"resolver,omitempty"`
	Config     FileGroupConfig `toml:"config" yaml:"config,omitempty"`
	Cloudflare []FileRecord    `toml:"cloudflare" yaml:"cloudflare,omitempty"`
}

// FileGroupConfig holds the provider credentials of a group.
type FileGroupConfig struct {
	Cloudflare *FileCloudflareConfig `toml:"cloudflare" yaml:"cloudflare,omitempty"`
}

// FileCloudflareConfig holds a Cloudflare API token and zone.
type FileCloudflareConfig struct {
	AuthToken     string `toml:"auth_token" yaml:"auth_token,omitempty"`
	AuthTokenFile string `toml:"auth_token_file" yaml:"auth_token_file,omitempty"` // Docker secrets pattern
	ZoneID        string `toml:"zone_id" yaml:"zone_id,omitempty"`
	Zone          string `toml:"zone" yaml:"zone,omitempty"` // resolved to an id at first use
}

// FileRecord is one [[domains.cloudflare]] entry.
type FileRecord struct {
	Name    string      `toml:"name" yaml:"name"`
	TTL     *int        `toml:"ttl" yaml:"ttl,omitempty"` // unset means automatic
	Type    RecordTypes `toml:"type" yaml:"type"`
	Proxied bool        `toml:"proxied" yaml:"proxied,omitempty"`
}

// RecordTypes accepts either a single type ("A") or a list (["A", "AAAA"]).
type RecordTypes []string

// UnmarshalTOML implements toml.Unmarshaler.
func (t *RecordTypes) UnmarshalTOML(v interface{}) error {
	switch v := v.(type) {
	case string:
		*t = RecordTypes{v}
	case []interface{}:
		types := make(RecordTypes, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("record type must be a string, got %T", item)
			}
			types = append(types, s)
		}
		*t = types
	default:
		return fmt.Errorf("record type must be a string or a list of strings, got %T", v)
	}
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *RecordTypes) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*t = RecordTypes{s}
	case yaml.SequenceNode:
		var types []string
		if err := node.Decode(&types); err != nil {
			return err
		}
		*t = types
	default:
		return fmt.Errorf("line %d: record type must be a string or a list of strings", node.Line)
	}
	return nil
}

// envVarPattern matches ${VAR} or ${VAR:-default} syntax.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// InterpolateEnvVars replaces ${VAR} patterns with environment variable values.
// Supports ${VAR:-default} syntax for default values.
func InterpolateEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 3 {
			defaultValue = groups[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// interpolateEnvVars interpolates environment variables in every string field.
func (c *FileConfig) interpolateEnvVars() {
	c.Cron = InterpolateEnvVars(c.Cron)
	c.Timezone = InterpolateEnvVars(c.Timezone)
	c.IPCacheTTL = InterpolateEnvVars(c.IPCacheTTL)

	if c.Log != nil {
		c.Log.Level = InterpolateEnvVars(c.Log.Level)
		c.Log.Format = InterpolateEnvVars(c.Log.Format)
	}

	for i := range c.Domains {
		g := &c.Domains[i]
		g.Resolver = InterpolateEnvVars(g.Resolver)
		if cf := g.Config.Cloudflare; cf != nil {
			cf.AuthToken = InterpolateEnvVars(cf.AuthToken)
			cf.AuthTokenFile = InterpolateEnvVars(cf.AuthTokenFile)
			cf.ZoneID = InterpolateEnvVars(cf.ZoneID)
			cf.Zone = InterpolateEnvVars(cf.Zone)
		}
		for j := range g.Cloudflare {
			r := &g.Cloudflare[j]
			r.Name = InterpolateEnvVars(r.Name)
			for k := range r.Type {
				r.Type[k] = InterpolateEnvVars(r.Type[k])
			}
		}
	}
}

// Format identifies a configuration file syntax.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatForPath picks the file format from the extension. Anything that is not
// .yaml or .yml is read as TOML.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// LoadFile reads and parses a configuration file.
// Environment variables in ${VAR} format are interpolated.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data, FormatForPath(path))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes data in the given format. Unknown keys are rejected.
func Parse(data []byte, format Format) (*FileConfig, error) {
	var cfg FileConfig

	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	default:
		meta, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, fmt.Errorf("parsing TOML config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			sort.Strings(keys)
			return nil, fmt.Errorf("parsing TOML config: unknown keys: %s", strings.Join(keys, ", "))
		}
	}

	cfg.interpolateEnvVars()

	return &cfg, nil
}
