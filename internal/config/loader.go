package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"gitlab.bluewillows.net/root/ddnsweaver/internal/scheduler"
)

// Load reads the configuration file at path, applies DDNSWEAVER_* environment
// overrides and validates the result. All validation problems are reported
// together in a *ValidationError.
func Load(path string) (*Config, error) {
	fileCfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	slog.Debug("loaded configuration file", slog.String("path", path))

	cfg, err := FromFile(fileCfg)
	if err != nil {
		return nil, err
	}
	cfg.Path = path

	return cfg, nil
}

// FromFile converts a parsed file to a validated Config.
func FromFile(fileCfg *FileConfig) (*Config, error) {
	var errs []string

	cfg := fileCfg.globalDefaults()
	errs = append(errs, applyEnvOverrides(cfg)...)
	errs = append(errs, validateLogSettings(cfg.LogLevel, cfg.LogFormat)...)

	if cfg.HealthPort < 0 || cfg.HealthPort > 65535 {
		errs = append(errs, fmt.Sprintf("server.port: must be between 0 and 65535, got %d", cfg.HealthPort))
	}

	loc, err := LoadLocation(cfg.Timezone)
	if err != nil {
		errs = append(errs, fmt.Sprintf("timezone: %v", err))
	}
	cfg.Location = loc

	if cfg.Cron == "" {
		errs = append(errs, "cron: is required")
	} else if schedule, err := scheduler.ParseSchedule(cfg.Cron, loc); err != nil {
		errs = append(errs, fmt.Sprintf("cron: %v", err))
	} else {
		cfg.Schedule = schedule
	}

	seen := make(map[recordKey]string)
	for i, fg := range fileCfg.Domains {
		group, groupErrs := convertGroup(i, fg, seen)
		cfg.Groups = append(cfg.Groups, group)
		errs = append(errs, groupErrs...)
	}

	if rawTTL := cfg.rawIPCacheTTL; rawTTL != "" {
		ttl, err := time.ParseDuration(rawTTL)
		switch {
		case err != nil:
			errs = append(errs, fmt.Sprintf("ip_cache_ttl: invalid duration %q (use format like 30s, 5m)", rawTTL))
		case ttl < 0:
			errs = append(errs, "ip_cache_ttl: must not be negative")
		default:
			cfg.IPCacheTTL = ttl
		}
	} else {
		cfg.IPCacheTTL = DefaultIPCacheTTL(cfg.TotalFamilies())
	}

	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	return &cfg.Config, nil
}

// loadState is a Config under construction plus raw values still to be parsed.
type loadState struct {
	Config
	rawIPCacheTTL string
}

// globalDefaults returns file values layered over the package defaults.
func (c *FileConfig) globalDefaults() *loadState {
	s := &loadState{
		Config: Config{
			Cron:       strings.TrimSpace(c.Cron),
			Timezone:   DefaultTimezone,
			LogLevel:   DefaultLogLevel,
			LogFormat:  DefaultLogFormat,
			HealthPort: DefaultHealthPort,
		},
		rawIPCacheTTL: strings.TrimSpace(c.IPCacheTTL),
	}

	if tz := strings.TrimSpace(c.Timezone); tz != "" {
		s.Timezone = tz
	}

	if c.Log != nil {
		if c.Log.Level != "" {
			s.LogLevel = strings.ToLower(c.Log.Level)
		}
		if c.Log.Format != "" {
			s.LogFormat = strings.ToLower(c.Log.Format)
		}
	}

	if c.Server != nil {
		s.HealthPort = c.Server.Port
	}

	return s
}

// applyEnvOverrides merges environment variable overrides into s.
// Environment variables always take precedence over file config.
func applyEnvOverrides(s *loadState) []string {
	var errs []string

	if v := getEnv(EnvLogLevel); v != "" {
		s.LogLevel = strings.ToLower(v)
	}
	if v := getEnv(EnvLogFormat); v != "" {
		s.LogFormat = strings.ToLower(v)
	}
	if v := getEnv(EnvCron); v != "" {
		s.Cron = v
	}
	if v := getEnv(EnvTimezone); v != "" {
		s.Timezone = v
	}
	if v := getEnv(EnvIPCacheTTL); v != "" {
		s.rawIPCacheTTL = v
	}
	if v := getEnv(EnvHealthPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: invalid integer %q", EnvHealthPort, v))
		} else {
			s.HealthPort = port
		}
	}

	return errs
}

// LoadLocation resolves a timezone setting. Besides IANA names it accepts
// "Local", "UTC" and fixed offsets such as "+02:00" or "-0530".
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "" || strings.EqualFold(name, "local"):
		return time.Local, nil
	case strings.EqualFold(name, "utc"):
		return time.UTC, nil
	case strings.HasPrefix(name, "+") || strings.HasPrefix(name, "-"):
		for _, layout := range []string{"-07:00", "-0700", "-07"} {
			if t, err := time.Parse(layout, name); err == nil {
				_, offset := t.Zone()
				return time.FixedZone(name, offset), nil
			}
		}
		return nil, fmt.Errorf("invalid UTC offset %q (use a form like +02:00)", name)
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}
