package config

import (
	"errors"
	"fmt"
	"strings"

	"gitlab.bluewillows.net/root/ddnsweaver/internal/ip"
	"gitlab.bluewillows.net/root/ddnsweaver/pkg/provider"
	"gitlab.bluewillows.net/root/ddnsweaver/providers/cloudflare"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration error: %s", e.Errors[0])
	}
	return fmt.Sprintf("configuration errors:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// recordKey identifies one managed (name, type) pair across all groups.
type recordKey struct {
	name   string
	family ip.Family
}

// convertGroup validates one [[domains]] entry and converts it to a Group.
// seen tracks (name, family) pairs already claimed by earlier groups.
func convertGroup(index int, fg FileDomainGroup, seen map[recordKey]string) (Group, []string) {
	var errs []string
	prefix := fmt.Sprintf("domains[%d]", index)

	g := Group{Index: index}

	strategy, err := ip.ParseStrategy(fg.Resolver)
	if err != nil {
		errs = append(errs, fmt.Sprintf("%s.resolver: %v", prefix, err))
	}
	g.Resolver = strategy

	if fg.Config.Cloudflare != nil {
		cf, cfErrs := convertCloudflare(prefix+".config.cloudflare", fg.Config.Cloudflare)
		g.Cloudflare = cf
		errs = append(errs, cfErrs...)
	} else if len(fg.Cloudflare) > 0 {
		errs = append(errs, fmt.Sprintf("%s: cloudflare records require a [config.cloudflare] credential", prefix))
	}

	for i, fr := range fg.Cloudflare {
		rec, recErrs := convertRecord(fmt.Sprintf("%s.cloudflare[%d]", prefix, i), fr, seen)
		errs = append(errs, recErrs...)
		g.Records = append(g.Records, rec)
	}

	return g, errs
}

// convertCloudflare resolves the token and checks the credential is usable.
func convertCloudflare(prefix string, fc *FileCloudflareConfig) (*cloudflare.Config, []string) {
	var errs []string

	if fc.AuthToken != "" && fc.AuthTokenFile != "" {
		errs = append(errs, fmt.Sprintf("%s: cannot set both auth_token and auth_token_file", prefix))
	}

	token, err := resolveSecret(fc.AuthToken, fc.AuthTokenFile)
	if err != nil {
		errs = append(errs, fmt.Sprintf("%s.auth_token_file: %v", prefix, err))
	}
	if token == "" && fc.AuthTokenFile == "" {
		token, err = getEnvOrFile(EnvCloudflareToken, EnvCloudflareToken+"_FILE")
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", prefix, err))
		}
	}

	cf := &cloudflare.Config{
		Token:  token,
		ZoneID: strings.TrimSpace(fc.ZoneID),
		Zone:   normalizeName(fc.Zone),
	}

	for _, ce := range configErrors(cf.Validate()) {
		switch ce.Field {
		case cloudflare.FieldToken:
			// An unreadable token file has already been reported.
			if err == nil {
				errs = append(errs, fmt.Sprintf("%s.%s (or auth_token_file, or %s)", prefix, ce, EnvCloudflareToken))
			}
		case cloudflare.FieldZoneID:
			errs = append(errs, fmt.Sprintf("%s.%s (or zone)", prefix, ce))
		default:
			errs = append(errs, fmt.Sprintf("%s.%s", prefix, ce))
		}
	}

	return cf, errs
}

// configErrors unpacks the provider settings errors contained in err.
func configErrors(err error) []*provider.ConfigError {
	if err == nil {
		return nil
	}

	parts := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		parts = joined.Unwrap()
	}

	var out []*provider.ConfigError
	for _, part := range parts {
		var ce *provider.ConfigError
		if errors.As(part, &ce) {
			out = append(out, ce)
		}
	}
	return out
}

// convertRecord validates one record entry.
func convertRecord(prefix string, fr FileRecord, seen map[recordKey]string) (Record, []string) {
	var errs []string

	rec := Record{
		Name:    normalizeName(fr.Name),
		TTL:     cloudflare.TTLAutomatic,
		Proxied: fr.Proxied,
	}

	if rec.Name == "" {
		errs = append(errs, fmt.Sprintf("%s.name: is required", prefix))
	} else {
		prefix = fmt.Sprintf("%s (%s)", prefix, rec.Name)
	}

	if fr.TTL != nil {
		rec.TTL = *fr.TTL
		if err := cloudflare.ValidateTTL(rec.TTL); err != nil {
			errs = append(errs, fmt.Sprintf("%s.ttl: %v", prefix, err))
		}
	}

	if len(fr.Type) == 0 {
		errs = append(errs, fmt.Sprintf("%s.type: at least one of A or AAAA is required", prefix))
	}

	families := make(map[ip.Family]bool, len(fr.Type))
	for _, t := range fr.Type {
		f, err := ip.ParseFamily(t)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s.type: %v", prefix, err))
			continue
		}

		if families[f] {
			errs = append(errs, fmt.Sprintf("%s.type: duplicate record type %s", prefix, f.RecordType()))
			continue
		}
		families[f] = true
		rec.Families = append(rec.Families, f)

		if rec.Name == "" {
			continue
		}
		key := recordKey{name: rec.Name, family: f}
		if other, ok := seen[key]; ok {
			errs = append(errs, fmt.Sprintf("%s: %s record already managed by %s", prefix, f.RecordType(), other))
		} else {
			seen[key] = prefix
		}
	}

	return rec, errs
}

// normalizeName lower-cases a DNS name and strips a trailing dot.
func normalizeName(name string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
}

// validateLogSettings checks level and format values.
func validateLogSettings(level, format string) []string {
	var errs []string

	switch level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level: invalid value %q (must be debug, info, warn, or error)", level))
	}

	switch format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("log.format: invalid value %q (must be json or text)", format))
	}

	return errs
}
