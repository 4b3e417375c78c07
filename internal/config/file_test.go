package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInterpolateEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "test-value")
	t.Setenv("API_TOKEN", "secret123")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple variable",
			input:    "${TEST_VAR}",
			expected: "test-value",
		},
		{
			name:     "variable in string",
			input:    "prefix-${TEST_VAR}-suffix",
			expected: "prefix-test-value-suffix",
		},
		{
			name:     "multiple variables",
			input:    "${TEST_VAR}:${API_TOKEN}",
			expected: "test-value:secret123",
		},
		{
			name:     "unset variable",
			input:    "${NONEXISTENT_VAR}",
			expected: "",
		},
		{
			name:     "default value",
			input:    "${NONEXISTENT_VAR:-default}",
			expected: "default",
		},
		{
			name:     "default value not used when set",
			input:    "${TEST_VAR:-default}",
			expected: "test-value",
		},
		{
			name:     "no variables",
			input:    "plain string",
			expected: "plain string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := InterpolateEnvVars(tt.input)
			if result != tt.expected {
				t.Errorf("InterpolateEnvVars(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

const sampleTOML = `
cron = "*/5 * * * *"
timezone = "UTC"

[log]
level = "debug"
format = "json"

[server]
port = 9090

[[domains]]
resolver = "icanhazip"

[domains.config.cloudflare]
auth_token = "${TEST_CF_TOKEN}"
zone_id = "zone-1"

[[domains.cloudflare]]
name = "home.example.com"
ttl = 60
type = ["A", "AAAA"]

[[domains.cloudflare]]
name = "vpn.example.com"
type = "A"
proxied = true
`

func TestParse_TOML(t *testing.T) {
	t.Setenv("TEST_CF_TOKEN", "secret-from-env")

	cfg, err := Parse([]byte(sampleTOML), FormatTOML)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Cron != "*/5 * * * *" {
		t.Errorf("unexpected cron %q", cfg.Cron)
	}
	if cfg.Log == nil || cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("unexpected log settings: %+v", cfg.Log)
	}
	if cfg.Server == nil || cfg.Server.Port != 9090 {
		t.Errorf("unexpected server settings: %+v", cfg.Server)
	}
	if len(cfg.Domains) != 1 {
		t.Fatalf("expected 1 group, got %d", len(cfg.Domains))
	}

	g := cfg.Domains[0]
	if g.Resolver != "icanhazip" {
		t.Errorf("unexpected resolver %q", g.Resolver)
	}
	if g.Config.Cloudflare == nil || g.Config.Cloudflare.AuthToken != "secret-from-env" {
		t.Errorf("expected interpolated token, got %+v", g.Config.Cloudflare)
	}
	if len(g.Cloudflare) != 2 {
		t.Fatalf("expected 2 records, got %d", len(g.Cloudflare))
	}

	home := g.Cloudflare[0]
	if home.TTL == nil || *home.TTL != 60 {
		t.Errorf("expected ttl 60, got %v", home.TTL)
	}
	if len(home.Type) != 2 || home.Type[0] != "A" || home.Type[1] != "AAAA" {
		t.Errorf("unexpected types %v", home.Type)
	}

	vpn := g.Cloudflare[1]
	if vpn.TTL != nil {
		t.Errorf("expected unset ttl, got %d", *vpn.TTL)
	}
	if len(vpn.Type) != 1 || vpn.Type[0] != "A" {
		t.Errorf("expected single type string to decode as a list, got %v", vpn.Type)
	}
	if !vpn.Proxied {
		t.Error("expected proxied = true")
	}
}

func TestParse_TOMLUnknownKey(t *testing.T) {
	data := `
cron = "* * * * *"
crone = "typo"
`
	_, err := Parse([]byte(data), FormatTOML)
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "crone") {
		t.Errorf("expected error to name the unknown key, got %v", err)
	}
}

func TestParse_TOMLInvalidType(t *testing.T) {
	data := `
cron = "* * * * *"
[[domains]]
[[domains.cloudflare]]
name = "a.example.com"
type = 4
`
	if _, err := Parse([]byte(data), FormatTOML); err == nil {
		t.Fatal("expected error for numeric record type")
	}
}

func TestParse_YAML(t *testing.T) {
	data := `
cron: "0 * * * *"
domains:
  - resolver: opendns
    config:
      cloudflare:
        auth_token: tok
        zone: example.com
    cloudflare:
      - name: home.example.com
        type: [A, AAAA]
      - name: v6.example.com
        type: AAAA
        ttl: 120
`
	cfg, err := Parse([]byte(data), FormatYAML)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(cfg.Domains) != 1 || len(cfg.Domains[0].Cloudflare) != 2 {
		t.Fatalf("unexpected domains: %+v", cfg.Domains)
	}
	records := cfg.Domains[0].Cloudflare
	if len(records[0].Type) != 2 {
		t.Errorf("expected 2 types, got %v", records[0].Type)
	}
	if len(records[1].Type) != 1 || records[1].Type[0] != "AAAA" {
		t.Errorf("expected [AAAA], got %v", records[1].Type)
	}
	if records[1].TTL == nil || *records[1].TTL != 120 {
		t.Errorf("expected ttl 120, got %v", records[1].TTL)
	}
	if cfg.Domains[0].Config.Cloudflare.Zone != "example.com" {
		t.Errorf("unexpected zone %q", cfg.Domains[0].Config.Cloudflare.Zone)
	}
}

func TestParse_YAMLUnknownKey(t *testing.T) {
	data := `
cron: "* * * * *"
domains:
  - resolvr: ipify
`
	if _, err := Parse([]byte(data), FormatYAML); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestParse_EmptyYAML(t *testing.T) {
	cfg, err := Parse(nil, FormatYAML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Cron != "" || len(cfg.Domains) != 0 {
		t.Errorf("expected empty config, got %+v", cfg)
	}
}

func TestFormatForPath(t *testing.T) {
	tests := map[string]Format{
		"config.toml":         FormatTOML,
		"config.yaml":         FormatYAML,
		"/etc/ddns/conf.YML":  FormatYAML,
		"config":              FormatTOML,
		"/run/config.tml.bak": FormatTOML,
	}

	for path, want := range tests {
		if got := FormatForPath(path); got != want {
			t.Errorf("FormatForPath(%q) = %s, want %s", path, got, want)
		}
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("TEST_CF_TOKEN", "tok")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(sampleTOML), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if len(cfg.Domains) != 1 {
		t.Errorf("expected 1 group, got %d", len(cfg.Domains))
	}
}

func TestLoadFile_NotFound(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
