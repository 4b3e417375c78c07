package config

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables read by the loader.
const (
	EnvConfig          = "DDNSWEAVER_CONFIG"
	EnvLogLevel        = "DDNSWEAVER_LOG_LEVEL"
	EnvLogFormat       = "DDNSWEAVER_LOG_FORMAT"
	EnvCron            = "DDNSWEAVER_CRON"
	EnvTimezone        = "DDNSWEAVER_TIMEZONE"
	EnvIPCacheTTL      = "DDNSWEAVER_IP_CACHE_TTL"
	EnvHealthPort      = "DDNSWEAVER_HEALTH_PORT"
	EnvCloudflareToken = "DDNSWEAVER_CLOUDFLARE_TOKEN"
)

// getEnv retrieves an environment variable value, trimmed of surrounding whitespace.
func getEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// getEnvOrFile retrieves a value from either a direct environment variable
// or a file path specified by the file key (Docker secrets pattern).
//
// If both are set, the file takes precedence.
// The file contents are trimmed of leading/trailing whitespace.
func getEnvOrFile(directKey, fileKey string) (string, error) {
	if filePath := getEnv(fileKey); filePath != "" {
		value, err := readSecretFile(filePath)
		if err != nil {
			return "", fmt.Errorf("%s: %w", fileKey, err)
		}
		return value, nil
	}

	return getEnv(directKey), nil
}

// resolveSecret returns the contents of file when set, otherwise value.
func resolveSecret(value, file string) (string, error) {
	if file != "" {
		return readSecretFile(file)
	}
	return strings.TrimSpace(value), nil
}

// readSecretFile reads a secret from path, trimming surrounding whitespace.
func readSecretFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading secret file: %w", err)
	}
	return strings.TrimSpace(string(content)), nil
}

// ResolvePath returns the configuration file to load: the explicit path when
// given, then DDNSWEAVER_CONFIG, then DefaultPath.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if v := getEnv(EnvConfig); v != "" {
		return v
	}
	return DefaultPath
}
