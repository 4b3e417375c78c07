// Package httputil provides the shared HTTP client used for provider and IP lookup traffic.
package httputil

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Default HTTP client configuration values.
const (
	// DefaultTimeout bounds every request end to end, including reading the body.
	// Neither the provider calls nor the IP lookups layer another timeout on top.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent is used when no custom user agent is specified.
	DefaultUserAgent = "ddnsweaver/1.0"
)

// ClientConfig contains configuration for creating an HTTP client.
type ClientConfig struct {
	// Timeout is the HTTP client timeout. Defaults to DefaultTimeout.
	Timeout time.Duration

	// UserAgent is the User-Agent header to set on requests.
	UserAgent string

	// Network pins outbound connections to one address family:
	// "tcp4", "tcp6", or empty for whatever the resolver returns.
	// IP lookup services report the address the request arrived from,
	// so the family of the connection decides the family of the answer.
	Network string

	// Logger enables debug logging for HTTP requests.
	// If nil, no debug logging is performed.
	Logger *slog.Logger
}

// userAgentTransport wraps an http.RoundTripper to add User-Agent header
// and optionally log requests at debug level.
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
	logger    *slog.Logger
}

// RoundTrip implements http.RoundTripper.
func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" && t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	start := time.Now()
	resp, err := t.base.RoundTrip(req)

	if t.logger != nil {
		attrs := []any{
			slog.String("method", req.Method),
			slog.String("host", req.URL.Host),
			slog.String("path", req.URL.Path),
			slog.Duration("duration", time.Since(start)),
		}
		if resp != nil {
			attrs = append(attrs, slog.Int("status", resp.StatusCode))
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		t.logger.Debug("HTTP round trip", attrs...)
	}

	return resp, err
}

// NewClient creates an HTTP client with the specified configuration.
// If cfg is nil, defaults are used.
func NewClient(cfg *ClientConfig) *http.Client {
	if cfg == nil {
		cfg = &ClientConfig{}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	var base http.RoundTripper = http.DefaultTransport
	if cfg.Network != "" {
		base = familyTransport(cfg.Network)
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &userAgentTransport{
			base:      base,
			userAgent: userAgent,
			logger:    cfg.Logger,
		},
	}
}

// familyTransport clones the default transport and forces every dial onto network.
func familyTransport(network string) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DialContext = func(ctx context.Context, _, addr string) (net.Conn, error) {
		return dialer.DialContext(ctx, network, addr)
	}
	return t
}
