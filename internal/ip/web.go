package ip

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"

	"gitlab.bluewillows.net/root/ddnsweaver/pkg/httputil"
)

// Well-known lookup endpoints. Each answers with the caller's address as plain text.
const (
	IpifyIPv4URL     = "https://api.ipify.org"
	IpifyIPv6URL     = "https://api6.ipify.org"
	IcanhazipIPv4URL = "https://ipv4.icanhazip.com"
	IcanhazipIPv6URL = "https://ipv6.icanhazip.com"
)

// maxBodySize caps how much of a lookup response is read.
const maxBodySize = 4 << 10

// WebResolver looks up the public address from an HTTP service, one URL per family.
//
// The service must answer 2xx with the address either as the first line of a
// plain-text body or as the "ip" field of a JSON object.
type WebResolver struct {
	strategy Strategy
	urls     map[Family]string
	clients  map[Family]*http.Client
	cache    *Cache
	logger   *slog.Logger
}

// WebOption is a functional option for configuring the WebResolver.
type WebOption func(*WebResolver)

// WithWebLogger sets a custom logger.
func WithWebLogger(logger *slog.Logger) WebOption {
	return func(r *WebResolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithURL overrides the lookup URL for one family.
func WithURL(f Family, url string) WebOption {
	return func(r *WebResolver) {
		r.urls[f] = url
	}
}

// WithHTTPClient uses client for every family instead of the family-pinned defaults.
func WithHTTPClient(client *http.Client) WebOption {
	return func(r *WebResolver) {
		for _, f := range Families {
			r.clients[f] = client
		}
	}
}

// NewWebResolver creates a resolver backed by the given per-family URLs.
// Requests for each family are dialed over that family only, so a dual-stack
// host cannot get its IPv6 address back from the IPv4 endpoint or vice versa.
func NewWebResolver(cache *Cache, ipv4URL, ipv6URL string, opts ...WebOption) *WebResolver {
	r := &WebResolver{
		strategy: StrategyCustom,
		urls: map[Family]string{
			IPv4: ipv4URL,
			IPv6: ipv6URL,
		},
		clients: map[Family]*http.Client{
			IPv4: httputil.NewClient(&httputil.ClientConfig{Network: "tcp4"}),
			IPv6: httputil.NewClient(&httputil.ClientConfig{Network: "tcp6"}),
		},
		cache:  cache,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Resolve implements Resolver.
func (r *WebResolver) Resolve(ctx context.Context, f Family) (netip.Addr, error) {
	return cachedResolve(ctx, r.cache, r.strategy, f, r.logger, r.lookup)
}

func (r *WebResolver) lookup(ctx context.Context, f Family) (netip.Addr, error) {
	url, ok := r.urls[f]
	if !ok || url == "" {
		return netip.Addr{}, fmt.Errorf("no lookup URL configured for %s", f)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Accept", "text/plain, application/json")

	resp, err := r.clients[f].Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("requesting %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return netip.Addr{}, fmt.Errorf("%w: %s returned %s", ErrUnexpectedStatus, url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("reading response body: %w", err)
	}

	text, err := addressText(body)
	if err != nil {
		return netip.Addr{}, err
	}

	return ParseAddr(f, text)
}

// addressText extracts the address literal from a plain-text or JSON body.
func addressText(body []byte) (string, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "", ErrNoAnswer
	}

	if strings.HasPrefix(trimmed, "{") {
		var payload struct {
			IP string `json:"ip"`
		}
		if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
			return "", fmt.Errorf("parsing JSON response: %w", err)
		}
		if payload.IP == "" {
			return "", ErrNoAnswer
		}
		return payload.IP, nil
	}

	line, _ := bufio.NewReader(strings.NewReader(trimmed)).ReadString('\n')
	return strings.TrimSpace(line), nil
}
