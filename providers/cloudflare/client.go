// Package cloudflare implements the ddnsweaver provider interface for Cloudflare DNS.
package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"gitlab.bluewillows.net/root/ddnsweaver/pkg/httputil"
	"gitlab.bluewillows.net/root/ddnsweaver/pkg/provider"
)

// DefaultAPIEndpoint is the base URL for Cloudflare API v4.
const DefaultAPIEndpoint = "https://api.cloudflare.com/client/v4"

// Cloudflare error codes with a provider-neutral meaning.
const (
	codeRecordNotFound  = 81044
	codeRecordExists    = 81053
	codeIdenticalRecord = 81058
)

// perPage is the largest page size the dns_records endpoint accepts.
const perPage = 100

// apiError represents an error from the Cloudflare API.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// resultInfo carries pagination metadata on list responses.
type resultInfo struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
}

// apiResponse is the standard Cloudflare API response wrapper.
type apiResponse struct {
	Success    bool            `json:"success"`
	Errors     []apiError      `json:"errors"`
	Result     json.RawMessage `json:"result"`
	ResultInfo *resultInfo     `json:"result_info,omitempty"`
}

// zoneResult represents a zone from the Cloudflare API.
type zoneResult struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// dnsRecord represents a DNS record from the Cloudflare API.
type dnsRecord struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied bool   `json:"proxied"`
}

func (r dnsRecord) toRecord() provider.Record {
	return provider.Record{
		ID:      r.ID,
		Name:    r.Name,
		Type:    provider.RecordType(r.Type),
		Content: r.Content,
		TTL:     r.TTL,
		Proxied: r.Proxied,
	}
}

// recordRequest is the request body for creating or replacing a DNS record.
type recordRequest struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied bool   `json:"proxied"`
}

func newRecordRequest(r provider.Record) recordRequest {
	return recordRequest{
		Type:    string(r.Type),
		Name:    r.Name,
		Content: r.Content,
		TTL:     r.TTL,
		Proxied: r.Proxied,
	}
}

// Client is a Cloudflare DNS API client.
type Client struct {
	apiEndpoint string
	token       string
	httpClient  *http.Client
	logger      *slog.Logger
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithAPIEndpoint sets a custom API endpoint (useful for testing).
func WithAPIEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		c.apiEndpoint = strings.TrimRight(endpoint, "/")
	}
}

// NewClient creates a new Cloudflare API client.
// Requests time out after httputil.DefaultTimeout unless a custom HTTP client is supplied.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		apiEndpoint: DefaultAPIEndpoint,
		token:       token,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = httputil.NewClient(&httputil.ClientConfig{Logger: c.logger})
	}

	return c
}

// doRequest performs an HTTP request to the Cloudflare API.
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (*apiResponse, error) {
	reqURL := c.apiEndpoint + path

	c.logger.Debug("making API request",
		slog.String("method", method),
		slog.String("path", path),
	)

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", provider.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var apiResp apiResponse
	parseErr := json.Unmarshal(respBody, &apiResp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if parseErr == nil && len(apiResp.Errors) > 0 {
			return nil, apiFailure(resp.StatusCode, apiResp.Errors[0])
		}
		return nil, apiFailure(resp.StatusCode, apiError{Message: strings.TrimSpace(string(respBody))})
	}

	if parseErr != nil {
		return nil, fmt.Errorf("parsing response JSON: %w", parseErr)
	}

	if !apiResp.Success {
		if len(apiResp.Errors) > 0 {
			return nil, apiFailure(resp.StatusCode, apiResp.Errors[0])
		}
		return nil, errors.New("API request failed with unknown error")
	}

	return &apiResp, nil
}

// apiFailure maps a failed response onto the provider sentinel errors.
func apiFailure(status int, e apiError) error {
	var sentinel error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		sentinel = provider.ErrUnauthorized
	case status == http.StatusTooManyRequests:
		sentinel = provider.ErrRateLimited
	case status == http.StatusNotFound || e.Code == codeRecordNotFound:
		sentinel = provider.ErrNotFound
	case e.Code == codeRecordExists || e.Code == codeIdenticalRecord:
		sentinel = provider.ErrConflict
	case status >= 500:
		sentinel = provider.ErrProviderUnavailable
	}

	msg := fmt.Sprintf("API error: %s (status: %d, code: %d)", e.Message, status, e.Code)
	if sentinel != nil {
		return fmt.Errorf("%w: %s", sentinel, msg)
	}
	return errors.New(msg)
}

// Ping checks connectivity to the Cloudflare API.
// Uses the /user/tokens/verify endpoint which is lightweight.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/user/tokens/verify", nil)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// GetZoneID returns the zone ID for a given domain name.
// It looks up the zone by name using the Cloudflare API.
func (c *Client) GetZoneID(ctx context.Context, domain string) (string, error) {
	// Find the root zone for this domain by progressively stripping subdomains
	parts := strings.Split(strings.TrimSuffix(domain, "."), ".")
	var lastErr error
	for i := 0; i < len(parts)-1; i++ {
		zoneName := strings.Join(parts[i:], ".")
		params := url.Values{}
		params.Set("name", zoneName)
		params.Set("status", "active")

		resp, err := c.doRequest(ctx, http.MethodGet, "/zones?"+params.Encode(), nil)
		if err != nil {
			// A bad token fails every level the same way.
			if provider.IsUnauthorized(err) {
				return "", err
			}
			lastErr = err
			continue
		}

		var zones []zoneResult
		if err := json.Unmarshal(resp.Result, &zones); err != nil {
			lastErr = fmt.Errorf("parsing zones response: %w", err)
			continue
		}

		if len(zones) > 0 {
			c.logger.Debug("found zone",
				slog.String("domain", domain),
				slog.String("zone", zoneName),
				slog.String("zone_id", zones[0].ID),
			)
			return zones[0].ID, nil
		}
	}

	if lastErr != nil {
		return "", fmt.Errorf("no zone found for domain %s: %w", domain, lastErr)
	}
	return "", fmt.Errorf("no zone found for domain %s", domain)
}

// ListRecords returns every DNS record named name in the zone, following pagination.
func (c *Client) ListRecords(ctx context.Context, zoneID, name string) ([]dnsRecord, error) {
	var all []dnsRecord

	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("name", name)
		params.Set("per_page", strconv.Itoa(perPage))
		params.Set("page", strconv.Itoa(page))

		path := fmt.Sprintf("/zones/%s/dns_records?%s", zoneID, params.Encode())
		resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, fmt.Errorf("listing records: %w", err)
		}

		var records []dnsRecord
		if err := json.Unmarshal(resp.Result, &records); err != nil {
			return nil, fmt.Errorf("parsing records response: %w", err)
		}
		all = append(all, records...)

		if resp.ResultInfo == nil || page >= resp.ResultInfo.TotalPages {
			break
		}
	}

	c.logger.Debug("listed records",
		slog.String("zone_id", zoneID),
		slog.String("name", name),
		slog.Int("count", len(all)),
	)

	return all, nil
}

// CreateRecord creates a new DNS record in the specified zone and returns it.
func (c *Client) CreateRecord(ctx context.Context, zoneID string, req recordRequest) (dnsRecord, error) {
	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return dnsRecord{}, fmt.Errorf("marshaling request: %w", err)
	}

	path := fmt.Sprintf("/zones/%s/dns_records", zoneID)
	resp, err := c.doRequest(ctx, http.MethodPost, path, bytes.NewReader(bodyBytes))
	if err != nil {
		return dnsRecord{}, fmt.Errorf("creating record: %w", err)
	}

	var created dnsRecord
	if err := json.Unmarshal(resp.Result, &created); err != nil {
		return dnsRecord{}, fmt.Errorf("parsing create response: %w", err)
	}
	if created.ID == "" {
		return dnsRecord{}, errors.New("creating record: response carried no record id")
	}

	c.logger.Debug("created DNS record",
		slog.String("zone_id", zoneID),
		slog.String("record_id", created.ID),
		slog.String("type", req.Type),
		slog.String("name", req.Name),
	)

	return created, nil
}

// UpdateRecord replaces the DNS record recordID with req.
func (c *Client) UpdateRecord(ctx context.Context, zoneID, recordID string, req recordRequest) (dnsRecord, error) {
	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return dnsRecord{}, fmt.Errorf("marshaling request: %w", err)
	}

	path := fmt.Sprintf("/zones/%s/dns_records/%s", zoneID, recordID)
	resp, err := c.doRequest(ctx, http.MethodPut, path, bytes.NewReader(bodyBytes))
	if err != nil {
		return dnsRecord{}, fmt.Errorf("updating record: %w", err)
	}

	var updated dnsRecord
	if len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, &updated); err != nil {
			return dnsRecord{}, fmt.Errorf("parsing update response: %w", err)
		}
	}

	c.logger.Debug("updated DNS record",
		slog.String("zone_id", zoneID),
		slog.String("record_id", recordID),
		slog.String("content", req.Content),
	)

	return updated, nil
}
