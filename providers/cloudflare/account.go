package cloudflare

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	cf "github.com/cloudflare/cloudflare-go"

	"gitlab.bluewillows.net/root/ddnsweaver/pkg/httputil"
	"gitlab.bluewillows.net/root/ddnsweaver/pkg/provider"
)

// TokenStatusActive is the status Cloudflare reports for a usable token.
const TokenStatusActive = "active"

// Zone is a zone visible to an API token.
type Zone struct {
	ID     string
	Name   string
	Status string
	Plan   string
}

// TokenStatus is the verification result of an API token.
type TokenStatus struct {
	ID        string
	Status    string
	ExpiresOn time.Time
}

// Account exposes token-level helpers (zone discovery, token verification)
// through the official Cloudflare SDK. Record operations go through Client.
type Account struct {
	api    *cf.API
	logger *slog.Logger
}

// AccountOption is a functional option for configuring the Account.
type AccountOption func(*accountOptions)

type accountOptions struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// WithAccountBaseURL points the SDK at a different API base URL.
func WithAccountBaseURL(baseURL string) AccountOption {
	return func(o *accountOptions) {
		o.baseURL = baseURL
	}
}

// WithAccountHTTPClient sets the HTTP client used by the SDK.
func WithAccountHTTPClient(client *http.Client) AccountOption {
	return func(o *accountOptions) {
		o.httpClient = client
	}
}

// WithAccountLogger sets a custom logger.
func WithAccountLogger(logger *slog.Logger) AccountOption {
	return func(o *accountOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewAccount creates an account helper authenticated with token.
func NewAccount(token string, opts ...AccountOption) (*Account, error) {
	o := &accountOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.httpClient == nil {
		o.httpClient = httputil.NewClient(&httputil.ClientConfig{Logger: o.logger})
	}

	sdkOpts := []cf.Option{
		cf.HTTPClient(o.httpClient),
		cf.UserAgent(httputil.DefaultUserAgent),
	}
	if o.baseURL != "" {
		sdkOpts = append(sdkOpts, cf.BaseURL(o.baseURL))
	}

	api, err := cf.NewWithAPIToken(token, sdkOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating cloudflare api client: %w", err)
	}

	return &Account{api: api, logger: o.logger}, nil
}

// Zones lists every zone the token can read, sorted by name.
func (a *Account) Zones(ctx context.Context) ([]Zone, error) {
	start := time.Now()
	zones, err := a.api.ListZones(ctx)
	err = mapSDKError(err)
	observe("zones", start, err)
	if err != nil {
		return nil, fmt.Errorf("listing zones: %w", err)
	}

	seen := make(map[string]bool, len(zones))
	out := make([]Zone, 0, len(zones))
	for _, z := range zones {
		if seen[z.ID] {
			continue
		}
		seen[z.ID] = true
		out = append(out, Zone{
			ID:     z.ID,
			Name:   z.Name,
			Status: z.Status,
			Plan:   z.Plan.Name,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	a.logger.Debug("listed zones", slog.Int("count", len(out)))
	return out, nil
}

// VerifyToken checks the token with Cloudflare and fails unless it is active.
func (a *Account) VerifyToken(ctx context.Context) (TokenStatus, error) {
	start := time.Now()
	body, err := a.api.VerifyAPIToken(ctx)
	err = mapSDKError(err)
	observe("verify", start, err)
	if err != nil {
		return TokenStatus{}, fmt.Errorf("verifying token: %w", err)
	}

	status := TokenStatus{
		ID:        body.ID,
		Status:    body.Status,
		ExpiresOn: body.ExpiresOn,
	}
	if status.Status != TokenStatusActive {
		return status, fmt.Errorf("%w: token status is %q, expected %q", provider.ErrUnauthorized, status.Status, TokenStatusActive)
	}
	return status, nil
}

// mapSDKError translates SDK error types into provider sentinels.
func mapSDKError(err error) error {
	if err == nil {
		return nil
	}

	var authn *cf.AuthenticationError
	var authz *cf.AuthorizationError
	var rate *cf.RatelimitError
	var notFound *cf.NotFoundError
	var service *cf.ServiceError

	switch {
	case errors.As(err, &authn), errors.As(err, &authz):
		return fmt.Errorf("%w: %w", provider.ErrUnauthorized, err)
	case errors.As(err, &rate):
		return fmt.Errorf("%w: %w", provider.ErrRateLimited, err)
	case errors.As(err, &notFound):
		return fmt.Errorf("%w: %w", provider.ErrNotFound, err)
	case errors.As(err, &service):
		return fmt.Errorf("%w: %w", provider.ErrProviderUnavailable, err)
	default:
		return err
	}
}
