package cloudflare

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gitlab.bluewillows.net/root/ddnsweaver/internal/metrics"
	"gitlab.bluewillows.net/root/ddnsweaver/pkg/provider"
)

// TypeName is the provider type name used in configuration and the registry.
const TypeName = "cloudflare"

// Provider implements provider.Provider for one Cloudflare credential and zone.
type Provider struct {
	name       string
	zone       string // Zone name (for display/logging)
	client     *Client
	clientOpts []ClientOption
	logger     *slog.Logger

	// zoneMu guards the lazily resolved zone ID.
	zoneMu sync.Mutex
	zoneID string
}

// ProviderOption is a functional option for configuring the Provider.
type ProviderOption func(*Provider)

// WithProviderLogger sets a custom logger for the provider.
func WithProviderLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClientOptions passes options through to the underlying API client.
func WithClientOptions(opts ...ClientOption) ProviderOption {
	return func(p *Provider) {
		p.clientOpts = append(p.clientOpts, opts...)
	}
}

// New creates a new Cloudflare provider instance.
func New(name string, config *Config, opts ...ProviderOption) (*Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		name:   name,
		zone:   config.Zone,
		zoneID: config.ZoneID,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	// The API client shares the provider logger unless overridden.
	clientOpts := append([]ClientOption{WithLogger(p.logger)}, p.clientOpts...)
	p.client = NewClient(config.Token, clientOpts...)

	return p, nil
}

// NewFromMap creates a new Cloudflare provider from a configuration map.
// This is used by the provider registry Factory pattern.
func NewFromMap(name string, config map[string]string, opts ...ProviderOption) (*Provider, error) {
	return New(name, configFromMap(config), opts...)
}

// Name returns the provider instance name.
func (p *Provider) Name() string {
	return p.name
}

// Type returns "cloudflare".
func (p *Provider) Type() string {
	return TypeName
}

// Zone returns the configured DNS zone name.
func (p *Provider) Zone() string {
	return p.zone
}

// ZoneID returns the zone ID, looking it up by zone name on first use.
// A failed lookup is retried on the next call.
func (p *Provider) ZoneID(ctx context.Context) (string, error) {
	p.zoneMu.Lock()
	defer p.zoneMu.Unlock()

	if p.zoneID != "" {
		return p.zoneID, nil
	}

	id, err := p.client.GetZoneID(ctx, p.zone)
	if err != nil {
		return "", err
	}
	p.zoneID = id
	return id, nil
}

// Ping checks connectivity to the Cloudflare API and that the token is accepted.
func (p *Provider) Ping(ctx context.Context) error {
	start := time.Now()
	err := p.client.Ping(ctx)
	observe("ping", start, err)
	return err
}

// ListRecords returns every record named name in the zone.
func (p *Provider) ListRecords(ctx context.Context, name string) ([]provider.Record, error) {
	zoneID, err := p.ZoneID(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting zone ID: %w", err)
	}

	start := time.Now()
	apiRecords, err := p.client.ListRecords(ctx, zoneID, name)
	observe("list", start, err)
	if err != nil {
		return nil, err
	}

	records := make([]provider.Record, 0, len(apiRecords))
	for _, r := range apiRecords {
		records = append(records, r.toRecord())
	}
	return records, nil
}

// CreateRecord creates record and returns it with its Cloudflare ID.
func (p *Provider) CreateRecord(ctx context.Context, record provider.Record) (provider.Record, error) {
	zoneID, err := p.ZoneID(ctx)
	if err != nil {
		return provider.Record{}, fmt.Errorf("getting zone ID: %w", err)
	}

	start := time.Now()
	created, err := p.client.CreateRecord(ctx, zoneID, newRecordRequest(record))
	observe("create", start, err)
	if err != nil {
		return provider.Record{}, err
	}

	p.logger.Info("created record",
		slog.String("provider", p.name),
		slog.String("name", created.Name),
		slog.String("type", created.Type),
		slog.String("content", created.Content),
		slog.String("record_id", created.ID),
		slog.Int("ttl", created.TTL),
		slog.Bool("proxied", created.Proxied),
	)

	return created.toRecord(), nil
}

// UpdateRecord overwrites the record id with record.
func (p *Provider) UpdateRecord(ctx context.Context, id string, record provider.Record) error {
	zoneID, err := p.ZoneID(ctx)
	if err != nil {
		return fmt.Errorf("getting zone ID: %w", err)
	}

	start := time.Now()
	_, err = p.client.UpdateRecord(ctx, zoneID, id, newRecordRequest(record))
	observe("update", start, err)
	if err != nil {
		return err
	}

	p.logger.Info("updated record",
		slog.String("provider", p.name),
		slog.String("name", record.Name),
		slog.String("type", string(record.Type)),
		slog.String("content", record.Content),
		slog.String("record_id", id),
	)

	return nil
}

// observe records one Cloudflare API call.
func observe(operation string, start time.Time, err error) {
	metrics.ProviderAPIRequestsTotal.WithLabelValues(TypeName, operation, metrics.Result(err)).Inc()
	metrics.ProviderAPIDuration.WithLabelValues(TypeName, operation).Observe(time.Since(start).Seconds())
}

// Factory returns a provider.Factory function for use with the provider registry.
func Factory(opts ...ProviderOption) provider.Factory {
	return func(name string, config map[string]string) (provider.Provider, error) {
		return NewFromMap(name, config, opts...)
	}
}

// Ensure Provider implements provider.Provider at compile time.
var _ provider.Provider = (*Provider)(nil)
