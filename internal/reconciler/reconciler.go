package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"gitlab.bluewillows.net/root/ddnsweaver/internal/config"
	"gitlab.bluewillows.net/root/ddnsweaver/internal/ip"
	"gitlab.bluewillows.net/root/ddnsweaver/internal/metrics"
	"gitlab.bluewillows.net/root/ddnsweaver/internal/scheduler"
	"gitlab.bluewillows.net/root/ddnsweaver/pkg/provider"
	"gitlab.bluewillows.net/root/ddnsweaver/providers/cloudflare"
)

// ResolverFactory builds the address resolver shared by the records of one group.
type ResolverFactory func(strategy ip.Strategy, cache *ip.Cache, logger *slog.Logger) (ip.Resolver, error)

// Reconciler owns one Synchronizer per configured record.
//
// Records are built once from configuration. Each configuration group gets its
// own address cache and resolver, and groups sharing a credential share one
// provider instance.
type Reconciler struct {
	synchronizers []*Synchronizer
	providers     *provider.Registry
	logger        *slog.Logger

	resolverFactory ResolverFactory
	providerOpts    []cloudflare.ProviderOption
	ownRegistry     bool

	// mu protects failing, the records whose most recent sync failed.
	mu      sync.Mutex
	failing map[string]bool
}

// Option is a functional option for configuring the Reconciler.
type Option func(*Reconciler)

// WithLogger sets a custom logger for the reconciler.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithResolverFactory replaces ip.NewResolver (useful for testing).
func WithResolverFactory(factory ResolverFactory) Option {
	return func(r *Reconciler) {
		if factory != nil {
			r.resolverFactory = factory
		}
	}
}

// WithProviderOptions passes options to every Cloudflare provider instance.
func WithProviderOptions(opts ...cloudflare.ProviderOption) Option {
	return func(r *Reconciler) {
		r.providerOpts = append(r.providerOpts, opts...)
	}
}

// WithRegistry supplies a pre-populated provider registry. Its "cloudflare"
// factory is used as is.
func WithRegistry(registry *provider.Registry) Option {
	return func(r *Reconciler) {
		if registry != nil {
			r.providers = registry
			r.ownRegistry = false
		}
	}
}

// New builds the synchronizers for every record in cfg.
func New(cfg *config.Config, opts ...Option) (*Reconciler, error) {
	r := &Reconciler{
		logger:          slog.Default(),
		resolverFactory: ip.NewResolver,
		ownRegistry:     true,
		failing:         make(map[string]bool),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.ownRegistry {
		r.providers = provider.NewRegistry()
		providerOpts := append([]cloudflare.ProviderOption{cloudflare.WithProviderLogger(r.logger)}, r.providerOpts...)
		r.providers.RegisterFactory(cloudflare.TypeName, cloudflare.Factory(providerOpts...))
	} else if !slices.Contains(r.providers.Types(), cloudflare.TypeName) {
		return nil, fmt.Errorf("provider registry has no %q factory (registered: %v)", cloudflare.TypeName, r.providers.Types())
	}

	// credential key -> provider instance name
	credentials := make(map[string]string)

	for _, g := range cfg.Groups {
		if len(g.Records) == 0 {
			continue
		}
		if g.Cloudflare == nil {
			return nil, fmt.Errorf("domains[%d]: records configured without a cloudflare credential", g.Index)
		}

		client, err := r.providerFor(g.Cloudflare, credentials)
		if err != nil {
			return nil, fmt.Errorf("domains[%d]: %w", g.Index, err)
		}

		cache := ip.NewCache(cfg.IPCacheTTL)
		resolver, err := r.resolverFactory(g.Resolver, cache, r.logger)
		if err != nil {
			return nil, fmt.Errorf("domains[%d]: building %s resolver: %w", g.Index, g.Resolver, err)
		}

		for _, rec := range g.Records {
			r.synchronizers = append(r.synchronizers, NewSynchronizer(
				LogicalRecord{
					Name:     rec.Name,
					TTL:      rec.TTL,
					Proxied:  rec.Proxied,
					Families: rec.Families,
				},
				client,
				resolver,
				WithSyncLogger(r.logger),
			))
		}

		r.logger.Debug("configured record group",
			slog.Int("group", g.Index),
			slog.String("resolver", g.Resolver.String()),
			slog.String("provider", client.Name()),
			slog.Int("records", len(g.Records)),
		)
	}

	return r, nil
}

// providerFor returns the provider instance for a credential, creating it on first use.
func (r *Reconciler) providerFor(cf *cloudflare.Config, credentials map[string]string) (provider.Provider, error) {
	key := cf.Token + "\x00" + cf.ZoneID + "\x00" + cf.Zone
	if name, ok := credentials[key]; ok {
		if p, ok := r.providers.Get(name); ok {
			return p, nil
		}
	}

	name := fmt.Sprintf("%s-%d", cloudflare.TypeName, len(credentials))
	p, err := r.providers.CreateInstance(name, cloudflare.TypeName, cf.ToMap())
	if err != nil {
		return nil, err
	}

	credentials[key] = name
	return p, nil
}

// Synchronizers returns the synchronizers in configuration order.
func (r *Reconciler) Synchronizers() []*Synchronizer {
	return r.synchronizers
}

// Providers returns the registry holding every provider instance in use.
func (r *Reconciler) Providers() *provider.Registry {
	return r.providers
}

// zoneResolver is implemented by providers that address records through a zone id.
type zoneResolver interface {
	ZoneID(ctx context.Context) (string, error)
}

// Verify checks that every provider instance accepts its credential and, for
// zones configured by name, that the zone can be found.
func (r *Reconciler) Verify(ctx context.Context) error {
	if err := r.providers.PingAll(ctx); err != nil {
		return err
	}

	var errs []error
	for _, p := range r.providers.All() {
		zr, ok := p.(zoneResolver)
		if !ok {
			continue
		}
		id, err := zr.ZoneID(ctx)
		if err != nil {
			errs = append(errs, provider.WrapError(p.Name(), "zone lookup", err))
			continue
		}
		r.logger.Debug("zone verified", slog.String("provider", p.Name()), slog.String("zone_id", id))
	}
	return errors.Join(errs...)
}

// RunOnce syncs every record once, in configuration order. A failing record
// does not stop the others; the returned result carries every failure.
func (r *Reconciler) RunOnce(ctx context.Context) *PassResult {
	r.logger.Info("starting sync pass", slog.Int("records", len(r.synchronizers)))

	result := NewPassResult()
	for _, s := range r.synchronizers {
		if err := ctx.Err(); err != nil {
			result.Add(RecordResult{Record: s.Record().Name, Err: err})
			continue
		}
		result.Add(r.syncRecord(ctx, s))
	}
	result.Complete()

	metrics.PassesTotal.WithLabelValues(metrics.ModeOneShot, metrics.Result(result.Err())).Inc()

	r.logger.Info("sync pass complete",
		slog.Int("synced", result.SyncedCount()),
		slog.Int("created", result.CreatedCount()),
		slog.Int("updated", result.UpdatedCount()),
		slog.Int("failed", result.FailedCount()),
		slog.Duration("duration", result.Duration()),
	)

	return result
}

// Jobs returns one scheduler job per record.
func (r *Reconciler) Jobs() []scheduler.Job {
	jobs := make([]scheduler.Job, 0, len(r.synchronizers))
	for _, s := range r.synchronizers {
		s := s
		jobs = append(jobs, scheduler.Job{
			Name: s.Record().Name,
			Run: func(ctx context.Context) error {
				return r.syncRecord(ctx, s).Err
			},
		})
	}
	return jobs
}

// FailingRecords returns, in configuration order, the records whose most
// recent sync failed.
func (r *Reconciler) FailingRecords() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var names []string
	for _, s := range r.synchronizers {
		if r.failing[s.Record().Name] {
			names = append(names, s.Record().Name)
		}
	}
	return names
}

// syncRecord syncs one record and logs the outcome.
func (r *Reconciler) syncRecord(ctx context.Context, s *Synchronizer) RecordResult {
	result := s.SyncResult(ctx)

	r.mu.Lock()
	if r.failing == nil {
		r.failing = make(map[string]bool)
	}
	r.failing[result.Record] = result.Err != nil
	r.mu.Unlock()

	if result.Err != nil {
		r.logger.Error("record sync failed",
			slog.String("record", result.Record),
			slog.String("error", result.Err.Error()),
		)
		return result
	}

	r.logger.Debug("record synced",
		slog.String("record", result.Record),
		slog.Int("actions", len(result.Actions)),
		slog.Duration("duration", result.Duration),
	)
	return result
}
