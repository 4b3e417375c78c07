package reconciler

import (
	"context"
	"log/slog"
	"time"

	"gitlab.bluewillows.net/root/ddnsweaver/internal/ip"
	"gitlab.bluewillows.net/root/ddnsweaver/internal/metrics"
	"gitlab.bluewillows.net/root/ddnsweaver/pkg/provider"
)

// LogicalRecord is a configured DNS name and the address families it carries.
type LogicalRecord struct {
	Name     string
	TTL      int
	Proxied  bool
	Families []ip.Family
}

// Synchronizer keeps one LogicalRecord in line with the resolved public addresses.
//
// The provider-assigned id of each family is remembered after the first successful
// search or create and reused on every later pass without searching again. The memo
// is owned by the Synchronizer; a Synchronizer must not be synced concurrently.
type Synchronizer struct {
	record   LogicalRecord
	client   provider.Client
	resolver ip.Resolver
	logger   *slog.Logger

	memo map[ip.Family]string
}

// SyncOption is a functional option for configuring a Synchronizer.
type SyncOption func(*Synchronizer)

// WithSyncLogger sets a custom logger for the synchronizer.
func WithSyncLogger(logger *slog.Logger) SyncOption {
	return func(s *Synchronizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSynchronizer creates a Synchronizer for record using client for provider
// calls and resolver for the current addresses.
func NewSynchronizer(record LogicalRecord, client provider.Client, resolver ip.Resolver, opts ...SyncOption) *Synchronizer {
	s := &Synchronizer{
		record:   record,
		client:   client,
		resolver: resolver,
		logger:   slog.Default(),
		memo:     make(map[ip.Family]string, len(record.Families)),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.With(slog.String("record", record.Name))
	return s
}

// Record returns the record this synchronizer manages.
func (s *Synchronizer) Record() LogicalRecord {
	return s.record
}

// MemoizedID returns the remembered provider id for family f.
func (s *Synchronizer) MemoizedID(f ip.Family) (string, bool) {
	id, ok := s.memo[f]
	return id, ok
}

// Sync brings every configured family of the record up to date. Families are
// processed in configured order and the first failure stops the remaining ones.
func (s *Synchronizer) Sync(ctx context.Context) error {
	return s.SyncResult(ctx).Err
}

// SyncResult is Sync with the individual provider actions reported.
func (s *Synchronizer) SyncResult(ctx context.Context) RecordResult {
	start := time.Now()
	result := RecordResult{Record: s.record.Name}

	for _, f := range s.record.Families {
		action, err := s.syncFamily(ctx, f)
		if action != nil {
			result.Actions = append(result.Actions, *action)
		}
		if err != nil {
			result.Err = err
			break
		}
	}

	result.Duration = time.Since(start)
	metrics.RecordSyncDuration.WithLabelValues(s.record.Name).Observe(result.Duration.Seconds())

	return result
}

// syncFamily runs search, create or update for one family. The returned action
// is nil when the family failed before any create or update was attempted.
func (s *Synchronizer) syncFamily(ctx context.Context, f ip.Family) (*Action, error) {
	logger := s.logger.With(slog.String("family", f.String()))

	id, ok := s.memo[f]
	if !ok {
		records, err := s.client.ListRecords(ctx, s.record.Name)
		if err != nil {
			s.observe(f, ActionSearch, err)
			return nil, &ProviderError{Record: s.record.Name, Family: f, Action: ActionSearch, Err: err}
		}

		matches := provider.FilterByType(records, provider.RecordType(f.RecordType()))
		switch len(matches) {
		case 0:
			logger.Debug("no existing record, creating")
			return s.create(ctx, f, logger)
		case 1:
			id = matches[0].ID
			s.memo[f] = id
			s.observe(f, ActionSearch, nil)
			logger.Debug("found existing record", slog.String("record_id", id))
		default:
			err := &AmbiguousMatchError{Name: s.record.Name, Family: f, Count: len(matches)}
			s.observe(f, ActionSearch, err)
			return nil, err
		}
	}

	return s.update(ctx, f, id, logger)
}

// create resolves the address, creates the record and remembers its id.
func (s *Synchronizer) create(ctx context.Context, f ip.Family, logger *slog.Logger) (*Action, error) {
	desired, err := s.desired(ctx, f)
	if err != nil {
		return nil, err
	}

	action := &Action{
		Type:    ActionCreate,
		Record:  s.record.Name,
		Family:  f,
		Content: desired.Content,
	}

	created, err := s.client.CreateRecord(ctx, desired)
	s.observe(f, ActionCreate, err)
	if err != nil {
		action.Status = StatusFailed
		action.Error = err.Error()
		return action, &ProviderError{Record: s.record.Name, Family: f, Action: ActionCreate, Err: err}
	}

	s.memo[f] = created.ID
	action.Status = StatusSuccess
	action.RecordID = created.ID

	logger.Info("created record",
		slog.String("record_id", created.ID),
		slog.String("content", desired.Content),
	)
	return action, nil
}

// update resolves the address and writes it to the record identified by id.
func (s *Synchronizer) update(ctx context.Context, f ip.Family, id string, logger *slog.Logger) (*Action, error) {
	desired, err := s.desired(ctx, f)
	if err != nil {
		return nil, err
	}

	action := &Action{
		Type:     ActionUpdate,
		Record:   s.record.Name,
		Family:   f,
		RecordID: id,
		Content:  desired.Content,
	}

	err = s.client.UpdateRecord(ctx, id, desired)
	s.observe(f, ActionUpdate, err)
	if err != nil {
		action.Status = StatusFailed
		action.Error = err.Error()
		return action, &ProviderError{Record: s.record.Name, Family: f, Action: ActionUpdate, RecordID: id, Err: err}
	}

	action.Status = StatusSuccess
	logger.Info("updated record",
		slog.String("record_id", id),
		slog.String("content", desired.Content),
	)
	return action, nil
}

// desired builds the record content for family f from the current address.
func (s *Synchronizer) desired(ctx context.Context, f ip.Family) (provider.Record, error) {
	addr, err := s.resolver.Resolve(ctx, f)
	if err != nil {
		return provider.Record{}, &ResolutionError{Record: s.record.Name, Family: f, Err: err}
	}

	return provider.Record{
		Name:    s.record.Name,
		Type:    provider.RecordType(f.RecordType()),
		Content: addr.String(),
		TTL:     s.record.TTL,
		Proxied: s.record.Proxied,
	}, nil
}

func (s *Synchronizer) observe(f ip.Family, action ActionType, err error) {
	metrics.RecordSyncsTotal.WithLabelValues(s.record.Name, f.String(), string(action), metrics.Result(err)).Inc()
}
