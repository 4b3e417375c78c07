package reconciler

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"gitlab.bluewillows.net/root/ddnsweaver/internal/ip"
	"gitlab.bluewillows.net/root/ddnsweaver/internal/metrics"
	"gitlab.bluewillows.net/root/ddnsweaver/pkg/provider"
)

func TestSynchronizer_MemoizesSearch(t *testing.T) {
	client := newMockClient(aRecord("rec-1", "home.example.com", "192.0.2.1"))
	client.onList = func(calls int) {
		if calls > 1 {
			t.Errorf("search issued %d times, expected the id to be remembered", calls)
		}
	}

	s := newTestSynchronizer(t,
		LogicalRecord{Name: "home.example.com", TTL: 60, Families: []ip.Family{ip.IPv4}},
		client, fixedResolver("198.51.100.7", "2001:db8::1"))

	for i := 0; i < 2; i++ {
		if err := s.Sync(context.Background()); err != nil {
			t.Fatalf("Sync %d failed: %v", i, err)
		}
	}

	lists, creates, updates := client.counts()
	if lists != 1 || creates != 0 || updates != 2 {
		t.Errorf("expected 1 search / 0 creates / 2 updates, got %d / %d / %d", lists, creates, updates)
	}
	if id, ok := s.MemoizedID(ip.IPv4); !ok || id != "rec-1" {
		t.Errorf("expected memoized id rec-1, got %q (%v)", id, ok)
	}
}

func TestSynchronizer_ZeroMatchesCreates(t *testing.T) {
	client := newMockClient()
	s := newTestSynchronizer(t,
		LogicalRecord{Name: "new.example.com", TTL: 120, Proxied: true, Families: []ip.Family{ip.IPv4}},
		client, fixedResolver("198.51.100.7", "2001:db8::1"))

	result := s.SyncResult(context.Background())
	if result.Err != nil {
		t.Fatalf("Sync failed: %v", result.Err)
	}

	lists, creates, updates := client.counts()
	if lists != 1 || creates != 1 || updates != 0 {
		t.Fatalf("expected 1 search / 1 create / 0 updates, got %d / %d / %d", lists, creates, updates)
	}

	created := client.created[0]
	want := provider.Record{
		ID:      "created-1",
		Name:    "new.example.com",
		Type:    provider.RecordTypeA,
		Content: "198.51.100.7",
		TTL:     120,
		Proxied: true,
	}
	if created != want {
		t.Errorf("expected created record %+v, got %+v", want, created)
	}

	if len(result.Actions) != 1 || result.Actions[0].Type != ActionCreate || result.Actions[0].RecordID != "created-1" {
		t.Errorf("unexpected actions: %+v", result.Actions)
	}
	if id, _ := s.MemoizedID(ip.IPv4); id != "created-1" {
		t.Errorf("expected created id to be memoized, got %q", id)
	}

	// The next pass trusts the memo: no search, no create, one update.
	if err := s.Sync(context.Background()); err != nil {
		t.Fatalf("second Sync failed: %v", err)
	}
	lists, creates, updates = client.counts()
	if lists != 1 || creates != 1 || updates != 1 {
		t.Errorf("expected 1 search / 1 create / 1 update after second pass, got %d / %d / %d", lists, creates, updates)
	}
	if client.updates[0].ID != "created-1" {
		t.Errorf("expected update of created-1, got %s", client.updates[0].ID)
	}
}

func TestSynchronizer_AmbiguousMatchDoesNotMemoize(t *testing.T) {
	client := newMockClient(
		aRecord("dup-1", "home.example.com", "192.0.2.1"),
		aRecord("dup-2", "home.example.com", "192.0.2.2"),
	)
	s := newTestSynchronizer(t,
		LogicalRecord{Name: "home.example.com", TTL: 1, Families: []ip.Family{ip.IPv4}},
		client, fixedResolver("198.51.100.7", "2001:db8::1"))

	before := testutil.ToFloat64(metrics.RecordSyncsTotal.WithLabelValues("home.example.com", "ipv4", "search", metrics.ResultError))

	err := s.Sync(context.Background())
	if !errors.Is(err, ErrAmbiguousMatch) {
		t.Fatalf("expected ErrAmbiguousMatch, got %v", err)
	}
	var ambiguous *AmbiguousMatchError
	if !errors.As(err, &ambiguous) || ambiguous.Count != 2 || ambiguous.Name != "home.example.com" {
		t.Errorf("unexpected ambiguous error: %+v", ambiguous)
	}
	if _, ok := s.MemoizedID(ip.IPv4); ok {
		t.Error("expected nothing memoized after an ambiguous match")
	}

	after := testutil.ToFloat64(metrics.RecordSyncsTotal.WithLabelValues("home.example.com", "ipv4", "search", metrics.ResultError))
	if after != before+1 {
		t.Errorf("expected search error counter to increase by 1, got %v -> %v", before, after)
	}

	// Fix the provider side: the next pass searches again.
	client.mu.Lock()
	client.records = client.records[:1]
	client.mu.Unlock()

	if err := s.Sync(context.Background()); err != nil {
		t.Fatalf("Sync after fix failed: %v", err)
	}
	lists, _, updates := client.counts()
	if lists != 2 || updates != 1 {
		t.Errorf("expected a fresh search and one update, got %d searches / %d updates", lists, updates)
	}
	if id, _ := s.MemoizedID(ip.IPv4); id != "dup-1" {
		t.Errorf("expected dup-1 memoized, got %q", id)
	}
}

func TestSynchronizer_FiltersByFamily(t *testing.T) {
	client := newMockClient(
		provider.Record{ID: "txt-1", Name: "home.example.com", Type: "TXT", Content: "v=spf1"},
		aaaaRecord("v6-1", "home.example.com", "2001:db8::9"),
		aRecord("v4-1", "home.example.com", "192.0.2.1"),
	)
	s := newTestSynchronizer(t,
		LogicalRecord{Name: "home.example.com", TTL: 1, Families: []ip.Family{ip.IPv4, ip.IPv6}},
		client, fixedResolver("198.51.100.7", "2001:db8::1"))

	if err := s.Sync(context.Background()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if len(client.updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(client.updates))
	}
	if client.updates[0].ID != "v4-1" || client.updates[0].Record.Content != "198.51.100.7" {
		t.Errorf("unexpected A update: %+v", client.updates[0])
	}
	if client.updates[1].ID != "v6-1" || client.updates[1].Record.Content != "2001:db8::1" ||
		client.updates[1].Record.Type != provider.RecordTypeAAAA {
		t.Errorf("unexpected AAAA update: %+v", client.updates[1])
	}

	// Each family searched once.
	if lists, _, _ := client.counts(); lists != 2 {
		t.Errorf("expected 2 searches, got %d", lists)
	}
}

func TestSynchronizer_ResolutionFailureStopsRemainingFamilies(t *testing.T) {
	client := newMockClient(aRecord("v4-1", "home.example.com", "192.0.2.1"))
	lookupErr := errors.New("lookup endpoint unreachable")
	s := newTestSynchronizer(t,
		LogicalRecord{Name: "home.example.com", TTL: 1, Families: []ip.Family{ip.IPv4, ip.IPv6}},
		client, failingResolver(lookupErr))

	err := s.Sync(context.Background())

	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected *ResolutionError, got %T: %v", err, err)
	}
	if resErr.Family != ip.IPv4 || !errors.Is(err, lookupErr) {
		t.Errorf("unexpected resolution error: %v", err)
	}

	// The IPv6 family was never attempted.
	lists, creates, updates := client.counts()
	if lists != 1 || creates != 0 || updates != 0 {
		t.Errorf("expected only the IPv4 search, got %d / %d / %d", lists, creates, updates)
	}
}

func TestSynchronizer_SearchFailure(t *testing.T) {
	client := newMockClient()
	client.listErr = provider.ErrUnauthorized
	s := newTestSynchronizer(t,
		LogicalRecord{Name: "home.example.com", TTL: 1, Families: []ip.Family{ip.IPv4, ip.IPv6}},
		client, fixedResolver("198.51.100.7", "2001:db8::1"))

	err := s.Sync(context.Background())

	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *ProviderError, got %T: %v", err, err)
	}
	if provErr.Action != ActionSearch || !provider.IsUnauthorized(err) {
		t.Errorf("unexpected provider error: %v", err)
	}
	if lists, _, _ := client.counts(); lists != 1 {
		t.Errorf("expected fail-fast after first search, got %d searches", lists)
	}
}

func TestSynchronizer_CreateFailureDoesNotMemoize(t *testing.T) {
	client := newMockClient()
	client.createErr = provider.ErrConflict
	s := newTestSynchronizer(t,
		LogicalRecord{Name: "home.example.com", TTL: 1, Families: []ip.Family{ip.IPv4}},
		client, fixedResolver("198.51.100.7", "2001:db8::1"))

	result := s.SyncResult(context.Background())
	if !provider.IsConflict(result.Err) {
		t.Fatalf("expected conflict error, got %v", result.Err)
	}
	if _, ok := s.MemoizedID(ip.IPv4); ok {
		t.Error("expected nothing memoized after failed create")
	}
	if len(result.Actions) != 1 || result.Actions[0].Status != StatusFailed {
		t.Errorf("expected one failed action, got %+v", result.Actions)
	}
}

func TestSynchronizer_StaleMemoizedID(t *testing.T) {
	client := newMockClient(aRecord("rec-1", "home.example.com", "192.0.2.1"))
	s := newTestSynchronizer(t,
		LogicalRecord{Name: "home.example.com", TTL: 1, Families: []ip.Family{ip.IPv4}},
		client, fixedResolver("198.51.100.7", "2001:db8::1"))

	if err := s.Sync(context.Background()); err != nil {
		t.Fatalf("first Sync failed: %v", err)
	}

	// The record is deleted out of band.
	client.mu.Lock()
	client.updateErr = provider.ErrNotFound
	client.mu.Unlock()

	err := s.Sync(context.Background())
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *ProviderError, got %T: %v", err, err)
	}
	if !provErr.Stale() || provErr.RecordID != "rec-1" {
		t.Errorf("expected a stale id error for rec-1, got %+v", provErr)
	}
	if !strings.Contains(err.Error(), "restart") {
		t.Errorf("expected error to explain the stale id, got %v", err)
	}

	// The memo is kept; no new search happens.
	if lists, _, _ := client.counts(); lists != 1 {
		t.Errorf("expected no further search, got %d", lists)
	}
	if id, _ := s.MemoizedID(ip.IPv4); id != "rec-1" {
		t.Errorf("expected memo to be kept, got %q", id)
	}
}

func TestSynchronizer_UpdateEveryPass(t *testing.T) {
	client := newMockClient(aRecord("rec-1", "home.example.com", "198.51.100.7"))
	s := newTestSynchronizer(t,
		LogicalRecord{Name: "home.example.com", TTL: 1, Families: []ip.Family{ip.IPv4}},
		client, fixedResolver("198.51.100.7", "2001:db8::1"))

	for i := 0; i < 3; i++ {
		if err := s.Sync(context.Background()); err != nil {
			t.Fatalf("Sync failed: %v", err)
		}
	}

	// Content already matches, but updates are unconditional.
	if _, _, updates := client.counts(); updates != 3 {
		t.Errorf("expected 3 updates, got %d", updates)
	}
}

func TestErrors_Messages(t *testing.T) {
	ambiguous := &AmbiguousMatchError{Name: "home.example.com", Family: ip.IPv6, Count: 3}
	if !strings.Contains(ambiguous.Error(), "found 3 AAAA records named home.example.com") {
		t.Errorf("unexpected message: %s", ambiguous.Error())
	}

	provErr := &ProviderError{Record: "home.example.com", Family: ip.IPv4, Action: ActionCreate, Err: provider.ErrRateLimited}
	if provErr.Stale() {
		t.Error("create failures are never stale")
	}
	if !strings.HasPrefix(provErr.Error(), "create A record for home.example.com") {
		t.Errorf("unexpected message: %s", provErr.Error())
	}

	resErr := &ResolutionError{Record: "home.example.com", Family: ip.IPv6, Err: ip.ErrNoAnswer}
	if !errors.Is(resErr, ip.ErrNoAnswer) {
		t.Error("expected ResolutionError to unwrap")
	}
}
