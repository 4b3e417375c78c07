package reconciler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"sync"
	"testing"

	"gitlab.bluewillows.net/root/ddnsweaver/internal/ip"
	"gitlab.bluewillows.net/root/ddnsweaver/pkg/provider"
)

// updateCall records one UpdateRecord invocation.
type updateCall struct {
	ID     string
	Record provider.Record
}

// mockClient implements provider.Client for testing.
// It tracks every call for verification.
type mockClient struct {
	mu sync.Mutex

	records []provider.Record
	listErr error

	createErr error
	nextID    int
	updateErr error

	listCalls int
	created   []provider.Record
	updates   []updateCall

	// onList, when set, runs on every ListRecords call.
	onList func(calls int)
}

func newMockClient(records ...provider.Record) *mockClient {
	return &mockClient{records: records}
}

func (m *mockClient) ListRecords(_ context.Context, name string) ([]provider.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.listCalls++
	if m.onList != nil {
		m.onList(m.listCalls)
	}
	if m.listErr != nil {
		return nil, m.listErr
	}

	var out []provider.Record
	for _, r := range m.records {
		if r.Name == name {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockClient) CreateRecord(_ context.Context, r provider.Record) (provider.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return provider.Record{}, m.createErr
	}

	m.nextID++
	r.ID = fmt.Sprintf("created-%d", m.nextID)
	m.created = append(m.created, r)
	m.records = append(m.records, r)
	return r, nil
}

func (m *mockClient) UpdateRecord(_ context.Context, id string, r provider.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return m.updateErr
	}
	m.updates = append(m.updates, updateCall{ID: id, Record: r})
	return nil
}

func (m *mockClient) counts() (lists, creates, updates int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls, len(m.created), len(m.updates)
}

// fixedResolver returns the same address per family on every call.
func fixedResolver(v4, v6 string) ip.Resolver {
	return ip.ResolverFunc(func(_ context.Context, f ip.Family) (netip.Addr, error) {
		switch f {
		case ip.IPv4:
			return netip.MustParseAddr(v4), nil
		default:
			return netip.MustParseAddr(v6), nil
		}
	})
}

// failingResolver fails for every family.
func failingResolver(err error) ip.Resolver {
	return ip.ResolverFunc(func(context.Context, ip.Family) (netip.Addr, error) {
		return netip.Addr{}, err
	})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSynchronizer(t *testing.T, record LogicalRecord, client provider.Client, resolver ip.Resolver) *Synchronizer {
	t.Helper()
	return NewSynchronizer(record, client, resolver, WithSyncLogger(discardLogger()))
}

func aRecord(id, name, content string) provider.Record {
	return provider.Record{ID: id, Name: name, Type: provider.RecordTypeA, Content: content, TTL: 1}
}

func aaaaRecord(id, name, content string) provider.Record {
	return provider.Record{ID: id, Name: name, Type: provider.RecordTypeAAAA, Content: content, TTL: 1}
}
