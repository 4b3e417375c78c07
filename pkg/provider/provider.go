// Package provider defines the contract between the record synchronizer and a DNS provider.
package provider

import "context"

// RecordType represents the type of DNS record.
type RecordType string

const (
	RecordTypeA    RecordType = "A"
	RecordTypeAAAA RecordType = "AAAA"
)

// Record is a DNS record as stored at the provider.
type Record struct {
	ID      string // Provider-assigned identifier, empty until created
	Name    string
	Type    RecordType
	Content string // Address literal for A/AAAA records
	TTL     int
	Proxied bool
}

// Client is the set of remote record operations the synchronizer depends on.
// Every call is scoped to the zone the client was built for.
type Client interface {
	// ListRecords returns every record in the zone whose name equals name,
	// regardless of type. Callers filter by type themselves.
	ListRecords(ctx context.Context, name string) ([]Record, error)

	// CreateRecord creates record and returns it with the provider-assigned ID set.
	CreateRecord(ctx context.Context, record Record) (Record, error)

	// UpdateRecord replaces the record identified by id with record.
	UpdateRecord(ctx context.Context, id string, record Record) error
}

// Provider is a configured provider instance bound to one credential and zone.
type Provider interface {
	Client

	// Name returns the provider instance name (e.g., "cloudflare-0").
	Name() string

	// Type returns the provider type (e.g., "cloudflare").
	Type() string

	// Ping checks that the provider is reachable and the credential is accepted.
	Ping(ctx context.Context) error
}

// FilterByType returns the records of type t, preserving order.
func FilterByType(records []Record, t RecordType) []Record {
	var out []Record
	for _, r := range records {
		if r.Type == t {
			out = append(out, r)
		}
	}
	return out
}
