// Package reconciler keeps configured DNS records pointed at the host's current
// public addresses.
package reconciler

import (
	"errors"
	"fmt"
	"time"

	"gitlab.bluewillows.net/root/ddnsweaver/internal/ip"
)

// ActionType represents a provider call made while syncing a record.
type ActionType string

const (
	// ActionSearch looks up existing records by name.
	ActionSearch ActionType = "search"
	// ActionCreate indicates a record was created because none existed.
	ActionCreate ActionType = "create"
	// ActionUpdate indicates a record's content was written.
	ActionUpdate ActionType = "update"
)

// ActionStatus represents the outcome of an action.
type ActionStatus string

const (
	// StatusSuccess indicates the action completed successfully.
	StatusSuccess ActionStatus = "success"
	// StatusFailed indicates the action failed.
	StatusFailed ActionStatus = "failed"
)

// Action is a single create or update applied to one family of a record.
type Action struct {
	Type     ActionType
	Status   ActionStatus
	Record   string
	Family   ip.Family
	RecordID string
	Content  string
	Error    string
}

// String returns a human-readable representation of the action.
func (a Action) String() string {
	base := fmt.Sprintf("[%s] %s %s %s -> %s", a.Status, a.Type, a.Family.RecordType(), a.Record, a.Content)
	if a.RecordID != "" {
		base += fmt.Sprintf(" (id %s)", a.RecordID)
	}
	if a.Error != "" {
		base += ": " + a.Error
	}
	return base
}

// RecordResult is the outcome of one Sync call.
type RecordResult struct {
	Record   string
	Actions  []Action
	Duration time.Duration
	Err      error
}

// Failed reports whether the sync ended in an error.
func (r RecordResult) Failed() bool {
	return r.Err != nil
}

// PassResult holds the results of syncing every record once.
type PassResult struct {
	StartTime time.Time
	EndTime   time.Time
	Records   []RecordResult
}

// NewPassResult creates a PassResult with the start time set to now.
func NewPassResult() *PassResult {
	return &PassResult{StartTime: time.Now()}
}

// Add appends the result of one record.
func (p *PassResult) Add(r RecordResult) {
	p.Records = append(p.Records, r)
}

// Complete marks the pass as complete with the end time set to now.
func (p *PassResult) Complete() {
	p.EndTime = time.Now()
}

// Duration returns the total pass duration.
func (p *PassResult) Duration() time.Duration {
	if p.EndTime.IsZero() {
		return time.Since(p.StartTime)
	}
	return p.EndTime.Sub(p.StartTime)
}

// Failed returns the records whose sync failed.
func (p *PassResult) Failed() []RecordResult {
	var failed []RecordResult
	for _, r := range p.Records {
		if r.Failed() {
			failed = append(failed, r)
		}
	}
	return failed
}

// FailedCount returns the number of failed records.
func (p *PassResult) FailedCount() int {
	return len(p.Failed())
}

// SyncedCount returns the number of records synced without error.
func (p *PassResult) SyncedCount() int {
	return len(p.Records) - p.FailedCount()
}

// HasErrors returns true if any record failed.
func (p *PassResult) HasErrors() bool {
	return p.FailedCount() > 0
}

// Err joins the errors of every failed record, or returns nil.
func (p *PassResult) Err() error {
	var errs []error
	for _, r := range p.Records {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}

// countActions counts successful actions of type t.
func (p *PassResult) countActions(t ActionType) int {
	n := 0
	for _, r := range p.Records {
		for _, a := range r.Actions {
			if a.Type == t && a.Status == StatusSuccess {
				n++
			}
		}
	}
	return n
}

// CreatedCount returns the number of records created.
func (p *PassResult) CreatedCount() int {
	return p.countActions(ActionCreate)
}

// UpdatedCount returns the number of records updated.
func (p *PassResult) UpdatedCount() int {
	return p.countActions(ActionUpdate)
}

// FailedRecords returns the names of the failed records in pass order.
func (p *PassResult) FailedRecords() []string {
	var names []string
	for _, r := range p.Failed() {
		names = append(names, r.Record)
	}
	return names
}
