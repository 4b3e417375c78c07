package reconciler

import (
	"errors"
	"fmt"

	"gitlab.bluewillows.net/root/ddnsweaver/internal/ip"
	"gitlab.bluewillows.net/root/ddnsweaver/pkg/provider"
)

// ErrAmbiguousMatch is the kind reported by *AmbiguousMatchError.
var ErrAmbiguousMatch = errors.New("ambiguous record match")

// ResolutionError reports that the public address for a family could not be determined.
type ResolutionError struct {
	Record string
	Family ip.Family
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving %s address for %s: %v", e.Family, e.Record, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// ProviderError reports a failed search, create or update call.
type ProviderError struct {
	Record   string
	Family   ip.Family
	Action   ActionType
	RecordID string
	Err      error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s %s record for %s", e.Action, e.Family.RecordType(), e.Record)
	if e.RecordID != "" {
		msg += fmt.Sprintf(" (id %s)", e.RecordID)
	}
	msg += ": " + e.Err.Error()

	if e.Stale() {
		msg += "; the remembered record id no longer exists, restart to look it up again"
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Stale reports whether an update failed because the remembered record id was
// deleted at the provider. Remembered ids are kept until the process restarts.
func (e *ProviderError) Stale() bool {
	return e.Action == ActionUpdate && e.RecordID != "" && provider.IsNotFound(e.Err)
}

// AmbiguousMatchError reports that a search returned more than one record of a family.
type AmbiguousMatchError struct {
	Name   string
	Family ip.Family
	Count  int
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("%s: found %d %s records named %s, expected at most one",
		ErrAmbiguousMatch, e.Count, e.Family.RecordType(), e.Name)
}

// Is reports ErrAmbiguousMatch as the error kind.
func (e *AmbiguousMatchError) Is(target error) bool {
	return target == ErrAmbiguousMatch
}
