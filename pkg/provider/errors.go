package provider

import (
	"errors"
	"fmt"
)

// Sentinels that provider implementations map their API failures onto.
// Callers test for them with errors.Is or the Is* helpers below.
var (
	ErrNotFound            = errors.New("record not found")
	ErrConflict            = errors.New("record already exists")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrRateLimited         = errors.New("rate limited")
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrInvalidConfig matches every *ConfigError.
	ErrInvalidConfig = errors.New("invalid provider configuration")
)

// ConfigError reports one bad setting passed to a provider Factory.
type ConfigError struct {
	Field  string
	Value  string // empty when the setting is missing
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %q: %s", e.Field, e.Value, e.Reason)
}

// Is reports ErrInvalidConfig as the error kind.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// ErrConfigMissing reports a required setting that was left empty.
func ErrConfigMissing(field string) error {
	return &ConfigError{Field: field, Reason: "is required"}
}

// ErrConfigInvalid reports a setting whose value was rejected.
func ErrConfigInvalid(field, value, reason string) error {
	return &ConfigError{Field: field, Value: value, Reason: reason}
}

// OpError records which provider instance and operation produced Err.
type OpError struct {
	Provider string
	Op       string
	Err      error
}

func (e *OpError) Error() string {
	return e.Provider + " " + e.Op + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error { return e.Err }

// WrapError attaches provider context to err. A nil err stays nil.
func WrapError(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Provider: provider, Op: op, Err: err}
}

// The Is* helpers report whether err wraps the matching sentinel.
func IsNotFound(err error) bool            { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool            { return errors.Is(err, ErrConflict) }
func IsUnauthorized(err error) bool        { return errors.Is(err, ErrUnauthorized) }
func IsRateLimited(err error) bool         { return errors.Is(err, ErrRateLimited) }
func IsProviderUnavailable(err error) bool { return errors.Is(err, ErrProviderUnavailable) }
func IsInvalidConfig(err error) bool       { return errors.Is(err, ErrInvalidConfig) }
