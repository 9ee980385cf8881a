package provider

import (
	"errors"
	"fmt"
)

// Sentinels that provider implementations map their API failures onto.
var (
	ErrNotFound            = errors.New("record not found")
	ErrConflict            = errors.New("record already exists")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// Op names the provider call that failed.
type Op string

// Provider operations.
const (
	OpPing   Op = "ping"
	OpFind   Op = "find"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpEnable Op = "enable"
)

// ConfigError reports a missing or malformed provider setting.
type ConfigError struct {
	Field   string
	Value   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("configuration error: %s=%q: %s", e.Field, e.Value, e.Message)
}

// ErrConfigMissing reports a required setting that is empty.
func ErrConfigMissing(field string) error {
	return &ConfigError{Field: field, Message: "required but not set"}
}

// ErrConfigInvalid reports a setting whose value cannot be used.
func ErrConfigInvalid(field, value, message string) error {
	return &ConfigError{Field: field, Value: value, Message: message}
}

// ProviderError attaches the provider, operation and target hostname to a
// failed call. Target is empty for calls that are not about one record.
type ProviderError struct {
	Provider string
	Op       Op
	Target   string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Op, e.Err)
	}
	return fmt.Sprintf("provider %s: %s %s: %v", e.Provider, e.Op, e.Target, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError returns nil when err is nil.
func WrapError(provider string, op Op, target string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Op: op, Target: target, Err: err}
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err is or wraps ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsUnauthorized reports whether err is or wraps ErrUnauthorized.
func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }

// IsProviderUnavailable reports whether err is or wraps ErrProviderUnavailable.
// Callers may retry these on the next cycle.
func IsProviderUnavailable(err error) bool { return errors.Is(err, ErrProviderUnavailable) }
