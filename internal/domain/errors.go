package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a lookup miss for any entity (segment, file, project,
// provider config, template, job). Never retried.
var ErrNotFound = errors.New("not found")

// ErrUnsupportedProvider marks an AIProviderConfig naming a provider outside
// the supported set. Fails fast; not retried.
var ErrUnsupportedProvider = errors.New("unsupported provider")

// ErrAlreadyExists marks an insert that lost a race with an identical row.
var ErrAlreadyExists = errors.New("already exists")

// NotFoundError wraps ErrNotFound with the entity kind and id.
func NotFoundError(kind string, id any) error {
	return fmt.Errorf("%s %v: %w", kind, id, ErrNotFound)
}

// ValidationError rejects bad input synchronously, before any state
// mutation. The message is surfaced to the caller verbatim.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ProviderError marks a failed AI backend call. The queue layer treats it
// as retryable; the segment it belonged to is marked ERROR with Msg.
type ProviderError struct {
	Provider string
	Msg      string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Msg, e.Err)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Msg)
}

func (e *ProviderError) Unwrap() error { return e.Err }
