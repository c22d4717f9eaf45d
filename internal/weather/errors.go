package weather

import (
	"errors"
	"fmt"
)

// Failure kinds surfaced by the resolver. Use errors.Is to test for them.
var (
	// ErrLocationNotResolved means geocoding found no match for the place.
	ErrLocationNotResolved = errors.New("location not resolved")
	// ErrProviderUnavailable means the provider did not answer usefully
	// (network failure, timeout, non-2xx status, open circuit).
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrNormalization means the provider answered but the document lacked
	// the structure needed to extract any canonical field.
	ErrNormalization = errors.New("provider response could not be normalized")
)

// Error is a typed resolver failure.
type Error struct {
	Op       string
	Provider string
	Kind     error
	Err      error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Provider != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Provider)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the failure kind so callers can use errors.Is(err, ErrX).
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an *Error of the given kind.
func NewError(kind error, op, provider string, err error) *Error {
	return &Error{Op: op, Provider: provider, Kind: kind, Err: err}
}

// KindOf returns the failure kind carried by err, or nil when err is not a
// resolver failure.
func KindOf(err error) error {
	for _, kind := range []error{ErrLocationNotResolved, ErrProviderUnavailable, ErrNormalization} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
