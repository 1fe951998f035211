package browserlens

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	PageUnavailable      Kind = "PageUnavailable"
	ExtractionTimeout    Kind = "ExtractionTimeout"
	DiffFailure          Kind = "DiffFailure"
	RefOverflow          Kind = "RefOverflow"
	ConcurrentObservation Kind = "ConcurrentObservation"
	ConfigurationError   Kind = "ConfigurationError"
)

// Error is the single error type BrowserLens returns. Kind is always set;
// Detail is a human-readable message. Use errors.As to recover the Kind.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// IsKind reports whether err (or anything it wraps) is a *Error of the
// given kind.
func IsKind(err error, kind Kind) bool {
	var be *Error
	if !errors.As(err, &be) {
		return false
	}
	return be.Kind == kind
}
