// Package failure defines the typed errors returned by every resolver stage.
// Stages return *Error values instead of panicking so callers can render a
// structured "failed to resolve" state.
package failure

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a resolution failure.
type Kind int

const (
	UpstreamHTTPError Kind = iota
	InvalidKey
	TokenUnavailable
	VerificationFailed
	ExtractionEmpty
	UpstreamTimeout
)

func (k Kind) String() string {
	switch k {
	case InvalidKey:
		return "invalid_key"
	case TokenUnavailable:
		return "token_unavailable"
	case VerificationFailed:
		return "verification_failed"
	case ExtractionEmpty:
		return "extraction_empty"
	case UpstreamTimeout:
		return "upstream_timeout"
	default:
		return "upstream_http_error"
	}
}

// MarshalText renders the kind as its snake_case name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Error is a failure tagged with its Kind. Err keeps the underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	if e.Msg == "" {
		return e.Err.Error()
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap tags err with kind. A nil err yields nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf reports the kind of the first *Error in err's chain. Context
// deadlines map to UpstreamTimeout; anything else untyped is treated as an
// upstream HTTP failure.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return UpstreamTimeout
	}
	return UpstreamHTTPError
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether another attempt could change the outcome.
func Retryable(kind Kind) bool {
	return kind != InvalidKey
}
