package model

import (
	"errors"
	"fmt"
)

// Client error taxonomy.
// Every failure surfaced by the engine wraps exactly one of these
// sentinel errors, so callers can classify failures with errors.Is
// while the original cause stays reachable through errors.Unwrap.
//
// Design decision: We use package-level sentinel errors rather than an
// error-code enum. This matches standard library conventions and lets
// callers combine classification (errors.Is) with cause inspection
// (errors.As) without a custom matching API.
var (
	// ErrInvalidURL is returned for malformed URLs, unsupported schemes,
	// and onion addresses that fail validation. Never retried.
	ErrInvalidURL = errors.New("invalid or unsupported URL")

	// ErrCircuitFailure is returned when the overlay network could not
	// establish an anonymized stream to the target. The upstream cause
	// is wrapped; callers may retry at their own level.
	ErrCircuitFailure = errors.New("circuit stream establishment failed")

	// ErrTLS is returned on TLS handshake or certificate validation
	// failure. The connection is never pooled.
	ErrTLS = errors.New("TLS handshake failed")

	// ErrTimeout is returned when a deadline expires during connect,
	// handshake, or a request/response exchange. The connection is
	// discarded.
	ErrTimeout = errors.New("deadline exceeded")

	// ErrProtocol is returned when the peer sends malformed HTTP framing
	// or exceeds the configured body size limit. The connection is
	// discarded.
	ErrProtocol = errors.New("malformed HTTP response")

	// ErrConfig is returned by ClientConfigBuilder.Build for invalid
	// option combinations. Surfaced at build time only.
	ErrConfig = errors.New("invalid client configuration")
)

// classifiedError attaches a taxonomy sentinel to an underlying cause.
// errors.Is matches the sentinel, errors.Unwrap yields the cause.
type classifiedError struct {
	kind  error
	cause error
}

// Error implements the error interface.
func (e *classifiedError) Error() string {
	if e.cause == nil {
		return e.kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.kind.Error(), e.cause.Error())
}

// Is reports whether target is this error's taxonomy sentinel.
func (e *classifiedError) Is(target error) bool {
	return target == e.kind
}

// Unwrap returns the underlying cause, which may be nil.
func (e *classifiedError) Unwrap() error {
	return e.cause
}

// Classify wraps cause with the given taxonomy sentinel.
// If cause is already classified with the same sentinel, it is returned
// unchanged to avoid double wrapping.
func Classify(kind, cause error) error {
	if cause != nil && errors.Is(cause, kind) {
		return cause
	}
	return &classifiedError{kind: kind, cause: cause}
}

// Classifyf wraps a formatted message with the given taxonomy sentinel.
func Classifyf(kind error, format string, args ...any) error {
	return &classifiedError{kind: kind, cause: fmt.Errorf(format, args...)}
}
