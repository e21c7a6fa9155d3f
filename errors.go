package torhttp

import "github.com/nao1215/torhttp/internal/model"

// Client error taxonomy. Every error returned by a Client wraps exactly
// one of these sentinels; match with errors.Is and inspect the
// underlying cause with errors.Unwrap or errors.As.
//
// The engine never swallows an error: each failure path either surfaces
// one of these or, internally, downgrades a connection from poolable to
// discarded.
var (
	// ErrInvalidURL is returned for malformed URLs, unsupported schemes,
	// invalid onion addresses, and onion targets forbidden by policy.
	ErrInvalidURL = model.ErrInvalidURL

	// ErrCircuitFailure is returned when an anonymized stream to the
	// target could not be established. The Tor-side cause is wrapped.
	ErrCircuitFailure = model.ErrCircuitFailure

	// ErrTLS is returned on handshake or certificate validation failure.
	// The connection is never pooled.
	ErrTLS = model.ErrTLS

	// ErrTimeout is returned when the request deadline expires during
	// connect, handshake, or the exchange, and when the caller cancels
	// the request context. The connection is discarded.
	ErrTimeout = model.ErrTimeout

	// ErrProtocol is returned when the peer sends malformed HTTP framing
	// or the response exceeds the configured body size limit. The
	// connection is discarded.
	ErrProtocol = model.ErrProtocol

	// ErrConfig is returned by ClientConfigBuilder.Build for invalid
	// configurations. It never occurs after a Client is constructed.
	ErrConfig = model.ErrConfig
)
