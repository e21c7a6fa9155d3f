package config

import "errors"

// Validation errors returned by Config.Validate. Sentinels rather than
// ad hoc errors so main can match with errors.Is and choose exit codes.
var (
	// ErrNoTarget means no URL was given on the command line or via --list.
	ErrNoTarget = errors.New("no target specified: provide a URL or use --list")

	// ErrNoProxyAddress means the SOCKS proxy address was cleared.
	ErrNoProxyAddress = errors.New("proxy address must not be empty")

	// ErrInvalidTimeout means the fetch timeout is zero or negative.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize means the batch concurrency is zero or negative.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidMaxRedirects means a negative redirect budget was given.
	ErrInvalidMaxRedirects = errors.New("invalid max redirects: must be non-negative")

	// ErrInvalidMaxBodySize means a negative body cap was given.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")
)
