// Package log provides slog handlers that redact credentials before
// they reach the log output.
//
// HTTP clients routinely carry secrets in headers, and a client that
// talks to onion services may also handle service key material. The
// RedactHandler wraps any slog.Handler and masks attribute values that
// arrive under credential keys (Authorization, Cookie, password) or
// that look like credentials themselves (JWTs, Bearer values, PEM
// private key blocks, onion service secret keys). Masking applies at
// every log level, so a debug run can be shared without scrubbing.
//
// Typical use:
//
//	logger := log.NewLogger(os.Stderr, verbose)
//	logger.Info("request sent",
//	    "authorization", "Bearer abc123", // logged as ***REDACTED***
//	    "url", "http://example.onion/",
//	)
package log
