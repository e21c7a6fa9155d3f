package log

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// redactedKeys lists attribute keys whose values never reach the log.
// The set covers HTTP credential headers the client may forward and the
// key material an embedded onion service handles.
var redactedKeys = map[string]bool{
	// HTTP credential headers
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,

	// Generic credentials
	"password":     true,
	"secret":       true,
	"token":        true,
	"api_key":      true,
	"access_token": true,
	"private_key":  true,
	"credentials":  true,
}

// redactedValuePatterns matches credential-shaped values regardless of
// the attribute key they arrive under.
var redactedValuePatterns = []*regexp.Regexp{
	// JWT
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),

	// Bearer and Basic authorization values
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),

	// PEM private key markers
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),

	// Tor v3 onion service secret key marker
	regexp.MustCompile(`== ed25519v1-secret:`),
}

// Redacted replaces any value the handler decides to hide.
const Redacted = "***REDACTED***"

// RedactHandler is an slog.Handler that strips credentials from log
// records before delegating to an underlying handler. It works with any
// backend handler and with libraries that accept a *slog.Logger.
type RedactHandler struct {
	handler slog.Handler
}

// NewRedactHandler wraps handler with credential redaction. A nil
// handler falls back to slog.Default().Handler().
func NewRedactHandler(handler slog.Handler) *RedactHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &RedactHandler{handler: handler}
}

// Enabled delegates to the underlying handler.
func (h *RedactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle rewrites the record with redacted attributes and passes it on.
func (h *RedactHandler) Handle(ctx context.Context, r slog.Record) error {
	clean := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(h.redactAttr(a))
		return true
	})
	return h.handler.Handle(ctx, clean)
}

// WithAttrs redacts the attributes before adding them.
func (h *RedactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = h.redactAttr(a)
	}
	return &RedactHandler{handler: h.handler.WithAttrs(clean)}
}

// WithGroup delegates to the underlying handler.
func (h *RedactHandler) WithGroup(name string) slog.Handler {
	return &RedactHandler{handler: h.handler.WithGroup(name)}
}

// redactAttr hides an attribute's value when its key or its value looks
// like a credential. Groups are walked recursively.
func (h *RedactHandler) redactAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		clean := make([]slog.Attr, len(attrs))
		for i, member := range attrs {
			clean[i] = h.redactAttr(member)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(clean...)}
	}

	key := strings.ToLower(a.Key)
	if redactedKeys[key] || hasCredentialKeyword(key) {
		return slog.String(a.Key, Redacted)
	}

	if a.Value.Kind() == slog.KindString && isCredentialValue(a.Value.String()) {
		return slog.String(a.Key, Redacted)
	}

	return a
}

// hasCredentialKeyword reports whether key contains a credential-related
// substring. The bare word "key" is deliberately absent from the list;
// it matches too much ("primary_key", "keyboard"), and the dangerous
// compounds are already in redactedKeys.
func hasCredentialKeyword(key string) bool {
	keywords := []string{"password", "secret", "token", "auth", "credential", "private"}
	for _, keyword := range keywords {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

func isCredentialValue(value string) bool {
	for _, pattern := range redactedValuePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// NewLogger returns a text logger with credential redaction, writing to
// w. Verbose selects Debug level, otherwise Warn.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(NewRedactHandler(handler))
}

// NewJSONLogger is NewLogger with JSON output, for log aggregation.
func NewJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(NewRedactHandler(handler))
}
