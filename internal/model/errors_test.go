package model

import (
	"errors"
	"io"
	"testing"
)

// TestClassify tests taxonomy matching and cause preservation.
func TestClassify(t *testing.T) {
	t.Parallel()

	t.Run("matches sentinel via errors.Is", func(t *testing.T) {
		t.Parallel()

		err := Classify(ErrTimeout, io.ErrUnexpectedEOF)
		if !errors.Is(err, ErrTimeout) {
			t.Error("expected errors.Is(err, ErrTimeout)")
		}
		if errors.Is(err, ErrProtocol) {
			t.Error("must not match a different sentinel")
		}
	})

	t.Run("cause reachable via errors.Is", func(t *testing.T) {
		t.Parallel()

		err := Classify(ErrCircuitFailure, io.ErrClosedPipe)
		if !errors.Is(err, io.ErrClosedPipe) {
			t.Error("expected the wrapped cause to remain matchable")
		}
	})

	t.Run("no double wrapping", func(t *testing.T) {
		t.Parallel()

		inner := Classify(ErrProtocol, io.ErrUnexpectedEOF)
		outer := Classify(ErrProtocol, inner)
		if outer != inner {
			t.Error("re-classifying with the same sentinel must be a no-op")
		}
	})

	t.Run("nil cause allowed", func(t *testing.T) {
		t.Parallel()

		err := Classify(ErrConfig, nil)
		if !errors.Is(err, ErrConfig) {
			t.Error("expected errors.Is(err, ErrConfig)")
		}
		if err.Error() != ErrConfig.Error() {
			t.Errorf("Error() = %q, want %q", err.Error(), ErrConfig.Error())
		}
	})

	t.Run("formatted cause", func(t *testing.T) {
		t.Parallel()

		err := Classifyf(ErrInvalidURL, "unsupported scheme %q", "ftp")
		if !errors.Is(err, ErrInvalidURL) {
			t.Error("expected errors.Is(err, ErrInvalidURL)")
		}
		want := `invalid or unsupported URL: unsupported scheme "ftp"`
		if err.Error() != want {
			t.Errorf("Error() = %q, want %q", err.Error(), want)
		}
	})
}
