package transport

import (
	"testing"
	"time"
)

// TestNewEmbeddedTor tests construction and option handling.
// Actually starting a daemon needs the Tor network and minutes of
// bootstrap time, so lifecycle beyond construction is not exercised here.
func TestNewEmbeddedTor(t *testing.T) {
	t.Parallel()

	t.Run("default startup timeout", func(t *testing.T) {
		t.Parallel()

		e := NewEmbeddedTor()
		if e.startupTimeout != 3*time.Minute {
			t.Errorf("startupTimeout = %v, want 3m", e.startupTimeout)
		}
		if e.IsRunning() {
			t.Error("expected IsRunning() = false before Start")
		}
	})

	t.Run("custom startup timeout", func(t *testing.T) {
		t.Parallel()

		e := NewEmbeddedTor(WithStartupTimeout(30 * time.Second))
		if e.startupTimeout != 30*time.Second {
			t.Errorf("startupTimeout = %v, want 30s", e.startupTimeout)
		}
	})

	t.Run("stop on unstarted instance is a no-op", func(t *testing.T) {
		t.Parallel()

		e := NewEmbeddedTor()
		if err := e.Stop(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("provider requires a running daemon", func(t *testing.T) {
		t.Parallel()

		e := NewEmbeddedTor()
		if _, err := e.NewProvider(); err == nil {
			t.Error("expected error from NewProvider on stopped daemon")
		}
	})

	t.Run("addresses empty before start", func(t *testing.T) {
		t.Parallel()

		e := NewEmbeddedTor()
		if e.SocksAddr() != "" {
			t.Errorf("SocksAddr() = %q, want empty", e.SocksAddr())
		}
		if e.ControlAddr() != "" {
			t.Errorf("ControlAddr() = %q, want empty", e.ControlAddr())
		}
	})
}
