package transport

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

// TestNewSOCKSProvider tests provider construction and address validation.
func TestNewSOCKSProvider(t *testing.T) {
	t.Parallel()

	t.Run("valid proxy address creates provider", func(t *testing.T) {
		t.Parallel()

		p, err := NewSOCKSProvider("127.0.0.1:9050")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p == nil {
			t.Fatal("expected non-nil provider")
		}
		if p.ProxyAddress() != "127.0.0.1:9050" {
			t.Errorf("ProxyAddress() = %q, want %q", p.ProxyAddress(), "127.0.0.1:9050")
		}
	})

	t.Run("empty address returns error", func(t *testing.T) {
		t.Parallel()

		_, err := NewSOCKSProvider("")
		if !errors.Is(err, ErrInvalidProxyAddress) {
			t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
		}
	})

	t.Run("address without port returns error", func(t *testing.T) {
		t.Parallel()

		_, err := NewSOCKSProvider("127.0.0.1")
		if !errors.Is(err, ErrInvalidProxyAddress) {
			t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
		}
	})
}

// TestIsValidProxyAddress tests the address format check.
func TestIsValidProxyAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		address string
		want    bool
	}{
		{name: "valid IP and port", address: "127.0.0.1:9050", want: true},
		{name: "valid hostname and port", address: "localhost:9150", want: true},
		{name: "port 1", address: "localhost:1", want: true},
		{name: "port 65535", address: "localhost:65535", want: true},
		{name: "empty", address: "", want: false},
		{name: "no port", address: "127.0.0.1", want: false},
		{name: "empty host", address: ":9050", want: false},
		{name: "empty port", address: "127.0.0.1:", want: false},
		{name: "port zero", address: "127.0.0.1:0", want: false},
		{name: "port too large", address: "127.0.0.1:65536", want: false},
		{name: "non-numeric port", address: "127.0.0.1:abc", want: false},
		{name: "too many colons", address: "127.0.0.1:9050:1", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := isValidProxyAddress(tt.address); got != tt.want {
				t.Errorf("isValidProxyAddress(%q) = %v, want %v", tt.address, got, tt.want)
			}
		})
	}
}

// TestSOCKSProviderOpenCancellation tests that Open honors context
// cancellation while the SOCKS handshake is stalled.
func TestSOCKSProviderOpenCancellation(t *testing.T) {
	t.Parallel()

	// A listener that accepts but never answers the SOCKS5 greeting,
	// so the dial stalls until the context fires.
	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to start mock server: %v", err)
	}
	defer listener.Close()

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(5 * time.Second)
	}()

	p, err := NewSOCKSProvider(listener.Addr().String())
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = p.Open(ctx, "example.com", 80)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Open did not respect the deadline, took %v", elapsed)
	}
}

// TestSOCKSProviderOpenThroughProxy tests a full Open through a minimal
// in-process SOCKS5 server.
func TestSOCKSProviderOpenThroughProxy(t *testing.T) {
	t.Parallel()

	// Target server the proxy "connects" to.
	target, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to start target: %v", err)
	}
	defer target.Close()

	go func() {
		conn, err := target.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte("hello"))
	}()

	// Minimal SOCKS5 server that accepts no-auth, acknowledges CONNECT,
	// and then pipes to the target.
	socks, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to start mock proxy: %v", err)
	}
	defer socks.Close()

	go func() {
		conn, err := socks.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		// Greeting: version + nmethods + methods.
		buf := make([]byte, 3)
		if _, err := conn.Read(buf); err != nil {
			return
		}
		if _, err := conn.Write([]byte{0x05, 0x00}); err != nil {
			return
		}

		// CONNECT request; reply success with a zero bind address.
		req := make([]byte, 256)
		if _, err := conn.Read(req); err != nil {
			return
		}
		if _, err := conn.Write([]byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0}); err != nil {
			return
		}

		upstream, err := net.Dial("tcp", target.Addr().String()) //nolint:noctx // test code
		if err != nil {
			return
		}
		defer upstream.Close()

		done := make(chan struct{})
		go func() {
			buf := make([]byte, 4096)
			for {
				n, err := upstream.Read(buf)
				if n > 0 {
					if _, werr := conn.Write(buf[:n]); werr != nil {
						break
					}
				}
				if err != nil {
					break
				}
			}
			close(done)
		}()
		<-done
	}()

	p, err := NewSOCKSProvider(socks.Addr().String())
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := p.Open(ctx, "example.com", 80)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer conn.Close()

	got := make([]byte, 5)
	if _, err := conn.Read(got); err != nil {
		t.Fatalf("read through proxy failed: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("read %q, want %q", got, "hello")
	}
}
