package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"golang.org/x/net/proxy"
)

// Stream acquisition errors.
var (
	// ErrInvalidProxyAddress is returned when the proxy address format is
	// invalid. Expected format is "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")
)

// StreamProvider opens an anonymized, ordered, reliable byte stream to a
// host and port. The overlay network behind the provider is opaque; a
// single Open may trigger circuit construction and take several seconds.
//
// Open must honor ctx: cancellation or deadline expiry aborts the attempt.
// Concurrent calls are independent.
type StreamProvider interface {
	Open(ctx context.Context, host string, port uint16) (net.Conn, error)
}

// SOCKSProvider is a StreamProvider backed by a Tor daemon's SOCKS5 port.
// Hostnames, including .onion addresses, are resolved by the proxy so no
// DNS request ever leaves the local machine.
//
// Design decision: We only use the daemon's SOCKS5 connectivity rather
// than managing the daemon itself; EmbeddedTor covers the managed case
// and hands its SOCKS address to this type.
type SOCKSProvider struct {
	// proxyAddress is the Tor SOCKS5 proxy address in "host:port" format.
	proxyAddress string

	// dialer is the SOCKS5 dialer for Tor connections.
	// Cached to avoid recreating it for each connection.
	dialer proxy.Dialer
}

// NewSOCKSProvider creates a StreamProvider that dials through the Tor
// SOCKS5 proxy at proxyAddress (e.g. "127.0.0.1:9050").
//
// The address format is validated but the proxy is not contacted; use
// CheckProxy to verify a daemon is actually listening.
func NewSOCKSProvider(proxyAddress string) (*SOCKSProvider, error) {
	if !isValidProxyAddress(proxyAddress) {
		return nil, ErrInvalidProxyAddress
	}

	// nil auth: Tor's SOCKS port does not require authentication.
	dialer, err := proxy.SOCKS5("tcp", proxyAddress, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	return &SOCKSProvider{
		proxyAddress: proxyAddress,
		dialer:       dialer,
	}, nil
}

// Open dials host:port through the SOCKS5 proxy.
//
// The proxy.Dialer interface has no context support, so the dial runs in
// a goroutine raced against ctx. On cancellation the goroutine's eventual
// connection, if any, is closed rather than leaked.
func (p *SOCKSProvider) Open(ctx context.Context, host string, port uint16) (net.Conn, error) {
	address := net.JoinHostPort(host, strconv.Itoa(int(port)))

	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)

	go func() {
		conn, err := p.dialer.Dial("tcp", address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case result := <-resultCh:
		return result.conn, result.err
	case <-ctx.Done():
		// The dial goroutine may still complete; close its connection
		// so the circuit is not held open.
		go func() {
			if result := <-resultCh; result.conn != nil {
				_ = result.conn.Close() //nolint:errcheck // Best effort cleanup
			}
		}()
		return nil, ctx.Err()
	}
}

// ProxyAddress returns the configured proxy address.
func (p *SOCKSProvider) ProxyAddress() string {
	return p.proxyAddress
}

// isValidProxyAddress checks if the address is in valid "host:port" format.
// A simple check is used rather than a full URL parser because the format
// is very specific (no scheme, no path, just host and port).
func isValidProxyAddress(address string) bool {
	parts := strings.Split(address, ":")
	if len(parts) != 2 {
		return false
	}

	host := parts[0]
	port := parts[1]

	if host == "" || port == "" {
		return false
	}

	portNum := 0
	for _, c := range port {
		if c < '0' || c > '9' {
			return false
		}
		portNum = portNum*10 + int(c-'0')
		if portNum > 65535 {
			return false
		}
	}

	return portNum >= 1
}
