package transport

import (
	"context"
	"crypto/tls"
	"net"
)

// TLSLayer wraps an established stream in an encrypted session.
// Wrap performs the handshake before returning; a handshake failure is
// terminal for that connection attempt and is never retried.
//
// The layer is only consulted for HTTPS origins; plaintext HTTP streams
// bypass it entirely.
type TLSLayer interface {
	Wrap(ctx context.Context, conn net.Conn, serverName string) (net.Conn, error)
}

// StdTLSLayer is a TLSLayer backed by crypto/tls.
type StdTLSLayer struct {
	// config is the base TLS configuration. ServerName is set per
	// connection; the rest is used as provided.
	config *tls.Config
}

// NewStdTLSLayer creates a TLSLayer from the given configuration.
// A nil config yields library defaults with full certificate verification.
//
// Note: hidden services typically present self-signed certificates; the
// .onion address itself authenticates the endpoint via the onion service
// protocol. Callers targeting HTTPS .onion services usually need a config
// with InsecureSkipVerify set.
func NewStdTLSLayer(config *tls.Config) *StdTLSLayer {
	if config == nil {
		config = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return &StdTLSLayer{config: config}
}

// Wrap performs a client-side TLS handshake over conn for serverName.
// On failure the underlying connection is closed and the handshake error
// returned; on success the encrypted stream replaces the raw one.
func (l *StdTLSLayer) Wrap(ctx context.Context, conn net.Conn, serverName string) (net.Conn, error) {
	cfg := l.config.Clone()
	if cfg.ServerName == "" {
		cfg.ServerName = serverName
	}

	tlsConn := tls.Client(conn, cfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = conn.Close() //nolint:errcheck // Connection is unusable after a failed handshake
		return nil, err
	}
	return tlsConn, nil
}
