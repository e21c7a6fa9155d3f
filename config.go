package torhttp

import (
	"crypto/tls"
	"time"

	"github.com/nao1215/torhttp/internal/model"
)

// Default configuration values. The Tor-flavored defaults lean generous:
// every connection crosses at least three relays, so clearnet-style
// timeouts would produce false failures against perfectly healthy
// hidden services.
const (
	// DefaultProxyAddress is the standard Tor daemon SOCKS5 address.
	// 127.0.0.1 rather than localhost avoids DNS resolution and IPv6
	// ambiguity on some systems.
	DefaultProxyAddress = "127.0.0.1:9050"

	// DefaultRequestTimeout bounds a whole exchange (write plus read).
	DefaultRequestTimeout = 30 * time.Second

	// DefaultConnectTimeout bounds stream establishment. Opening a
	// stream may require building a fresh circuit, which routinely
	// takes tens of seconds on a cold daemon.
	DefaultConnectTimeout = 60 * time.Second

	// DefaultMaxIdlePerOrigin is the idle connection cap per origin.
	// Kept small: each pooled connection holds a Tor circuit, a limited
	// resource on the local daemon.
	DefaultMaxIdlePerOrigin = 4

	// DefaultIdleTimeout is how long a pooled connection may sit unused.
	// Tor circuits are torn down server-side after inactivity, so a
	// stale connection is likely dead anyway.
	DefaultIdleTimeout = 90 * time.Second
)

// TorConfig holds the overlay-network side of the client configuration.
type TorConfig struct {
	// ProxyAddress is the Tor SOCKS5 proxy in "host:port" format.
	ProxyAddress string

	// AllowOnion permits requests to .onion addresses. On by default;
	// turning it off restricts the client to clearnet targets reached
	// through Tor exit nodes.
	AllowOnion bool

	// ConnectTimeout bounds a single stream-establishment attempt,
	// including any circuit construction the daemon performs.
	ConnectTimeout time.Duration
}

// DefaultTorConfig returns the standard overlay settings: local daemon,
// onion addresses allowed.
func DefaultTorConfig() TorConfig {
	return TorConfig{
		ProxyAddress:   DefaultProxyAddress,
		AllowOnion:     true,
		ConnectTimeout: DefaultConnectTimeout,
	}
}

// ClientConfig is the immutable configuration shared by all operations
// of a Client. Build one with ClientConfigBuilder; the zero value is not
// valid.
type ClientConfig struct {
	tlsConfig        *tls.Config
	tor              TorConfig
	requestTimeout   time.Duration
	maxIdlePerOrigin int
	idleTimeout      time.Duration
	maxBodySize      int64
	userAgent        string
}

// TLSConfig returns the TLS configuration, or nil when library defaults
// with full verification apply. TLS is selected per request by the
// origin's scheme, never by configuration.
func (c ClientConfig) TLSConfig() *tls.Config { return c.tlsConfig }

// Tor returns the overlay-network settings.
func (c ClientConfig) Tor() TorConfig { return c.tor }

// RequestTimeout returns the per-exchange deadline.
func (c ClientConfig) RequestTimeout() time.Duration { return c.requestTimeout }

// MaxIdlePerOrigin returns the per-origin idle connection cap.
func (c ClientConfig) MaxIdlePerOrigin() int { return c.maxIdlePerOrigin }

// IdleTimeout returns the pooled-connection expiry.
func (c ClientConfig) IdleTimeout() time.Duration { return c.idleTimeout }

// MaxBodySize returns the response body cap in bytes; zero means
// unlimited.
func (c ClientConfig) MaxBodySize() int64 { return c.maxBodySize }

// UserAgent returns the synthesized User-Agent value; empty means no
// User-Agent header is sent, which is the least fingerprintable choice.
func (c ClientConfig) UserAgent() string { return c.userAgent }

// ClientConfigBuilder assembles a ClientConfig through chainable setter
// calls in any order, with validation deferred to Build. A builder is a
// mutable staging area; the produced config is immutable.
type ClientConfigBuilder struct {
	cfg ClientConfig
}

// NewClientConfigBuilder creates a builder preloaded with defaults, so
// Build() with no setter calls yields a valid configuration.
func NewClientConfigBuilder() *ClientConfigBuilder {
	return &ClientConfigBuilder{
		cfg: ClientConfig{
			tor:              DefaultTorConfig(),
			requestTimeout:   DefaultRequestTimeout,
			maxIdlePerOrigin: DefaultMaxIdlePerOrigin,
			idleTimeout:      DefaultIdleTimeout,
		},
	}
}

// TLSConfig sets the TLS configuration used for HTTPS origins.
// nil keeps library defaults with full certificate verification.
// Hidden services usually present self-signed certificates, so HTTPS
// .onion targets typically need InsecureSkipVerify here.
func (b *ClientConfigBuilder) TLSConfig(cfg *tls.Config) *ClientConfigBuilder {
	b.cfg.tlsConfig = cfg
	return b
}

// TorConfig sets the overlay-network configuration.
func (b *ClientConfigBuilder) TorConfig(cfg TorConfig) *ClientConfigBuilder {
	b.cfg.tor = cfg
	return b
}

// RequestTimeout sets the per-exchange deadline.
func (b *ClientConfigBuilder) RequestTimeout(d time.Duration) *ClientConfigBuilder {
	b.cfg.requestTimeout = d
	return b
}

// MaxIdlePerOrigin sets the per-origin idle connection cap.
// Zero disables pooling entirely.
func (b *ClientConfigBuilder) MaxIdlePerOrigin(n int) *ClientConfigBuilder {
	b.cfg.maxIdlePerOrigin = n
	return b
}

// IdleTimeout sets the pooled-connection expiry. Zero disables expiry.
func (b *ClientConfigBuilder) IdleTimeout(d time.Duration) *ClientConfigBuilder {
	b.cfg.idleTimeout = d
	return b
}

// MaxBodySize caps response bodies in bytes. Zero means unlimited.
func (b *ClientConfigBuilder) MaxBodySize(n int64) *ClientConfigBuilder {
	b.cfg.maxBodySize = n
	return b
}

// UserAgent sets the User-Agent synthesized for requests that carry
// none. Empty (the default) sends no User-Agent header at all.
func (b *ClientConfigBuilder) UserAgent(ua string) *ClientConfigBuilder {
	b.cfg.userAgent = ua
	return b
}

// Build validates the staged configuration and returns the immutable
// result. All validation failures are classified as ErrConfig.
//
// Note: an HTTPS target with no TLS configuration is valid. TLS is
// selected per request by the origin's scheme and falls back to library
// defaults, so Build does not couple TLS settings to anything else.
func (b *ClientConfigBuilder) Build() (ClientConfig, error) {
	cfg := b.cfg

	if cfg.tor.ProxyAddress == "" {
		return ClientConfig{}, model.Classifyf(model.ErrConfig, "proxy address must not be empty")
	}
	if cfg.tor.ConnectTimeout <= 0 {
		return ClientConfig{}, model.Classifyf(model.ErrConfig, "connect timeout must be positive, got %v", cfg.tor.ConnectTimeout)
	}
	if cfg.requestTimeout <= 0 {
		return ClientConfig{}, model.Classifyf(model.ErrConfig, "request timeout must be positive, got %v", cfg.requestTimeout)
	}
	if cfg.maxIdlePerOrigin < 0 {
		return ClientConfig{}, model.Classifyf(model.ErrConfig, "max idle per origin must not be negative, got %d", cfg.maxIdlePerOrigin)
	}
	if cfg.idleTimeout < 0 {
		return ClientConfig{}, model.Classifyf(model.ErrConfig, "idle timeout must not be negative, got %v", cfg.idleTimeout)
	}
	if cfg.maxBodySize < 0 {
		return ClientConfig{}, model.Classifyf(model.ErrConfig, "max body size must not be negative, got %d", cfg.maxBodySize)
	}

	return cfg, nil
}

// DefaultClientConfig returns the configuration Build() produces when no
// setters are called.
func DefaultClientConfig() ClientConfig {
	cfg, err := NewClientConfigBuilder().Build()
	if err != nil {
		// Defaults are constants validated by tests; this cannot happen.
		panic(err)
	}
	return cfg
}
