package torhttp

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/nao1215/torhttp/internal/model"
	"github.com/nao1215/torhttp/internal/pool"
	"github.com/nao1215/torhttp/internal/session"
	"github.com/nao1215/torhttp/internal/transport"
)

// Client issues HTTP requests over Tor. It is safe for concurrent use:
// the configuration is immutable and the connection pool synchronizes
// internally per origin.
//
// A Client owns its pool; Close releases all idle connections. Multiple
// Clients with different configurations coexist without interference
// because there is no process-wide state.
type Client struct {
	cfg      ClientConfig
	provider transport.StreamProvider
	tlsLayer transport.TLSLayer
	pool     *pool.Pool
	session  *session.Session
	logger   *slog.Logger
}

// ClientOption customizes a Client beyond its configuration, mainly for
// injecting test doubles of the transport capabilities.
type ClientOption func(*Client)

// WithStreamProvider replaces the SOCKS5-backed stream provider.
// Tests use this to serve exchanges from in-memory pipes.
func WithStreamProvider(p StreamProvider) ClientOption {
	return func(c *Client) {
		c.provider = p
	}
}

// WithTLSLayer replaces the crypto/tls-backed TLS layer.
func WithTLSLayer(l TLSLayer) ClientOption {
	return func(c *Client) {
		c.tlsLayer = l
	}
}

// WithLogger sets the structured logger. The default discards all
// output. Callers that log request metadata should wrap their handler
// with credential redaction before passing it here.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// withClock overrides the pool clock. Test hook.
func withClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.pool = pool.New(c.cfg.maxIdlePerOrigin, c.cfg.idleTimeout, pool.WithClock(now))
	}
}

// New creates a Client with the default configuration: local Tor daemon
// at 127.0.0.1:9050, onion addresses allowed, default timeouts.
func New(opts ...ClientOption) (*Client, error) {
	return NewWithConfig(DefaultClientConfig(), opts...)
}

// NewWithConfig creates a Client from a built configuration.
//
// The Tor daemon is not contacted here; the first request triggers the
// first connection. Use transport.CheckProxy via the torget CLI, or open
// a request, to verify daemon availability.
func NewWithConfig(cfg ClientConfig, opts ...ClientOption) (*Client, error) {
	c := &Client{
		cfg:  cfg,
		pool: pool.New(cfg.maxIdlePerOrigin, cfg.idleTimeout),
		session: &session.Session{
			UserAgent:   cfg.userAgent,
			MaxBodySize: cfg.maxBodySize,
		},
		logger: slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.provider == nil {
		p, err := transport.NewSOCKSProvider(cfg.tor.ProxyAddress)
		if err != nil {
			return nil, model.Classify(model.ErrConfig, err)
		}
		c.provider = p
	}
	if c.tlsLayer == nil {
		c.tlsLayer = transport.NewStdTLSLayer(cfg.tlsConfig)
	}

	return c, nil
}

// Get issues a GET request to url.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	req, err := NewRequest(MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, req)
}

// Post issues a POST request with the given content type and body.
func (c *Client) Post(ctx context.Context, url, contentType string, body []byte) (*Response, error) {
	req, err := NewRequest(MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.Do(ctx, req)
}

// Head issues a HEAD request to url. The response body is always empty.
func (c *Client) Head(ctx context.Context, url string) (*Response, error) {
	req, err := NewRequest(MethodHead, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, req)
}

// Do drives one request through the engine: resolve origin, take a
// pooled connection or open a fresh stream (TLS-wrapped for HTTPS), run
// the exchange, then release or discard the connection depending on the
// session's reuse verdict.
//
// Redirects are returned raw, never followed. Nothing is retried: a
// failed exchange surfaces its classified error and costs exactly one
// circuit use.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil || !req.Method.Valid() || req.Origin.Host == "" {
		return nil, model.Classifyf(model.ErrInvalidURL, "incomplete request")
	}
	if req.Origin.IsOnion() && !c.cfg.tor.AllowOnion {
		return nil, model.Classifyf(model.ErrInvalidURL, "onion address %q rejected by policy", req.Origin.Host)
	}

	if c.cfg.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.requestTimeout)
		defer cancel()
	}

	key := req.Origin.Key()

	conn, hit := c.pool.Acquire(key)
	if !hit {
		var err error
		conn, err = c.connect(ctx, req.Origin)
		if err != nil {
			return nil, err
		}
	}
	c.logger.DebugContext(ctx, "connection acquired",
		slog.String("origin", key), slog.Bool("pooled", hit))

	// Caller cancellation must abort in-flight I/O, not just the wait:
	// an immediate deadline unblocks the session's reads and writes.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now()) //nolint:errcheck // Connection is being abandoned
	})

	resp, reusable, err := c.session.Exchange(ctx, conn, req)
	stop()
	if err != nil {
		// Stream state is unknown after any failure; never pool it.
		c.pool.Release(key, conn, false)
		c.logger.DebugContext(ctx, "exchange failed",
			slog.String("origin", key), slog.String("error", err.Error()))
		return nil, err
	}

	c.pool.Release(key, conn, reusable)
	c.logger.DebugContext(ctx, "exchange complete",
		slog.String("origin", key),
		slog.Int("status", resp.StatusCode),
		slog.Bool("reusable", reusable))
	return resp, nil
}

// connect opens a fresh stream to the origin and wraps it in TLS when
// the scheme requires it. Errors are classified: deadline expiry is
// ErrTimeout, stream establishment is ErrCircuitFailure, handshake
// failure is ErrTLS.
func (c *Client) connect(ctx context.Context, origin Origin) (net.Conn, error) {
	openCtx := ctx
	if c.cfg.tor.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		openCtx, cancel = context.WithTimeout(ctx, c.cfg.tor.ConnectTimeout)
		defer cancel()
	}

	raw, err := c.provider.Open(openCtx, origin.Host, origin.Port)
	if err != nil {
		if openCtx.Err() != nil {
			return nil, model.Classify(model.ErrTimeout, err)
		}
		return nil, model.Classify(model.ErrCircuitFailure, err)
	}

	if origin.Scheme != SchemeHTTPS {
		return raw, nil
	}

	secure, err := c.tlsLayer.Wrap(openCtx, raw, origin.Host)
	if err != nil {
		if openCtx.Err() != nil {
			return nil, model.Classify(model.ErrTimeout, err)
		}
		return nil, model.Classify(model.ErrTLS, err)
	}
	return secure, nil
}

// Close releases all idle pooled connections. In-flight requests finish
// normally; their connections are closed on release.
func (c *Client) Close() error {
	return c.pool.Close()
}
