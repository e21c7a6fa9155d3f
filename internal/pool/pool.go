package pool

import (
	"net"
	"sync"
	"time"
)

// idleConn is a pooled connection with its last-used timestamp.
type idleConn struct {
	conn     net.Conn
	lastUsed time.Time
}

// bucket holds the pool state for a single origin key.
// Entries in idle are ordered oldest first; releases append, acquires
// pop from the tail so the most recently used connection is reused.
type bucket struct {
	mu         sync.Mutex
	idle       []idleConn
	checkedOut int
}

// Pool is a per-origin connection pool with lazy idle-timeout eviction.
//
// Invariants: a connection is never present in an idle set while checked
// out, and Acquire never hands the same connection to two callers. Both
// hold because Acquire removes the entry from the bucket under the
// bucket lock before returning it.
type Pool struct {
	maxIdlePerOrigin int
	idleTimeout      time.Duration

	// now is the clock used for idle-timeout decisions.
	// Injectable so tests can advance time without sleeping.
	now func() time.Time

	// mu guards the buckets map and the closed flag, not the buckets
	// themselves; each bucket has its own lock.
	mu      sync.Mutex
	buckets map[string]*bucket
	closed  bool
}

// Option configures a Pool.
type Option func(*Pool)

// WithClock replaces the pool's clock. Used by tests to simulate the
// passage of idle time.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) {
		p.now = now
	}
}

// New creates a pool keeping at most maxIdlePerOrigin idle connections
// per origin key, evicting those unused for longer than idleTimeout.
// An idleTimeout of zero or less disables expiry.
func New(maxIdlePerOrigin int, idleTimeout time.Duration, opts ...Option) *Pool {
	p := &Pool{
		maxIdlePerOrigin: maxIdlePerOrigin,
		idleTimeout:      idleTimeout,
		now:              time.Now,
		buckets:          make(map[string]*bucket),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// bucketFor returns the bucket for key, creating it if needed.
// Returns nil if the pool is closed.
func (p *Pool) bucketFor(key string) *bucket {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	b, ok := p.buckets[key]
	if !ok {
		b = &bucket{}
		p.buckets[key] = b
	}
	return b
}

// Acquire returns an idle, unexpired connection for key, or (nil, false)
// on a miss. Expired entries encountered during the scan are closed and
// dropped. The returned connection is exclusively owned by the caller
// until it is passed back via Release.
func (p *Pool) Acquire(key string) (net.Conn, bool) {
	b := p.bucketFor(key)
	if b == nil {
		return nil, false
	}

	b.mu.Lock()

	// Entries are ordered oldest first; prune expired ones from the
	// front, then take the freshest from the tail.
	expired := p.pruneLocked(b)

	var conn net.Conn
	if n := len(b.idle); n > 0 {
		conn = b.idle[n-1].conn
		b.idle = b.idle[:n-1]
		b.checkedOut++
	}
	b.mu.Unlock()

	// Close expired connections outside the bucket lock.
	for _, ic := range expired {
		_ = ic.conn.Close() //nolint:errcheck // Already stale
	}

	if conn == nil {
		return nil, false
	}
	return conn, true
}

// pruneLocked removes expired entries from the front of b.idle and
// returns them for closing. Caller holds b.mu.
func (p *Pool) pruneLocked(b *bucket) []idleConn {
	if p.idleTimeout <= 0 {
		return nil
	}

	cutoff := p.now().Add(-p.idleTimeout)
	i := 0
	for i < len(b.idle) && b.idle[i].lastUsed.Before(cutoff) {
		i++
	}
	if i == 0 {
		return nil
	}

	expired := make([]idleConn, i)
	copy(expired, b.idle[:i])
	b.idle = append(b.idle[:0], b.idle[i:]...)
	return expired
}

// Release returns a checked-out or freshly created connection to the
// pool. Unhealthy connections, and healthy ones that would exceed the
// bucket's idle capacity, are closed instead of pooled.
func (p *Pool) Release(key string, conn net.Conn, healthy bool) {
	if conn == nil {
		return
	}

	b := p.bucketFor(key)
	if b == nil {
		// Pool closed while the exchange was in flight.
		_ = conn.Close() //nolint:errcheck // Best effort cleanup
		return
	}

	b.mu.Lock()
	if b.checkedOut > 0 {
		b.checkedOut--
	}
	pooled := healthy && len(b.idle) < p.maxIdlePerOrigin
	if pooled {
		b.idle = append(b.idle, idleConn{conn: conn, lastUsed: p.now()})
	}
	b.mu.Unlock()

	if !pooled {
		_ = conn.Close() //nolint:errcheck // Dropped by policy
	}
}

// Stats returns the idle and checked-out counts for key.
func (p *Pool) Stats(key string) (idle, checkedOut int) {
	p.mu.Lock()
	b, ok := p.buckets[key]
	p.mu.Unlock()
	if !ok {
		return 0, 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.idle), b.checkedOut
}

// Close closes every idle connection and marks the pool closed.
// Connections checked out at close time are closed by their holders'
// subsequent Release. Close is idempotent.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	buckets := p.buckets
	p.buckets = nil
	p.mu.Unlock()

	for _, b := range buckets {
		b.mu.Lock()
		idle := b.idle
		b.idle = nil
		b.mu.Unlock()

		for _, ic := range idle {
			_ = ic.conn.Close() //nolint:errcheck // Shutting down
		}
	}
	return nil
}
