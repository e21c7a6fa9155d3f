package pool

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

// fakeConn is a net.Conn stub that records whether it was closed.
type fakeConn struct {
	net.Conn

	mu     sync.Mutex
	closed bool
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeClock is an adjustable clock for idle-timeout tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// TestPoolAcquireRelease tests the basic reuse cycle.
func TestPoolAcquireRelease(t *testing.T) {
	t.Parallel()

	t.Run("empty pool misses", func(t *testing.T) {
		t.Parallel()

		p := New(4, time.Minute)
		if _, ok := p.Acquire("http://a:80"); ok {
			t.Fatal("expected miss on empty pool")
		}
	})

	t.Run("healthy release is reused", func(t *testing.T) {
		t.Parallel()

		p := New(4, time.Minute)
		conn := &fakeConn{}

		p.Release("http://a:80", conn, true)

		got, ok := p.Acquire("http://a:80")
		if !ok {
			t.Fatal("expected hit after healthy release")
		}
		if got != conn {
			t.Error("expected the released connection back")
		}
		if conn.isClosed() {
			t.Error("pooled connection must not be closed")
		}
	})

	t.Run("unhealthy release is closed and never reused", func(t *testing.T) {
		t.Parallel()

		p := New(4, time.Minute)
		conn := &fakeConn{}

		p.Release("http://a:80", conn, false)

		if !conn.isClosed() {
			t.Error("unhealthy connection must be closed")
		}
		if _, ok := p.Acquire("http://a:80"); ok {
			t.Fatal("unhealthy connection must not be pooled")
		}
	})

	t.Run("a connection is handed out only once", func(t *testing.T) {
		t.Parallel()

		p := New(4, time.Minute)
		p.Release("http://a:80", &fakeConn{}, true)

		if _, ok := p.Acquire("http://a:80"); !ok {
			t.Fatal("expected hit")
		}
		if _, ok := p.Acquire("http://a:80"); ok {
			t.Fatal("connection handed out twice")
		}
	})

	t.Run("keys are isolated", func(t *testing.T) {
		t.Parallel()

		p := New(4, time.Minute)
		p.Release("http://a:80", &fakeConn{}, true)

		if _, ok := p.Acquire("http://b:80"); ok {
			t.Fatal("connection leaked across origin keys")
		}
	})
}

// TestPoolCapacity tests the per-origin idle bound.
func TestPoolCapacity(t *testing.T) {
	t.Parallel()

	p := New(2, time.Minute)
	conns := []*fakeConn{{}, {}, {}}
	for _, c := range conns {
		p.Release("http://a:80", c, true)
	}

	// Third release exceeds capacity and must be closed.
	if !conns[2].isClosed() {
		t.Error("over-capacity connection must be closed")
	}
	if conns[0].isClosed() || conns[1].isClosed() {
		t.Error("in-capacity connections must stay open")
	}

	idle, _ := p.Stats("http://a:80")
	if idle != 2 {
		t.Errorf("idle = %d, want 2", idle)
	}
}

// TestPoolMostRecentFirst tests that the freshest connection is reused.
func TestPoolMostRecentFirst(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	p := New(4, time.Minute, WithClock(clock.Now))

	older := &fakeConn{}
	newer := &fakeConn{}
	p.Release("http://a:80", older, true)
	clock.Advance(time.Second)
	p.Release("http://a:80", newer, true)

	got, ok := p.Acquire("http://a:80")
	if !ok {
		t.Fatal("expected hit")
	}
	if got != newer {
		t.Error("expected the most recently used connection first")
	}
}

// TestPoolIdleTimeout tests lazy eviction with a simulated clock.
func TestPoolIdleTimeout(t *testing.T) {
	t.Parallel()

	t.Run("expired connection is evicted on acquire", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		p := New(4, 30*time.Second, WithClock(clock.Now))
		conn := &fakeConn{}

		p.Release("http://a:80", conn, true)
		clock.Advance(31 * time.Second)

		if _, ok := p.Acquire("http://a:80"); ok {
			t.Fatal("expired connection must not be reused")
		}
		if !conn.isClosed() {
			t.Error("expired connection must be closed")
		}
	})

	t.Run("unexpired connection survives", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		p := New(4, 30*time.Second, WithClock(clock.Now))
		conn := &fakeConn{}

		p.Release("http://a:80", conn, true)
		clock.Advance(29 * time.Second)

		if _, ok := p.Acquire("http://a:80"); !ok {
			t.Fatal("unexpired connection must be reused")
		}
	})

	t.Run("release refreshes the timestamp", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		p := New(4, 30*time.Second, WithClock(clock.Now))
		conn := &fakeConn{}

		p.Release("http://a:80", conn, true)
		clock.Advance(20 * time.Second)

		got, ok := p.Acquire("http://a:80")
		if !ok {
			t.Fatal("expected hit")
		}
		p.Release("http://a:80", got, true)
		clock.Advance(20 * time.Second)

		// 40s since first release but only 20s since the refresh.
		if _, ok := p.Acquire("http://a:80"); !ok {
			t.Fatal("refreshed connection must still be live")
		}
	})

	t.Run("zero timeout disables expiry", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		p := New(4, 0, WithClock(clock.Now))

		p.Release("http://a:80", &fakeConn{}, true)
		clock.Advance(24 * time.Hour)

		if _, ok := p.Acquire("http://a:80"); !ok {
			t.Fatal("expiry must be disabled with zero timeout")
		}
	})
}

// TestPoolClose tests shutdown behavior.
func TestPoolClose(t *testing.T) {
	t.Parallel()

	p := New(4, time.Minute)
	pooled := &fakeConn{}
	p.Release("http://a:80", pooled, true)

	if err := p.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pooled.isClosed() {
		t.Error("idle connections must be closed on pool shutdown")
	}

	// After close every acquire misses and every release closes.
	if _, ok := p.Acquire("http://a:80"); ok {
		t.Fatal("closed pool must miss")
	}
	late := &fakeConn{}
	p.Release("http://a:80", late, true)
	if !late.isClosed() {
		t.Error("release into a closed pool must close the connection")
	}

	// Idempotent.
	if err := p.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

// TestPoolConcurrentOrigins tests that interleaved acquire/release across
// two origins completes without deadlock under a bounded time budget.
func TestPoolConcurrentOrigins(t *testing.T) {
	t.Parallel()

	p := New(4, time.Minute)
	keys := []string{"http://a:80", "http://b:80"}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < 8; i++ {
		key := keys[i%2]
		g.Go(func() error {
			for j := 0; j < 500; j++ {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}

				conn, ok := p.Acquire(key)
				if !ok {
					conn = &fakeConn{}
				}
				p.Release(key, conn, j%5 != 0)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent acquire/release did not complete: %v", err)
	}
}
