// Package pool manages reusable transport connections per origin.
//
// Each origin key owns a small bounded set of idle connections. Stale
// connections are evicted lazily when the bucket is next scanned; there
// is no background sweeper, so the pool introduces no goroutines and no
// shutdown lifecycle of its own. Circuits through an anonymizing overlay
// are expensive to build, which is why even a small idle set pays for
// itself on sequential requests to the same origin.
//
// Locking is per-origin bucket: concurrent requests to different origins
// never contend. No lock is ever held across I/O.
package pool
