// Package transport provides the stream-acquisition capabilities of the
// torhttp engine: opening anonymized byte streams through a Tor SOCKS5
// proxy, optionally running an embedded Tor daemon, and wrapping streams
// in TLS.
//
// The package exposes two small capability interfaces, StreamProvider and
// TLSLayer. Production code binds them to the SOCKS5 dialer and crypto/tls;
// tests bind them to in-memory stubs so pooling and session logic can be
// exercised without a Tor daemon or real network.
//
// The package is designed to be used with dependency injection - create a
// provider and pass it to the client rather than using global state.
package transport
