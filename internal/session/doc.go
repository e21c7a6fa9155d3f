// Package session implements HTTP/1.1 request/response framing over a
// caller-supplied byte stream.
//
// A session drives exactly one exchange: it serializes the request line,
// headers, and body, then reads and parses the status line, header
// block, and body according to the response's framing (Content-Length,
// chunked transfer coding, or read-to-close). Alongside the parsed
// response it reports a reuse verdict so the caller can decide whether
// the connection goes back to the pool or gets discarded.
//
// The session does not dial, does not pool, and does not retry. The
// whole exchange is bounded by the context deadline, enforced through
// the connection's I/O deadline.
package session
