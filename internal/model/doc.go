// Package model defines the value types shared by the torhttp engine:
// origins, requests, responses, ordered headers, and the client error
// taxonomy.
//
// All types here are plain data with no I/O. The transport, pool, and
// session packages operate on these types; the root torhttp package
// re-exports the public ones as aliases so callers never import an
// internal path.
package model
