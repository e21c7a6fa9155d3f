// Package torhttp is an HTTP/1.1 client engine that routes every request
// through the Tor network.
//
// The engine is built from small capability layers: a StreamProvider
// opens anonymized byte streams (normally through a Tor daemon's SOCKS5
// port), a TLSLayer optionally wraps them for HTTPS, a per-origin pool
// reuses established streams because each one rides an expensive Tor
// circuit, and a session layer does the HTTP/1.1 framing by hand. The
// Client ties the layers together behind Get, Post, and Head.
//
// Failure semantics are deliberately plain: no automatic retries and no
// automatic redirect following. Both would repeat circuit usage behind
// the caller's back, which an anonymity-sensitive client must not do.
// Every failure is classified under exactly one of the exported sentinel
// errors and can be matched with errors.Is.
//
// A minimal fetch:
//
//	client, err := torhttp.New()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	resp, err := client.Get(ctx, "http://example.onion/")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(resp.StatusCode)
package torhttp
