package model

import (
	"bytes"
	"fmt"
	"io"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// Response is a fully-read HTTP response. The body is buffered in memory
// (bounded by the client's body size limit) so the underlying connection
// can be returned to the pool before the caller inspects the response.
type Response struct {
	// StatusCode is the 3-digit status from the status line.
	StatusCode int

	// Proto is the protocol from the status line, "HTTP/1.0" or "HTTP/1.1".
	Proto string

	// Header preserves the peer's field order and duplicate fields.
	Header Header

	// Body is the response payload. Always empty for HEAD responses and
	// for 1xx/204/304 statuses, regardless of declared Content-Length.
	Body []byte
}

// IsRedirect reports whether the status is a 3xx redirection.
// Redirects are never followed by the client; callers that want to
// follow one issue a new request to Location explicitly.
func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

// Location returns the Location header value, or "" if absent.
func (r *Response) Location() string {
	return r.Header.Get("Location")
}

// ContentType returns the Content-Type header value, or "" if absent.
func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

// Text decodes the body to UTF-8 using the charset declared in
// Content-Type, falling back to charset detection on the body bytes.
// Bodies already in UTF-8 (or ASCII) pass through unchanged.
func (r *Response) Text() (string, error) {
	if len(r.Body) == 0 {
		return "", nil
	}

	enc, _, _ := charset.DetermineEncoding(r.Body, r.ContentType())
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(r.Body), enc.NewDecoder()))
	if err != nil {
		return "", fmt.Errorf("decode response body: %w", err)
	}
	return string(decoded), nil
}
