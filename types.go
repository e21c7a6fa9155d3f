package torhttp

import (
	"github.com/nao1215/torhttp/internal/model"
	"github.com/nao1215/torhttp/internal/transport"
)

// Value types re-exported from the internal model package so callers
// never import an internal path. These are aliases, not copies: values
// flow through the engine without conversion.
type (
	// Origin identifies a connection-reuse boundary: scheme, host, port.
	Origin = model.Origin
	// Scheme is "http" or "https".
	Scheme = model.Scheme
	// Method is an HTTP request method supported by the engine.
	Method = model.Method
	// Header is an ordered, case-insensitive HTTP header mapping.
	Header = model.Header
	// HeaderField is a single name/value pair in a Header.
	HeaderField = model.HeaderField
	// Request is an immutable HTTP request.
	Request = model.Request
	// Response is a fully-read HTTP response.
	Response = model.Response
	// OnionVersion is the address generation of a .onion host.
	OnionVersion = model.OnionVersion
)

// Capability interfaces re-exported from the internal transport package.
// Production bindings come from the client configuration; tests inject
// in-memory implementations via WithStreamProvider and WithTLSLayer.
type (
	// StreamProvider opens an anonymized byte stream to host:port.
	StreamProvider = transport.StreamProvider
	// TLSLayer wraps an established stream in an encrypted session.
	TLSLayer = transport.TLSLayer
)

// Supported methods.
const (
	MethodGet  = model.MethodGet
	MethodPost = model.MethodPost
	MethodHead = model.MethodHead
)

// Supported schemes.
const (
	SchemeHTTP  = model.SchemeHTTP
	SchemeHTTPS = model.SchemeHTTPS
)

// Onion address versions.
const (
	OnionVersionUnknown = model.OnionVersionUnknown
	OnionVersionV2      = model.OnionVersionV2
	OnionVersionV3      = model.OnionVersionV3
)

// NewRequest parses rawURL and builds an immutable request.
// A body is only accepted for POST. Callers that need custom headers add
// them to the returned request's Header before passing it to Client.Do.
func NewRequest(method Method, rawURL string, body []byte) (*Request, error) {
	return model.NewRequest(method, rawURL, body)
}

// ParseOrigin parses an absolute HTTP or HTTPS URL into its origin and
// request target. Onion hosts are validated, including the v3 checksum.
func ParseOrigin(rawURL string) (Origin, string, error) {
	return model.ParseOrigin(rawURL)
}

// ValidateOnionHost validates a ".onion" hostname and returns its
// address version. v3 addresses are verified down to the embedded
// SHA3-256 checksum.
func ValidateOnionHost(host string) (OnionVersion, error) {
	return model.ValidateOnionHost(host)
}
