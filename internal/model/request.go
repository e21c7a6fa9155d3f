package model

// Method is an HTTP request method supported by the engine.
type Method string

const (
	// MethodGet requests a representation of the target resource.
	MethodGet Method = "GET"
	// MethodPost submits a body to the target resource.
	MethodPost Method = "POST"
	// MethodHead is GET without a response body.
	MethodHead Method = "HEAD"
)

// Valid reports whether the method is one the engine supports.
func (m Method) Valid() bool {
	switch m {
	case MethodGet, MethodPost, MethodHead:
		return true
	default:
		return false
	}
}

// Bodyless reports whether requests with this method carry no body and
// therefore no Content-Length header.
func (m Method) Bodyless() bool {
	return m == MethodGet || m == MethodHead
}

// Request is a single HTTP request. It is constructed once via
// NewRequest and treated as immutable afterwards; the session layer only
// reads from it.
type Request struct {
	// Method is GET, POST, or HEAD.
	Method Method

	// Origin is the resolved target origin (scheme, host, port).
	Origin Origin

	// Target is the request target sent on the request line: the path
	// plus optional query, always starting with "/".
	Target string

	// Header holds caller-supplied fields in insertion order.
	// Host, Content-Length, and User-Agent are synthesized by the
	// session layer when absent; caller-supplied values win.
	Header Header

	// Body is the request payload, nil for bodyless methods.
	Body []byte
}

// NewRequest parses rawURL and builds a request for the given method.
// A body is only accepted for POST; the method must be supported.
// URL failures are classified as ErrInvalidURL.
func NewRequest(method Method, rawURL string, body []byte) (*Request, error) {
	if !method.Valid() {
		return nil, Classifyf(ErrInvalidURL, "unsupported method %q", string(method))
	}
	if method.Bodyless() && len(body) > 0 {
		return nil, Classifyf(ErrInvalidURL, "method %s does not accept a body", method)
	}

	origin, target, err := ParseOrigin(rawURL)
	if err != nil {
		return nil, err
	}

	return &Request{
		Method: method,
		Origin: origin,
		Target: target,
		Body:   body,
	}, nil
}
