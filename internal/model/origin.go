package model

import (
	"encoding/base32"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Scheme is the URL scheme of an origin. Only plaintext HTTP and HTTPS
// are supported; any other scheme fails URL parsing with ErrInvalidURL.
type Scheme string

const (
	// SchemeHTTP is plaintext HTTP (default port 80).
	SchemeHTTP Scheme = "http"
	// SchemeHTTPS is HTTP over TLS (default port 443).
	SchemeHTTPS Scheme = "https"
)

// DefaultPort returns the default port for the scheme.
func (s Scheme) DefaultPort() uint16 {
	if s == SchemeHTTPS {
		return 443
	}
	return 80
}

// Origin identifies a connection-reuse boundary: scheme, host, and port.
// Two origins are equal iff all three fields match, so Origin is a
// comparable value type usable as a map key.
type Origin struct {
	Scheme Scheme
	Host   string
	Port   uint16
}

// Key returns the pooling key for this origin.
func (o Origin) Key() string {
	return string(o.Scheme) + "://" + o.Host + ":" + strconv.Itoa(int(o.Port))
}

// HostPort returns the host joined with the port, suitable for dialing.
func (o Origin) HostPort() string {
	return o.Host + ":" + strconv.Itoa(int(o.Port))
}

// HostHeader returns the value for a synthesized Host header.
// The port is omitted when it is the scheme's default, matching what
// browsers send and what virtual-host configurations expect.
func (o Origin) HostHeader() string {
	if o.Port == o.Scheme.DefaultPort() {
		return o.Host
	}
	return o.HostPort()
}

// IsOnion reports whether the origin targets a Tor hidden service.
func (o Origin) IsOnion() bool {
	return strings.HasSuffix(o.Host, onionSuffix)
}

// String returns the origin in scheme://host:port form.
func (o Origin) String() string {
	return o.Key()
}

// ParseOrigin parses an absolute HTTP or HTTPS URL into an Origin and a
// request target (path plus optional query, always starting with "/").
// Onion hosts are validated, including the v3 address checksum.
// All failures are classified as ErrInvalidURL.
func ParseOrigin(rawURL string) (Origin, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Origin{}, "", Classify(ErrInvalidURL, err)
	}

	scheme := Scheme(strings.ToLower(u.Scheme))
	if scheme != SchemeHTTP && scheme != SchemeHTTPS {
		return Origin{}, "", Classifyf(ErrInvalidURL, "unsupported scheme %q", u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return Origin{}, "", Classifyf(ErrInvalidURL, "missing host in %q", rawURL)
	}

	port := scheme.DefaultPort()
	if p := u.Port(); p != "" {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil || n == 0 {
			return Origin{}, "", Classifyf(ErrInvalidURL, "invalid port %q", p)
		}
		port = uint16(n)
	}

	if strings.HasSuffix(host, onionSuffix) {
		if _, err := ValidateOnionHost(host); err != nil {
			return Origin{}, "", Classify(ErrInvalidURL, err)
		}
	}

	target := u.EscapedPath()
	if target == "" {
		target = "/"
	}
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}

	return Origin{Scheme: scheme, Host: host, Port: port}, target, nil
}

// OnionVersion is the hidden-service address generation of an onion host.
type OnionVersion int

const (
	// OnionVersionUnknown indicates an unrecognized address format.
	OnionVersionUnknown OnionVersion = 0
	// OnionVersionV2 is the deprecated 16-character RSA1024 format.
	// The Tor network stopped serving v2 addresses in October 2021,
	// but the format is still recognized so callers get a precise error
	// from their own policy rather than a generic parse failure.
	OnionVersionV2 OnionVersion = 2
	// OnionVersionV3 is the current 56-character ed25519 format.
	OnionVersionV3 OnionVersion = 3
)

// String returns "v2", "v3", or "unknown".
func (v OnionVersion) String() string {
	switch v {
	case OnionVersionV2:
		return "v2"
	case OnionVersionV3:
		return "v3"
	default:
		return "unknown"
	}
}

const (
	onionSuffix     = ".onion"
	v2AddressLength = 16
	v3AddressLength = 56

	// v3ChecksumPrefix is the fixed prefix fed into the v3 address
	// checksum hash, per the rend-spec-v3 address encoding:
	// checksum = SHA3-256(".onion checksum" || pubkey || version)[:2]
	v3ChecksumPrefix = ".onion checksum"

	// v3VersionByte is the trailing version byte of a decoded v3 address.
	v3VersionByte = 0x03
)

// onionBase32 decodes the unpadded lowercase base32 alphabet used by
// onion addresses.
var onionBase32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// ValidateOnionHost validates a hostname ending in ".onion" and returns
// its address version. For multi-label hosts (subdomains of a hidden
// service) only the service label directly before ".onion" is validated.
//
// v3 addresses are fully verified: base32 decoding, the embedded
// SHA3-256 checksum, and the trailing version byte must all check out.
// v2 addresses are matched on length and alphabet only; the v2 format
// carries no checksum.
func ValidateOnionHost(host string) (OnionVersion, error) {
	base := strings.TrimSuffix(strings.ToLower(host), onionSuffix)
	if base == "" || strings.HasSuffix(base, ".") {
		return OnionVersionUnknown, fmt.Errorf("empty onion service label in %q", host)
	}
	// Subdomains are served by the hidden service itself; only the
	// service label encodes the key material.
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		base = base[i+1:]
	}

	switch len(base) {
	case v2AddressLength:
		if !isOnionBase32(base) {
			return OnionVersionUnknown, fmt.Errorf("invalid v2 onion address %q", base)
		}
		return OnionVersionV2, nil
	case v3AddressLength:
		if err := validateV3Address(base); err != nil {
			return OnionVersionUnknown, err
		}
		return OnionVersionV3, nil
	default:
		return OnionVersionUnknown, fmt.Errorf("onion address %q has invalid length %d", base, len(base))
	}
}

// validateV3Address checks the checksum and version byte of a 56-character
// v3 onion service label.
func validateV3Address(base string) error {
	if !isOnionBase32(base) {
		return fmt.Errorf("invalid base32 in v3 onion address %q", base)
	}

	decoded, err := onionBase32.DecodeString(strings.ToUpper(base))
	if err != nil {
		return fmt.Errorf("undecodable v3 onion address %q: %w", base, err)
	}
	// 32-byte ed25519 pubkey + 2-byte checksum + 1-byte version
	if len(decoded) != 35 {
		return fmt.Errorf("v3 onion address %q decodes to %d bytes, expected 35", base, len(decoded))
	}

	pubkey := decoded[:32]
	checksum := decoded[32:34]
	version := decoded[34]

	if version != v3VersionByte {
		return fmt.Errorf("v3 onion address %q has version byte %#x", base, version)
	}

	h := sha3.New256()
	h.Write([]byte(v3ChecksumPrefix))
	h.Write(pubkey)
	h.Write([]byte{version})
	expected := h.Sum(nil)[:2]

	if checksum[0] != expected[0] || checksum[1] != expected[1] {
		return fmt.Errorf("v3 onion address %q has invalid checksum", base)
	}
	return nil
}

// isOnionBase32 reports whether s contains only the lowercase base32
// alphabet (a-z, 2-7) used by onion addresses.
func isOnionBase32(s string) bool {
	for _, c := range s {
		isLowerLetter := c >= 'a' && c <= 'z'
		isBase32Digit := c >= '2' && c <= '7'
		if !isLowerLetter && !isBase32Digit {
			return false
		}
	}
	return true
}
