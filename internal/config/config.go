package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Defaults tuned for fetching over Tor. Circuits add several relay hops
// of latency, so the timeouts are generous compared to clearnet tools.
const (
	// DefaultTorProxyAddress is the Tor daemon's standard SOCKS port.
	// 127.0.0.1 rather than localhost avoids resolver surprises on
	// systems where localhost maps to IPv6 first.
	DefaultTorProxyAddress = "127.0.0.1:9050"

	// DefaultTimeout bounds a single fetch. Two minutes accommodates
	// slow hidden services without hanging a batch forever.
	DefaultTimeout = 120 * time.Second

	// DefaultBatchSize is the number of concurrent fetches in batch
	// mode. Each fetch holds a Tor stream, and the daemon throttles
	// clients that open too many at once.
	DefaultBatchSize = 10

	// DefaultMaxBodySize caps response bodies at 5MB. Enough for pages
	// and small documents while keeping memory bounded.
	DefaultMaxBodySize = 5 * 1024 * 1024

	// DefaultTorStartupTimeout is how long to wait for the embedded
	// Tor daemon to bootstrap before giving up.
	DefaultTorStartupTimeout = 3 * time.Minute

	// AppName names the XDG directories.
	AppName = "torget"
)

// Config carries everything the torget command needs. It is populated
// from CLI flags plus the optional config file and passed down by value
// injection instead of globals.
type Config struct {
	// TorProxyAddress is the SOCKS5 proxy in "host:port" form. All
	// traffic goes through Tor; there is no clearnet fallback.
	TorProxyAddress string

	// UseExternalTor skips the embedded daemon and expects a running
	// Tor service at TorProxyAddress.
	UseExternalTor bool

	// TorStartupTimeout bounds embedded daemon bootstrap. Ignored when
	// UseExternalTor is set.
	TorStartupTimeout time.Duration

	// Timeout bounds each individual fetch.
	Timeout time.Duration

	// BatchSize is the fetch concurrency in batch mode.
	BatchSize int

	// MaxRedirects is how many redirect hops to follow. Zero returns
	// 3xx responses as-is.
	MaxRedirects int

	// MaxBodySize caps response bodies in bytes. Zero means the
	// default cap, not unlimited; a CLI must always bound reads.
	MaxBodySize int64

	// UserAgent is sent with every request. Empty sends no User-Agent
	// header, which blends in with other Tor client traffic.
	UserAgent string

	// Insecure disables TLS certificate verification. Self-signed
	// certificates are common on hidden services.
	Insecure bool

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath points at the YAML config file. Empty triggers
	// the search order in FindConfigFile.
	ConfigFilePath string

	// Hosts holds per-host overrides loaded from the config file.
	Hosts *File

	// OutputFile receives the response body. Empty writes to stdout.
	OutputFile string

	// HistoryDir is where the fetch history database lives. Empty
	// disables history recording.
	HistoryDir string

	// Targets are the URLs to fetch.
	Targets []string
}

// NewConfig returns a Config with all defaults applied.
func NewConfig() *Config {
	return &Config{
		TorProxyAddress:   DefaultTorProxyAddress,
		TorStartupTimeout: DefaultTorStartupTimeout,
		Timeout:           DefaultTimeout,
		BatchSize:         DefaultBatchSize,
		MaxBodySize:       DefaultMaxBodySize,
	}
}

// Validate reports the first problem it finds. It runs once after flag
// parsing so later code can trust the values.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.TorProxyAddress == "" {
		return ErrNoProxyAddress
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.MaxRedirects < 0 {
		return ErrInvalidMaxRedirects
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	return nil
}

// XDGDataDir is where torget keeps its fetch history database.
// Linux: ~/.local/share/torget
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir is the XDG location for the config file.
// Linux: ~/.config/torget
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}
