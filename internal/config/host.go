package config

// HostConfig customizes requests to a single host, letting a config
// file attach cookies or headers some hidden services require.
type HostConfig struct {
	// Cookie is sent as the Cookie header. "name=value" form, multiple
	// pairs joined with "; ".
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra request headers for this host.
	Headers map[string]string `yaml:"headers,omitempty"`

	// UserAgent overrides the global User-Agent for this host.
	UserAgent string `yaml:"userAgent,omitempty"`
}

// File is the shape of the .torget configuration file.
type File struct {
	// Hosts maps a hostname (for example "example.onion") to its
	// overrides.
	Hosts map[string]HostConfig `yaml:"hosts,omitempty"`

	// Defaults applies to every host unless overridden per host.
	Defaults HostConfig `yaml:"defaults,omitempty"`
}

// GetHostConfig merges the defaults with the host-specific entry.
func (cf *File) GetHostConfig(host string) HostConfig {
	result := cf.Defaults

	hc, ok := cf.Hosts[host]
	if !ok {
		return result
	}

	if hc.Cookie != "" {
		result.Cookie = hc.Cookie
	}
	if hc.UserAgent != "" {
		result.UserAgent = hc.UserAgent
	}
	if len(hc.Headers) > 0 {
		merged := make(map[string]string, len(result.Headers)+len(hc.Headers))
		for k, v := range result.Headers {
			merged[k] = v
		}
		for k, v := range hc.Headers {
			merged[k] = v
		}
		result.Headers = merged
	}

	return result
}
