// Package config holds the torget command's configuration: defaults
// tuned for Tor network latency, CLI-populated settings, per-host
// overrides loaded from a YAML file, and XDG directory helpers.
package config
