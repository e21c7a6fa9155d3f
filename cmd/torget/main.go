// Package main provides the entry point for the torget CLI.
//
// torget fetches URLs over the Tor network, including v3 onion
// services, without touching the clearnet.
//
// Usage:
//
//	torget fetch <url>
//	torget fetch --list <file>
//
// See --help for all available options.
package main

// main is the entry point for torget.
func main() {
	Execute()
}
