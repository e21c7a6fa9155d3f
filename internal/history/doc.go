// Package history persists torget's fetch log in SQLite. Each completed
// fetch becomes one record, so past responses can be listed and compared
// without re-touching the network.
package history
