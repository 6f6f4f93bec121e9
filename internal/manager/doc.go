// Package manager is the concurrency-safe facade over the session event
// log. It owns the in-memory registry used for listing and discovery,
// converts structured patches into single-event deltas, enforces user
// scoping and terminal-state immutability, and layers retention
// cleanup, statistics, health reporting, and legacy migration on top of
// the store.
package manager
