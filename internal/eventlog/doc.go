// Package eventlog persists sessions as an append-only event log plus a
// materialized snapshot. Every mutation is an Event whose state delta is
// merged field by field into the snapshot, so the full history of a
// session stays reconstructable. Two backends implement the contract: a
// durable SQLite store and a volatile in-memory store used for tests
// and as a degraded-mode fallback.
package eventlog
