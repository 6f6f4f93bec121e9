// Package daemon wires the session manager and the pipeline coordinator
// into a long-running background process. It owns single-instance
// locking and the periodic retention cleanup loop.
package daemon
