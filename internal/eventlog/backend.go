// Package eventlog provides the persistence contract for session state.
//
// A backend stores, per session, an ordered log of events and the
// materialized current snapshot. Appending an event is the sole mutation
// primitive: the event's state delta is merged into the snapshot field by
// field and the event itself is retained for auditability and replay.
package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a session handle does not exist.
var ErrNotFound = errors.New("session not found")

// Document is a session snapshot as stored: top-level JSON fields keyed by
// name. Delta merges overwrite whole fields (last writer wins per field).
type Document map[string]json.RawMessage

// Event is an atomic, authored, timestamped state delta.
type Event struct {
	Author     string    `json:"author"`
	Timestamp  time.Time `json:"timestamp"`
	StateDelta Document  `json:"state_delta"`
}

// NewEvent returns an event stamped with the current time.
func NewEvent(author string) Event {
	if author == "" {
		author = "system"
	}
	return Event{Author: author, Timestamp: time.Now().UTC(), StateDelta: Document{}}
}

// Set marshals value into the event's delta under key.
func (e *Event) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal delta field %q: %w", key, err)
	}
	if e.StateDelta == nil {
		e.StateDelta = Document{}
	}
	e.StateDelta[key] = raw
	return nil
}

// Backend abstracts session persistence. Implementations do not retry;
// failure policy belongs to the session manager.
type Backend interface {
	// Create allocates a new unique session id and stores the initial
	// snapshot atomically.
	Create(ctx context.Context, userID string, snapshot Document) (string, error)

	// Get returns the current snapshot, or ErrNotFound.
	Get(ctx context.Context, userID, sessionID string) (Document, error)

	// AppendEvent merges the event's delta into the snapshot and records
	// the event in the session's ordered log. Returns ErrNotFound when the
	// session does not exist.
	AppendEvent(ctx context.Context, sessionID string, event Event) error

	// Delete removes the session and its event log.
	Delete(ctx context.Context, userID, sessionID string) error

	// Events returns the session's event log in append order.
	Events(ctx context.Context, sessionID string) ([]Event, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// mergeDelta applies a delta onto a snapshot, overwriting per field.
func mergeDelta(snapshot, delta Document) Document {
	if snapshot == nil {
		snapshot = Document{}
	}
	for key, raw := range delta {
		snapshot[key] = raw
	}
	return snapshot
}
