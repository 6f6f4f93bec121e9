package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Memory is a volatile in-process backend. It is the development default
// and the fallback store when the durable backend degrades.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*memoryRecord
}

type memoryRecord struct {
	userID   string
	snapshot Document
	events   []Event
	revision int64
}

// NewMemory constructs an empty volatile backend.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]*memoryRecord)}
}

// Create stores the initial snapshot under a freshly generated id.
func (m *Memory) Create(_ context.Context, userID string, snapshot Document) (string, error) {
	id := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = &memoryRecord{
		userID:   userID,
		snapshot: cloneDocument(snapshot),
	}
	return id, nil
}

// Get returns a copy of the current snapshot.
func (m *Memory) Get(_ context.Context, userID, sessionID string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	if userID != "" && rec.userID != userID {
		return nil, ErrNotFound
	}
	return cloneDocument(rec.snapshot), nil
}

// AppendEvent merges the delta into the snapshot and records the event.
func (m *Memory) AppendEvent(_ context.Context, sessionID string, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	rec.snapshot = mergeDelta(rec.snapshot, event.StateDelta)
	rec.revision++
	rec.snapshot["revision"] = json.RawMessage(fmt.Sprintf("%d", rec.revision))
	rec.events = append(rec.events, event)
	return nil
}

// Delete removes the session and its log.
func (m *Memory) Delete(_ context.Context, userID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if userID != "" && rec.userID != userID {
		return ErrNotFound
	}
	delete(m.sessions, sessionID)
	return nil
}

// Events returns the event log in append order.
func (m *Memory) Events(_ context.Context, sessionID string) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	events := make([]Event, len(rec.events))
	copy(events, rec.events)
	return events, nil
}

// Ping always succeeds for the in-process store.
func (m *Memory) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// ListIDs returns every (userID, sessionID) pair in the store.
func (m *Memory) ListIDs(_ context.Context) (map[string][]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make(map[string][]string)
	for sessionID, rec := range m.sessions {
		ids[rec.userID] = append(ids[rec.userID], sessionID)
	}
	return ids, nil
}

// Len reports the number of stored sessions.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func cloneDocument(doc Document) Document {
	cp := make(Document, len(doc))
	for key, raw := range doc {
		dup := make(json.RawMessage, len(raw))
		copy(dup, raw)
		cp[key] = dup
	}
	return cp
}
