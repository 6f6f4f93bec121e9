package manager

import (
	"context"
	"errors"

	"clipforge/internal/logging"
)

// ListFilter narrows and pages session listings. A zero filter returns
// everything, newest first.
type ListFilter struct {
	// Status keeps only sessions in the given coarse bucket
	// (queued, processing, completed, failed).
	Status string
	// Limit caps the number of returned entries; 0 means no cap.
	Limit int
	// Offset skips that many entries after filtering.
	Offset int
}

// ListUserSessions returns the user's sessions, newest first. Each entry is
// refreshed from the backend while listing; entries whose stored state has
// vanished are dropped from the registry, and stored sessions missing from
// the registry are restored. The registry therefore self-heals on read.
func (m *Manager) ListUserSessions(ctx context.Context, userID string, filter ListFilter) ([]Entry, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}
	m.discover(ctx, userID)

	fresh, err := m.refreshUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return applyFilter(fresh, filter), nil
}

// ListAllSessions returns every known session across users, newest first,
// with the same per-entry refresh and drift repair as ListUserSessions.
func (m *Manager) ListAllSessions(ctx context.Context, filter ListFilter) ([]Entry, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}
	m.discover(ctx, "")

	var fresh []Entry
	for _, userID := range m.registry.users() {
		entries, err := m.refreshUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		fresh = append(fresh, entries...)
	}
	sortEntries(fresh)
	return applyFilter(fresh, filter), nil
}

// refreshUser hydrates every registered entry for one user from the
// backend, unregistering entries whose stored state is gone.
func (m *Manager) refreshUser(ctx context.Context, userID string) ([]Entry, error) {
	entries := m.registry.user(userID)
	fresh := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		state, err := m.GetSession(ctx, userID, entry.SessionID)
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				m.registry.remove(userID, entry.SessionID)
				m.logger.Warn("dropped stale registry entry",
					logging.String(logging.FieldSessionID, entry.SessionID))
				continue
			}
			return nil, err
		}
		refreshed := entryFromState(state)
		m.registry.put(refreshed)
		fresh = append(fresh, refreshed)
	}
	return fresh, nil
}

// ActiveSessionCount reports the number of registered non-terminal sessions.
func (m *Manager) ActiveSessionCount() int {
	count := 0
	for _, entry := range m.registry.all() {
		if entry.Status == "queued" || entry.Status == "processing" {
			count++
		}
	}
	return count
}

// discover restores registry entries for stored sessions the registry
// does not know about, covering sessions created by another process. An
// empty userID discovers across all stored users.
func (m *Manager) discover(ctx context.Context, userID string) {
	source, ok := m.primary.(lister)
	if !ok {
		return
	}
	ids, err := source.ListIDs(ctx)
	if err != nil {
		return
	}
	if userID != "" {
		ids = map[string][]string{userID: ids[userID]}
	}
	for owner, sessionIDs := range ids {
		for _, sessionID := range sessionIDs {
			if _, known := m.registry.get(owner, sessionID); known {
				continue
			}
			doc, err := m.primary.Get(ctx, owner, sessionID)
			if err != nil {
				continue
			}
			state, err := stateFromDocument(doc)
			if err != nil {
				m.logger.Warn("skip undecodable session during discovery",
					logging.String(logging.FieldSessionID, sessionID), logging.Error(err))
				continue
			}
			m.registry.put(entryFromState(state))
		}
	}
}

func applyFilter(entries []Entry, filter ListFilter) []Entry {
	filtered := entries
	if filter.Status != "" {
		filtered = make([]Entry, 0, len(entries))
		for _, entry := range entries {
			if entry.Status == filter.Status {
				filtered = append(filtered, entry)
			}
		}
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(filtered) {
			return []Entry{}
		}
		filtered = filtered[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(filtered) {
		filtered = filtered[:filter.Limit]
	}
	return filtered
}
