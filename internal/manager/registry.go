package manager

import (
	"sort"
	"sync"
	"time"

	"clipforge/internal/session"
)

// Entry is the registry's lightweight view of one session, kept in memory
// for fast listing without loading full snapshots.
type Entry struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Prompt    string    `json:"prompt"`
	Stage     string    `json:"stage"`
	Status    string    `json:"status"`
	Progress  float64   `json:"progress"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// entryPromptLimit caps the prompt preview carried by registry entries.
// Listings only need enough text to recognize a session.
const entryPromptLimit = 100

func truncatePrompt(prompt string) string {
	runes := []rune(prompt)
	if len(runes) <= entryPromptLimit {
		return prompt
	}
	return string(runes[:entryPromptLimit])
}

// registry tracks active sessions per user. It mirrors backend state and is
// rebuilt from it on startup; drift is repaired during listing.
type registry struct {
	mu       sync.RWMutex
	sessions map[string]map[string]Entry
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]map[string]Entry)}
}

func entryFromState(state *session.State) Entry {
	return Entry{
		SessionID: state.SessionID,
		UserID:    state.UserID,
		Prompt:    truncatePrompt(state.Request.Prompt),
		Stage:     string(state.CurrentStage),
		Status:    state.CurrentStage.StatusKey(),
		Progress:  state.Progress,
		CreatedAt: state.CreatedAt,
		UpdatedAt: state.UpdatedAt,
	}
}

func (r *registry) put(entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byUser, ok := r.sessions[entry.UserID]
	if !ok {
		byUser = make(map[string]Entry)
		r.sessions[entry.UserID] = byUser
	}
	byUser[entry.SessionID] = entry
}

func (r *registry) remove(userID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if byUser, ok := r.sessions[userID]; ok {
		delete(byUser, sessionID)
		if len(byUser) == 0 {
			delete(r.sessions, userID)
		}
	}
}

func (r *registry) get(userID, sessionID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byUser, ok := r.sessions[userID]
	if !ok {
		return Entry{}, false
	}
	entry, ok := byUser[sessionID]
	return entry, ok
}

// owner resolves which user holds a session id, for callers that only know
// the id.
func (r *registry) owner(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for userID, byUser := range r.sessions {
		if _, ok := byUser[sessionID]; ok {
			return userID, true
		}
	}
	return "", false
}

// user returns the user's entries sorted newest first.
func (r *registry) user(userID string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byUser := r.sessions[userID]
	entries := make([]Entry, 0, len(byUser))
	for _, entry := range byUser {
		entries = append(entries, entry)
	}
	sortEntries(entries)
	return entries
}

// users returns every user id with at least one registered session.
func (r *registry) users() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for userID := range r.sessions {
		ids = append(ids, userID)
	}
	sort.Strings(ids)
	return ids
}

// all returns every entry across users sorted newest first.
func (r *registry) all() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var entries []Entry
	for _, byUser := range r.sessions {
		for _, entry := range byUser {
			entries = append(entries, entry)
		}
	}
	sortEntries(entries)
	return entries
}

func (r *registry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, byUser := range r.sessions {
		total += len(byUser)
	}
	return total
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].SessionID < entries[j].SessionID
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
}
