// Package manager coordinates session lifecycle across the event log
// backends: creation, retrieval, updates, deletion, listing, cleanup,
// statistics, health, and legacy migration.
//
// All writes flow through event log deltas. The manager keeps an in-memory
// registry of known sessions for fast listing and repairs registry drift
// against backend state as it is observed.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/eventlog"
	"clipforge/internal/fileutil"
	"clipforge/internal/logging"
	"clipforge/internal/progress"
	"clipforge/internal/session"
)

const systemAuthor = "system"

// lister is implemented by backends that can enumerate stored sessions.
type lister interface {
	ListIDs(ctx context.Context) (map[string][]string, error)
}

// Manager owns session lifecycle against a primary backend with an optional
// volatile fallback.
type Manager struct {
	cfg      *config.Config
	primary  eventlog.Backend
	fallback *eventlog.Memory
	monitor  *progress.Monitor
	registry *registry
	logger   *slog.Logger
	now      func() time.Time

	// Shared across goroutines; see the concurrency notes on UpdateSession.
	fallbackActive     atomic.Bool
	migrationCompleted atomic.Bool
	closed             atomic.Bool
}

// New builds a manager over the given primary backend. When fallback is
// enabled in configuration, primary failures route to a fresh in-memory
// store instead of surfacing. The registry hydrates from the primary's
// stored sessions.
func New(cfg *config.Config, primary eventlog.Backend, logger *slog.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("manager requires configuration")
	}
	if primary == nil {
		return nil, errors.New("manager requires a backend")
	}
	m := &Manager{
		cfg:      cfg,
		primary:  primary,
		monitor:  progress.NewMonitor(cfg.Progress),
		registry: newRegistry(),
		logger:   logging.NewComponentLogger(logger, "session-manager"),
		now:      time.Now,
	}
	if cfg.Store.FallbackEnabled {
		m.fallback = eventlog.NewMemory()
	}
	m.hydrate(context.Background())
	return m, nil
}

// Monitor exposes the progress estimator wired into the manager.
func (m *Manager) Monitor() *progress.Monitor { return m.monitor }

// WithClock overrides the time source. Intended for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// FallbackActive reports whether any operation has landed on the fallback
// store since startup.
func (m *Manager) FallbackActive() bool { return m.fallbackActive.Load() }

// Close releases backend resources.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	if m.fallback != nil {
		_ = m.fallback.Close()
	}
	return m.primary.Close()
}

// hydrate rebuilds the registry from the primary backend's stored sessions.
// Failures are logged and skipped so a corrupt row cannot block startup.
func (m *Manager) hydrate(ctx context.Context) {
	source, ok := m.primary.(lister)
	if !ok {
		return
	}
	ids, err := source.ListIDs(ctx)
	if err != nil {
		m.logger.Warn("registry hydration failed", logging.Error(err))
		return
	}
	restored := 0
	for userID, sessionIDs := range ids {
		for _, sessionID := range sessionIDs {
			doc, err := m.primary.Get(ctx, userID, sessionID)
			if err != nil {
				m.logger.Warn("skip unreadable session during hydration",
					logging.String(logging.FieldSessionID, sessionID), logging.Error(err))
				continue
			}
			state, err := stateFromDocument(doc)
			if err != nil {
				m.logger.Warn("skip undecodable session during hydration",
					logging.String(logging.FieldSessionID, sessionID), logging.Error(err))
				continue
			}
			m.registry.put(entryFromState(state))
			restored++
		}
	}
	if restored > 0 {
		m.logger.Info("registry hydrated", logging.Int("sessions", restored))
	}
}

// CreateSession validates the request and stores the initial snapshot. The
// returned state carries the backend-assigned session id.
func (m *Manager) CreateSession(ctx context.Context, userID string, req session.Request) (*session.State, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if userID == "" {
		userID = session.AnonymousUser
	}

	state := session.NewState(userID, req, m.now())
	doc, err := documentFromState(state)
	if err != nil {
		return nil, err
	}

	id, err := m.primary.Create(ctx, userID, doc)
	if err != nil {
		if m.fallback == nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		m.noteFallback("create", err)
		id, err = m.fallback.Create(ctx, userID, doc)
		if err != nil {
			return nil, fmt.Errorf("create session on fallback: %w", err)
		}
	}
	state.SessionID = id

	// The id is assigned by the backend, so it lands in the snapshot via
	// the first event rather than the initial document. The stamp also
	// refreshes updated_at so the snapshot reflects the append.
	event := eventlog.NewEvent(systemAuthor)
	if err := event.Set("session_id", id); err != nil {
		return nil, err
	}
	if err := event.Set("updated_at", state.UpdatedAt); err != nil {
		return nil, err
	}
	if err := m.appendToOwner(ctx, id, event); err != nil {
		return nil, fmt.Errorf("stamp session id: %w", err)
	}

	m.registry.put(entryFromState(state))
	m.logger.Info("session created",
		logging.String(logging.FieldSessionID, id),
		logging.String(logging.FieldUserID, userID),
	)
	return state, nil
}

// GetSession loads the current state for the user's session. When the
// primary store fails or lacks the session, the fallback is consulted so
// sessions created during an outage remain reachable.
func (m *Manager) GetSession(ctx context.Context, userID, sessionID string) (*session.State, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}
	doc, err := m.primary.Get(ctx, userID, sessionID)
	if err != nil {
		if m.fallback == nil {
			if errors.Is(err, eventlog.ErrNotFound) {
				return nil, ErrSessionNotFound
			}
			return nil, fmt.Errorf("get session: %w", err)
		}
		if !errors.Is(err, eventlog.ErrNotFound) {
			m.noteFallback("get", err)
		}
		doc, err = m.fallback.Get(ctx, userID, sessionID)
		if err != nil {
			if errors.Is(err, eventlog.ErrNotFound) {
				return nil, ErrSessionNotFound
			}
			return nil, fmt.Errorf("get session from fallback: %w", err)
		}
	}
	return stateFromDocument(doc)
}

// UpdateSession applies a patch as one event. It reports false without
// error when the session is already terminal; terminal states are
// immutable.
func (m *Manager) UpdateSession(ctx context.Context, userID, sessionID string, patch Patch) (bool, error) {
	if m.closed.Load() {
		return false, ErrManagerClosed
	}
	if patch.IsZero() {
		return false, nil
	}
	state, err := m.GetSession(ctx, userID, sessionID)
	if err != nil {
		return false, err
	}
	if state.CurrentStage.Terminal() {
		return false, nil
	}

	event, updated, err := m.buildEvent(state, patch)
	if err != nil {
		return false, err
	}
	if err := m.appendToOwner(ctx, sessionID, event); err != nil {
		return false, err
	}
	m.registry.put(entryFromState(updated))
	return true, nil
}

// buildEvent converts a patch into an event delta against the given state
// and returns the state as it will look once the delta is applied.
func (m *Manager) buildEvent(state *session.State, patch Patch) (eventlog.Event, *session.State, error) {
	author := patch.Author
	if author == "" {
		author = systemAuthor
	}
	event := eventlog.NewEvent(author)
	now := m.now().UTC()

	next := *state

	if patch.Stage != nil {
		if _, ok := session.ParseStage(string(*patch.Stage)); !ok {
			return eventlog.Event{}, nil, fmt.Errorf("unknown stage %q", *patch.Stage)
		}
		next.CurrentStage = *patch.Stage
		if err := event.Set("current_stage", next.CurrentStage); err != nil {
			return eventlog.Event{}, nil, err
		}
	}

	if patch.Stage != nil || patch.StageProgress != nil {
		stageProgress := 0.0
		if patch.StageProgress != nil {
			stageProgress = *patch.StageProgress
		}
		next.Progress = m.monitor.Overall(next.CurrentStage, stageProgress, state.Progress)
		if err := event.Set("progress", next.Progress); err != nil {
			return eventlog.Event{}, nil, err
		}
		next.EstimatedCompletion = m.monitor.EstimateCompletion(next.CurrentStage, stageProgress)
		if err := event.Set("estimated_completion", next.EstimatedCompletion); err != nil {
			return eventlog.Event{}, nil, err
		}
	}

	if patch.Error != nil {
		next.ErrorLog = append([]string(nil), state.ErrorLog...)
		next.RetryCount = make(map[string]int, len(state.RetryCount)+1)
		for stage, count := range state.RetryCount {
			next.RetryCount[stage] = count
		}
		next.AddError(*patch.Error, patch.ErrorStage)
		if err := event.Set("error_message", next.ErrorMessage); err != nil {
			return eventlog.Event{}, nil, err
		}
		if err := event.Set("error_log", next.ErrorLog); err != nil {
			return eventlog.Event{}, nil, err
		}
		if err := event.Set("retry_count", next.RetryCount); err != nil {
			return eventlog.Event{}, nil, err
		}
	}

	if patch.ResearchData != nil {
		next.ResearchData = patch.ResearchData
		if err := event.Set("research_data", patch.ResearchData); err != nil {
			return eventlog.Event{}, nil, err
		}
	}
	if patch.Script != nil {
		if err := patch.Script.Validate(); err != nil {
			return eventlog.Event{}, nil, fmt.Errorf("script rejected: %w", err)
		}
		next.Script = patch.Script
		if err := event.Set("script", patch.Script); err != nil {
			return eventlog.Event{}, nil, err
		}
	}
	if patch.Assets != nil {
		next.Assets = patch.Assets
		if err := event.Set("assets", patch.Assets); err != nil {
			return eventlog.Event{}, nil, err
		}
	}
	if patch.AudioAssets != nil {
		next.AudioAssets = patch.AudioAssets
		if err := event.Set("audio_assets", patch.AudioAssets); err != nil {
			return eventlog.Event{}, nil, err
		}
	}
	if patch.FinalVideo != nil {
		next.FinalVideo = patch.FinalVideo
		if err := event.Set("final_video", patch.FinalVideo); err != nil {
			return eventlog.Event{}, nil, err
		}
	}

	if len(patch.Metadata) > 0 {
		merged := make(map[string]any, len(state.Metadata)+len(patch.Metadata))
		for key, value := range state.Metadata {
			merged[key] = value
		}
		for key, value := range patch.Metadata {
			merged[key] = value
		}
		next.Metadata = merged
		if err := event.Set("metadata", merged); err != nil {
			return eventlog.Event{}, nil, err
		}
	}

	if len(patch.IntermediateFiles) > 0 {
		next.IntermediateFiles = append([]string(nil), state.IntermediateFiles...)
		for _, path := range patch.IntermediateFiles {
			next.AddIntermediateFile(path)
		}
		if err := event.Set("intermediate_files", next.IntermediateFiles); err != nil {
			return eventlog.Event{}, nil, err
		}
	}

	next.UpdatedAt = now
	if err := event.Set("updated_at", now); err != nil {
		return eventlog.Event{}, nil, err
	}

	return event, &next, nil
}

// DeleteSession removes the session's files, then its stored state, then
// its registry entry, in that order so a failure never leaves untracked
// state behind.
func (m *Manager) DeleteSession(ctx context.Context, userID, sessionID string) error {
	_, err := m.deleteSession(ctx, userID, sessionID)
	return err
}

// deleteSession does the work of DeleteSession and reports how many
// intermediate files were removed, for the cleanup engine's tally.
func (m *Manager) deleteSession(ctx context.Context, userID, sessionID string) (int, error) {
	if m.closed.Load() {
		return 0, ErrManagerClosed
	}
	state, err := m.GetSession(ctx, userID, sessionID)
	if err != nil {
		return 0, err
	}

	filesRemoved := 0
	if len(state.IntermediateFiles) > 0 {
		removed, errs := fileutil.RemoveFiles(state.IntermediateFiles, m.cfg.AllowedCleanupRoots())
		filesRemoved = removed
		for _, fileErr := range errs {
			m.logger.Warn("session file cleanup issue",
				logging.String(logging.FieldSessionID, sessionID), logging.Error(fileErr))
		}
		if removed > 0 {
			m.logger.Info("session files removed",
				logging.String(logging.FieldSessionID, sessionID), logging.Int("files", removed))
		}
	}

	err = m.primary.Delete(ctx, userID, sessionID)
	if err != nil && m.fallback != nil {
		if !errors.Is(err, eventlog.ErrNotFound) {
			m.noteFallback("delete", err)
		}
		if fbErr := m.fallback.Delete(ctx, userID, sessionID); fbErr == nil {
			err = nil
		}
	}
	if err != nil {
		if errors.Is(err, eventlog.ErrNotFound) {
			// Registry said it existed but no backend holds it; repair.
			m.registry.remove(state.UserID, sessionID)
			return filesRemoved, ErrSessionNotFound
		}
		return filesRemoved, fmt.Errorf("delete session: %w", err)
	}

	m.registry.remove(state.UserID, sessionID)
	m.logger.Info("session deleted",
		logging.String(logging.FieldSessionID, sessionID),
		logging.String(logging.FieldUserID, state.UserID),
	)
	return filesRemoved, nil
}

// appendToOwner routes an event to whichever backend holds the session.
func (m *Manager) appendToOwner(ctx context.Context, sessionID string, event eventlog.Event) error {
	err := m.primary.AppendEvent(ctx, sessionID, event)
	if err == nil {
		return nil
	}
	if m.fallback == nil {
		return err
	}
	if !errors.Is(err, eventlog.ErrNotFound) {
		m.noteFallback("append", err)
	}
	if fbErr := m.fallback.AppendEvent(ctx, sessionID, event); fbErr == nil {
		return nil
	}
	return err
}

func (m *Manager) noteFallback(op string, err error) {
	m.fallbackActive.Store(true)
	m.logger.Warn("primary store failed; using fallback",
		logging.String("operation", op), logging.Error(err))
}
