package progress

import (
	"sync"
	"time"

	"clipforge/internal/session"
)

// StageStatus is one row of a monitored session's stage table.
type StageStatus struct {
	Stage             session.Stage `json:"stage"`
	Weight            float64       `json:"weight"`
	Progress          float64       `json:"progress"`
	StartedAt         *time.Time    `json:"started_at,omitempty"`
	EndedAt           *time.Time    `json:"ended_at,omitempty"`
	EstimatedDuration time.Duration `json:"estimated_duration"`
}

// Snapshot is the live view of one monitored session.
type Snapshot struct {
	SessionID           string        `json:"session_id"`
	Stage               session.Stage `json:"stage"`
	StageProgress       float64       `json:"stage_progress"`
	Overall             float64       `json:"overall"`
	StartedAt           time.Time     `json:"started_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
	EstimatedCompletion *time.Time    `json:"estimated_completion,omitempty"`
	Stages              []StageStatus `json:"stages"`
}

type trackedSession struct {
	sessionID string
	current   session.Stage
	startedAt time.Time
	updatedAt time.Time
	stages    map[session.Stage]*StageStatus
}

// Tracker keeps an in-memory stage table for sessions currently being
// worked on. It complements the durable store: the store records
// progress as events, the tracker answers cheap point-in-time queries
// with per-stage timing. Entries live from StartMonitoring until
// CompleteSession.
type Tracker struct {
	monitor *Monitor

	mu       sync.RWMutex
	sessions map[string]*trackedSession
}

// NewTracker builds a tracker around the given monitor's weights and
// stage durations.
func NewTracker(monitor *Monitor) *Tracker {
	return &Tracker{
		monitor:  monitor,
		sessions: make(map[string]*trackedSession),
	}
}

// StartMonitoring registers a session at the given stage with a full
// stage table. Stages before the given one count as already complete, so
// monitoring can begin mid-pipeline after a restart. Calling it again
// for the same session resets the entry.
func (t *Tracker) StartMonitoring(sessionID string, stage session.Stage) {
	t.mu.Lock()
	t.sessions[sessionID] = t.newSession(sessionID, stage)
	t.mu.Unlock()
}

func (t *Tracker) newSession(sessionID string, stage session.Stage) *trackedSession {
	now := t.monitor.now()
	ts := &trackedSession{
		sessionID: sessionID,
		current:   stage,
		startedAt: now,
		updatedAt: now,
		stages:    make(map[session.Stage]*StageStatus),
	}
	reached := false
	for _, candidate := range session.ActiveStages() {
		record := &StageStatus{
			Stage:             candidate,
			Weight:            t.monitor.weights[candidate],
			EstimatedDuration: t.monitor.durations[candidate],
		}
		if candidate == stage {
			reached = true
		} else if !reached {
			record.Progress = 1.0
		}
		ts.stages[candidate] = record
	}
	return ts
}

// UpdateStageProgress records in-stage progress for the session's
// current stage. The first nonzero fraction stamps the stage's start
// time and 1.0 stamps its end time. Unknown sessions are ignored.
func (t *Tracker) UpdateStageProgress(sessionID string, fraction float64) {
	fraction = session.ClampProgress(fraction)

	t.mu.Lock()
	defer t.mu.Unlock()
	ts, ok := t.sessions[sessionID]
	if !ok {
		return
	}
	now := t.monitor.now()
	record := ts.stages[ts.current]
	if record == nil {
		return
	}
	if record.StartedAt == nil && fraction > 0 {
		started := now
		record.StartedAt = &started
	}
	record.Progress = fraction
	if fraction >= 1.0 && record.EndedAt == nil {
		ended := now
		record.EndedAt = &ended
	}
	ts.updatedAt = now
}

// AdvanceToStage moves a monitored session to a new stage, completing
// every stage before it. Unknown sessions are registered so a restart
// mid-pipeline still tracks.
func (t *Tracker) AdvanceToStage(sessionID string, stage session.Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ts, ok := t.sessions[sessionID]
	if !ok {
		t.sessions[sessionID] = t.newSession(sessionID, stage)
		return
	}
	now := t.monitor.now()
	for _, candidate := range session.ActiveStages() {
		if candidate == stage {
			break
		}
		record := ts.stages[candidate]
		if record.Progress < 1.0 {
			record.Progress = 1.0
		}
		if record.EndedAt == nil {
			ended := now
			record.EndedAt = &ended
		}
	}
	ts.current = stage
	ts.updatedAt = now
}

// CompleteSession ends monitoring for a session and discards its table.
func (t *Tracker) CompleteSession(sessionID string) {
	t.mu.Lock()
	delete(t.sessions, sessionID)
	t.mu.Unlock()
}

// SessionProgress returns the live snapshot for one session. Overall is
// the weight-by-progress sum over the stage table; the estimate sums
// remaining time per incomplete stage, extrapolating the in-progress
// stage from its own elapsed time and charging configured durations for
// stages that have not started.
func (t *Tracker) SessionProgress(sessionID string) (Snapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ts, ok := t.sessions[sessionID]
	if !ok {
		return Snapshot{}, false
	}
	return t.snapshot(ts), true
}

// Active returns snapshots for every monitored session.
func (t *Tracker) Active() []Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Snapshot, 0, len(t.sessions))
	for _, ts := range t.sessions {
		out = append(out, t.snapshot(ts))
	}
	return out
}

func (t *Tracker) snapshot(ts *trackedSession) Snapshot {
	now := t.monitor.now()
	snapshot := Snapshot{
		SessionID: ts.sessionID,
		Stage:     ts.current,
		StartedAt: ts.startedAt,
		UpdatedAt: ts.updatedAt,
		Stages:    make([]StageStatus, 0, len(ts.stages)),
	}

	var overall float64
	var remaining time.Duration
	for _, candidate := range session.ActiveStages() {
		record := ts.stages[candidate]
		snapshot.Stages = append(snapshot.Stages, *record)
		overall += record.Weight * record.Progress
		if candidate == ts.current {
			snapshot.StageProgress = record.Progress
		}
		if record.Progress >= 1.0 {
			continue
		}
		remaining += stageRemaining(record, now)
	}
	snapshot.Overall = session.ClampProgress(overall)
	estimate := now.Add(remaining)
	snapshot.EstimatedCompletion = &estimate
	return snapshot
}

// stageRemaining extrapolates an in-progress stage from its own elapsed
// time; stages without measurable progress fall back to the configured
// duration scaled by what is left.
func stageRemaining(record *StageStatus, now time.Time) time.Duration {
	if record.Progress > 0 && record.StartedAt != nil {
		elapsed := now.Sub(*record.StartedAt)
		if elapsed > 0 {
			return time.Duration(float64(elapsed) * (1 - record.Progress) / record.Progress)
		}
	}
	return time.Duration(float64(record.EstimatedDuration) * (1 - record.Progress))
}
