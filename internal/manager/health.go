package manager

import (
	"context"
	"fmt"
	"time"

	"clipforge/internal/eventlog"
	"clipforge/internal/logging"
	"clipforge/internal/session"
)

// Health is the passive health snapshot: backend reachability plus counters
// the manager already has on hand.
type Health struct {
	Status             string                   `json:"status"`
	BackendReachable   bool                     `json:"backend_reachable"`
	BackendError       string                   `json:"backend_error,omitempty"`
	RegistrySessions   int                      `json:"registry_sessions"`
	ActiveSessions     int                      `json:"active_sessions"`
	FallbackActive     bool                     `json:"fallback_active"`
	MigrationCompleted bool                     `json:"migration_completed"`
	Violations         []string                 `json:"violations,omitempty"`
	Database           *eventlog.DatabaseHealth `json:"database,omitempty"`
	CheckedAt          time.Time                `json:"checked_at"`
}

// Health reports backend reachability and registry counters. An unreachable
// backend is unhealthy; an engaged fallback caps the status at degraded;
// otherwise the performance grade from current statistics applies.
func (m *Manager) Health(ctx context.Context) Health {
	health := Health{
		RegistrySessions:   m.registry.size(),
		ActiveSessions:     m.ActiveSessionCount(),
		FallbackActive:     m.fallbackActive.Load(),
		MigrationCompleted: m.migrationCompleted.Load(),
		CheckedAt:          m.now().UTC(),
	}

	if err := m.primary.Ping(ctx); err != nil {
		health.BackendError = err.Error()
		health.Status = "unhealthy"
	} else {
		health.BackendReachable = true
	}

	if diagnosable, ok := m.primary.(interface {
		CheckHealth(context.Context) (eventlog.DatabaseHealth, error)
	}); ok {
		if db, err := diagnosable.CheckHealth(ctx); err == nil {
			health.Database = &db
		}
	}

	if health.Status != "" {
		return health
	}

	stats, err := m.Statistics(ctx)
	if err != nil {
		health.Status = "unhealthy"
		return health
	}
	status, violations := m.PerformanceStatus(stats)
	health.Violations = violations
	if m.fallbackActive.Load() && status == "healthy" {
		status = "degraded"
	}
	health.Status = status
	return health
}

// ProbeStep records one synthetic operation's outcome.
type ProbeStep struct {
	Operation string  `json:"operation"`
	Millis    float64 `json:"duration_ms"`
	Error     string  `json:"error,omitempty"`
}

// ProbeReport is the result of an active end-to-end health check.
type ProbeReport struct {
	Passed    bool        `json:"passed"`
	Steps     []ProbeStep `json:"steps"`
	Millis    float64     `json:"total_ms"`
	CheckedAt time.Time   `json:"checked_at"`
}

// ForceHealthCheck exercises the full session lifecycle with a synthetic
// session: create, get, update, list, delete. It proves the write path
// works rather than just that the backend answers pings. The probe session
// is removed even when intermediate steps fail.
func (m *Manager) ForceHealthCheck(ctx context.Context) (ProbeReport, error) {
	if m.closed.Load() {
		return ProbeReport{}, ErrManagerClosed
	}
	const probeUser = "healthcheck"
	report := ProbeReport{Passed: true, CheckedAt: m.now().UTC()}
	started := time.Now()

	record := func(op string, err error, elapsed time.Duration) {
		step := ProbeStep{Operation: op, Millis: float64(elapsed.Microseconds()) / 1000}
		if err != nil {
			step.Error = err.Error()
			report.Passed = false
		}
		report.Steps = append(report.Steps, step)
	}

	stepStart := time.Now()
	state, err := m.CreateSession(ctx, probeUser, session.NewRequest("synthetic health check session probe"))
	record("create", err, time.Since(stepStart))
	if err != nil {
		report.Millis = float64(time.Since(started).Microseconds()) / 1000
		return report, fmt.Errorf("health probe create: %w", err)
	}
	sessionID := state.SessionID
	defer func() {
		_ = m.DeleteSession(context.WithoutCancel(ctx), probeUser, sessionID)
		m.registry.remove(probeUser, sessionID)
	}()

	stepStart = time.Now()
	_, err = m.GetSession(ctx, probeUser, sessionID)
	record("get", err, time.Since(stepStart))

	stage := session.StageResearching
	progressValue := 0.5
	stepStart = time.Now()
	_, err = m.UpdateSession(ctx, probeUser, sessionID, Patch{
		Stage:         &stage,
		StageProgress: &progressValue,
		Author:        "healthcheck",
	})
	record("update", err, time.Since(stepStart))

	stepStart = time.Now()
	_, err = m.ListUserSessions(ctx, probeUser, ListFilter{})
	record("list", err, time.Since(stepStart))

	stepStart = time.Now()
	err = m.DeleteSession(ctx, probeUser, sessionID)
	record("delete", err, time.Since(stepStart))

	report.Millis = float64(time.Since(started).Microseconds()) / 1000
	if !report.Passed {
		m.logger.Warn("health probe failed", logging.Any("steps", report.Steps))
	}
	return report, nil
}
