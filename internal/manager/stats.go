package manager

import (
	"context"
	"time"
)

// Statistics aggregates the current session population.
type Statistics struct {
	Total     int            `json:"total_sessions"`
	Active    int            `json:"active_sessions"`
	Completed int            `json:"completed_sessions"`
	Failed    int            `json:"failed_sessions"`
	ByStatus  map[string]int `json:"by_status"`
	ByStage   map[string]int `json:"by_stage"`
	PerUser   map[string]int `json:"per_user"`

	// AverageProgress is the mean completion fraction over queued and
	// processing sessions.
	AverageProgress float64 `json:"average_progress"`

	// AvgCompletionSeconds is the mean wall-clock time from creation to
	// last update over completed sessions.
	AvgCompletionSeconds float64 `json:"avg_completion_seconds"`

	// ErrorRate is failed sessions over all sessions.
	ErrorRate float64 `json:"error_rate"`

	// SuccessRate is completed sessions over all terminal sessions.
	SuccessRate float64 `json:"success_rate"`

	// Throughput counts sessions that reached completed within the
	// trailing window, measured against GeneratedAt.
	ThroughputLastHour int `json:"throughput_last_hour"`
	ThroughputLastDay  int `json:"throughput_last_day"`

	OldestCreatedAt *time.Time `json:"oldest_created_at,omitempty"`
	NewestCreatedAt *time.Time `json:"newest_created_at,omitempty"`

	BackendDriver  string    `json:"backend_driver"`
	FallbackActive bool      `json:"fallback_active"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// Statistics computes aggregate counters from the registry. Listing
// freshness rules apply: call ListUserSessions first when exact per-user
// numbers matter.
func (m *Manager) Statistics(ctx context.Context) (Statistics, error) {
	if m.closed.Load() {
		return Statistics{}, ErrManagerClosed
	}
	_ = ctx

	stats := Statistics{
		ByStatus:       make(map[string]int),
		ByStage:        make(map[string]int),
		PerUser:        make(map[string]int),
		BackendDriver:  m.cfg.Store.Driver,
		FallbackActive: m.fallbackActive.Load(),
		GeneratedAt:    m.now().UTC(),
	}
	hourAgo := stats.GeneratedAt.Add(-time.Hour)
	dayAgo := stats.GeneratedAt.Add(-24 * time.Hour)

	var (
		activeCount      int
		activeProgress   float64
		completedCount   int
		completedSeconds float64
		failedCount      int
	)

	for _, entry := range m.registry.all() {
		stats.Total++
		stats.ByStatus[entry.Status]++
		stats.ByStage[entry.Stage]++
		stats.PerUser[entry.UserID]++

		switch entry.Status {
		case "queued", "processing":
			activeCount++
			activeProgress += entry.Progress
		case "completed":
			completedCount++
			if !entry.CreatedAt.IsZero() && entry.UpdatedAt.After(entry.CreatedAt) {
				completedSeconds += entry.UpdatedAt.Sub(entry.CreatedAt).Seconds()
			}
			if entry.UpdatedAt.After(hourAgo) {
				stats.ThroughputLastHour++
			}
			if entry.UpdatedAt.After(dayAgo) {
				stats.ThroughputLastDay++
			}
		case "failed":
			failedCount++
		}

		created := entry.CreatedAt
		if created.IsZero() {
			continue
		}
		if stats.OldestCreatedAt == nil || created.Before(*stats.OldestCreatedAt) {
			oldest := created
			stats.OldestCreatedAt = &oldest
		}
		if stats.NewestCreatedAt == nil || created.After(*stats.NewestCreatedAt) {
			newest := created
			stats.NewestCreatedAt = &newest
		}
	}

	stats.Active = activeCount
	stats.Completed = completedCount
	stats.Failed = failedCount
	if activeCount > 0 {
		stats.AverageProgress = activeProgress / float64(activeCount)
	}
	if completedCount > 0 {
		stats.AvgCompletionSeconds = completedSeconds / float64(completedCount)
	}
	if stats.Total > 0 {
		stats.ErrorRate = float64(failedCount) / float64(stats.Total)
	}
	if terminal := completedCount + failedCount; terminal > 0 {
		stats.SuccessRate = float64(completedCount) / float64(terminal)
	}

	return stats, nil
}

// PerformanceStatus grades statistics against the configured thresholds.
// No violations is healthy, one is degraded, more is unhealthy.
func (m *Manager) PerformanceStatus(stats Statistics) (string, []string) {
	var violations []string
	perf := m.cfg.Performance

	if stats.AvgCompletionSeconds > perf.MaxAvgCompletionSeconds && stats.ByStatus["completed"] > 0 {
		violations = append(violations, "average completion time above threshold")
	}
	if stats.ErrorRate > perf.MaxErrorRate {
		violations = append(violations, "error rate above threshold")
	}
	terminal := stats.ByStatus["completed"] + stats.ByStatus["failed"]
	if terminal > 0 && stats.SuccessRate < perf.MinSuccessRate {
		violations = append(violations, "success rate below threshold")
	}

	switch len(violations) {
	case 0:
		return "healthy", nil
	case 1:
		return "degraded", violations
	default:
		return "unhealthy", violations
	}
}
