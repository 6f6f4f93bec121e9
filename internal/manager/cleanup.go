package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clipforge/internal/logging"
)

// CleanupReport summarizes one retention pass.
type CleanupReport struct {
	Examined     int       `json:"examined"`
	Removed      int       `json:"removed"`
	Skipped      int       `json:"skipped"`
	Failed       int       `json:"failed"`
	FilesRemoved int       `json:"files_removed"`
	Errors       []string  `json:"errors,omitempty"`
	Truncated    bool      `json:"errors_truncated,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	Duration     string    `json:"duration"`
}

// CleanupExpired removes sessions past the retention policy: anything older
// than the maximum session age, and terminal sessions past the completion
// grace period. Sessions whose creation time cannot be determined are
// treated as expired. The error list in the report is capped.
func (m *Manager) CleanupExpired(ctx context.Context) (CleanupReport, error) {
	if m.closed.Load() {
		return CleanupReport{}, ErrManagerClosed
	}
	started := m.now()
	report := CleanupReport{StartedAt: started.UTC()}

	maxAge := time.Duration(m.cfg.Retention.MaxSessionAgeHours) * time.Hour
	grace := time.Duration(m.cfg.Retention.CompletedGraceHours) * time.Hour
	maxErrors := m.cfg.Retention.MaxReportErrors

	for _, entry := range m.candidates(ctx) {
		report.Examined++

		state, err := m.GetSession(ctx, entry.UserID, entry.SessionID)
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				m.registry.remove(entry.UserID, entry.SessionID)
				report.Skipped++
				continue
			}
			report.Failed++
			appendBounded(&report, maxErrors, fmt.Sprintf("%s: load: %v", entry.SessionID, err))
			continue
		}

		if !m.expired(state.CreatedAt, state.CurrentStage.Terminal(), started, maxAge, grace) {
			report.Skipped++
			continue
		}

		files, err := m.deleteSession(ctx, state.UserID, state.SessionID)
		report.FilesRemoved += files
		if err != nil {
			report.Failed++
			appendBounded(&report, maxErrors, fmt.Sprintf("%s: delete: %v", state.SessionID, err))
			continue
		}
		report.Removed++
	}

	report.Duration = m.now().Sub(started).String()
	if report.Removed > 0 || report.Failed > 0 {
		m.logger.Info("cleanup pass finished",
			logging.Int("examined", report.Examined),
			logging.Int("removed", report.Removed),
			logging.Int("failed", report.Failed),
		)
	}
	return report, nil
}

// expired applies the retention policy to one session. Both the maximum
// age and the terminal grace period run from the creation time, so a late
// completion never extends a session's lifetime. A zero creation time
// cannot prove freshness and counts as expired.
func (m *Manager) expired(createdAt time.Time, terminal bool, now time.Time, maxAge, grace time.Duration) bool {
	if createdAt.IsZero() {
		return true
	}
	if now.Sub(createdAt) > maxAge {
		return true
	}
	if terminal {
		return now.Sub(createdAt) > grace
	}
	return false
}

// candidates unions the registry with the primary store's contents so
// sessions missing from either side still get examined.
func (m *Manager) candidates(ctx context.Context) []Entry {
	entries := m.registry.all()
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		seen[entry.SessionID] = struct{}{}
	}
	if source, ok := m.primary.(lister); ok {
		if ids, err := source.ListIDs(ctx); err == nil {
			for userID, sessionIDs := range ids {
				for _, sessionID := range sessionIDs {
					if _, dup := seen[sessionID]; dup {
						continue
					}
					seen[sessionID] = struct{}{}
					entries = append(entries, Entry{SessionID: sessionID, UserID: userID})
				}
			}
		}
	}
	return entries
}

func appendBounded(report *CleanupReport, maxErrors int, message string) {
	if maxErrors > 0 && len(report.Errors) >= maxErrors {
		report.Truncated = true
		return
	}
	report.Errors = append(report.Errors, message)
}
