package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clipforge/internal/fileutil"
	"clipforge/internal/logging"
	"clipforge/internal/session"
	"clipforge/internal/textutil"
)

// migrationMarker flags a legacy directory as already imported. Its
// presence makes repeat migration passes no-ops.
const migrationMarker = ".clipforge_migrated"

// MigrationReport summarizes a legacy import pass.
type MigrationReport struct {
	Scanned  int      `json:"scanned"`
	Migrated int      `json:"migrated"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

// legacySession is the flat JSON shape written by the pre-event-log
// implementation, parsed tolerantly: absent fields default rather than
// fail.
type legacySession struct {
	SessionID          string         `json:"session_id"`
	UserID             string         `json:"user_id"`
	CreatedAt          string         `json:"created_at"`
	UpdatedAt          string         `json:"updated_at"`
	Prompt             string         `json:"prompt"`
	DurationPreference int            `json:"duration_preference"`
	Style              string         `json:"style"`
	VoicePreference    string         `json:"voice_preference"`
	Quality            string         `json:"quality"`
	CurrentStage       string         `json:"current_stage"`
	Progress           float64        `json:"progress"`
	ErrorMessage       string         `json:"error_message"`
	Metadata           map[string]any `json:"metadata"`
}

// MigrateLegacy imports flat-file JSON sessions from the given directories.
// Each imported session receives a new id; the legacy id is preserved under
// metadata["legacy_session_id"]. Source files are archived into the data
// directory before the directory is marked migrated. Directories already
// carrying the marker are skipped wholesale.
func (m *Manager) MigrateLegacy(ctx context.Context, dirs []string) (MigrationReport, error) {
	if m.closed.Load() {
		return MigrationReport{}, ErrManagerClosed
	}
	report := MigrationReport{}
	archiveDir := filepath.Join(m.cfg.Paths.DataDir, "legacy_archive")

	for _, dir := range dirs {
		markerPath := filepath.Join(dir, migrationMarker)
		if _, err := os.Stat(markerPath); err == nil {
			m.logger.Info("legacy directory already migrated", logging.String("dir", dir))
			continue
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", dir, err))
			continue
		}

		dirFailed := false
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			report.Scanned++
			path := filepath.Join(dir, entry.Name())

			if err := m.migrateFile(ctx, path, archiveDir); err != nil {
				report.Failed++
				dirFailed = true
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", entry.Name(), err))
				continue
			}
			report.Migrated++
		}

		if !dirFailed {
			if err := os.WriteFile(markerPath, []byte(m.now().UTC().Format(time.RFC3339)+"\n"), 0o644); err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("%s: write marker: %v", dir, err))
			}
		}
	}

	m.migrationCompleted.Store(true)
	m.logger.Info("legacy migration finished",
		logging.Int("scanned", report.Scanned),
		logging.Int("migrated", report.Migrated),
		logging.Int("failed", report.Failed),
	)
	return report, nil
}

func (m *Manager) migrateFile(ctx context.Context, path, archiveDir string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	var legacy legacySession
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	req := session.Request{
		Prompt:          legacy.Prompt,
		DurationSeconds: legacy.DurationPreference,
		Style:           session.Style(legacy.Style),
		Voice:           legacy.VoicePreference,
		Quality:         session.Quality(legacy.Quality),
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return fmt.Errorf("legacy request invalid: %w", err)
	}

	state, err := m.CreateSession(ctx, legacy.UserID, req)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}

	patch := Patch{
		Author: "migration",
		Metadata: map[string]any{
			"legacy_session_id": legacy.SessionID,
			"migrated_at":       m.now().UTC().Format(time.RFC3339),
		},
	}
	if legacy.CreatedAt != "" {
		patch.Metadata["legacy_created_at"] = legacy.CreatedAt
	}
	if stage, ok := session.ParseStage(legacy.CurrentStage); ok && stage != session.StageInitializing {
		patch.Stage = &stage
		if !stage.Terminal() {
			stageProgress := session.ClampProgress(legacy.Progress)
			patch.StageProgress = &stageProgress
		}
	}
	if legacy.ErrorMessage != "" {
		patch.Error = &legacy.ErrorMessage
	}
	for key, value := range legacy.Metadata {
		if _, reserved := patch.Metadata[key]; !reserved {
			patch.Metadata[key] = value
		}
	}

	if _, err := m.UpdateSession(ctx, state.UserID, state.SessionID, patch); err != nil {
		return fmt.Errorf("apply legacy state: %w", err)
	}

	// Archive with verification before the source directory is marked.
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	archivePath := filepath.Join(archiveDir, textutil.SanitizeFileName(filepath.Base(path)))
	if err := fileutil.CopyVerified(path, archivePath); err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	return nil
}
