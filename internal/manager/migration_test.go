package manager_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"clipforge/internal/logging"
	"clipforge/internal/manager"
	"clipforge/internal/session"
	"clipforge/internal/testsupport"
)

func writeLegacyFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write legacy file: %v", err)
	}
	return path
}

const legacyValid = `{
	"session_id": "legacy-001",
	"user_id": "alice",
	"created_at": "2025-11-02T08:00:00Z",
	"prompt": "Explain how tides work for coastal towns",
	"duration_preference": 90,
	"style": "educational",
	"quality": "medium",
	"current_stage": "scripting",
	"progress": 0.4,
	"metadata": {"origin": "v1"}
}`

func TestMigrateLegacyImportsSessions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	backend := testsupport.MustOpenSQLite(t, cfg)
	mgr, err := manager.New(cfg, backend, logging.NewNop())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	ctx := context.Background()

	legacyDir := t.TempDir()
	writeLegacyFile(t, legacyDir, "legacy-001.json", legacyValid)
	writeLegacyFile(t, legacyDir, "broken.json", `{not json`)
	writeLegacyFile(t, legacyDir, "notes.txt", "ignored")

	report, err := mgr.MigrateLegacy(ctx, []string{legacyDir})
	if err != nil {
		t.Fatalf("MigrateLegacy: %v", err)
	}
	if report.Scanned != 2 || report.Migrated != 1 || report.Failed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}

	entries, err := mgr.ListUserSessions(ctx, "alice", manager.ListFilter{})
	if err != nil {
		t.Fatalf("ListUserSessions: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 migrated session, got %d", len(entries))
	}

	state, err := mgr.GetSession(ctx, "alice", entries[0].SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	// New id assigned; legacy id preserved in metadata.
	if state.SessionID == "legacy-001" {
		t.Fatal("expected a freshly assigned id")
	}
	if state.Metadata["legacy_session_id"] != "legacy-001" {
		t.Fatalf("legacy id not preserved: %+v", state.Metadata)
	}
	if state.Metadata["origin"] != "v1" {
		t.Fatalf("legacy metadata not carried: %+v", state.Metadata)
	}
	if state.CurrentStage != session.StageScripting {
		t.Fatalf("legacy stage not restored: %s", state.CurrentStage)
	}
	if state.Request.DurationSeconds != 90 || state.Request.Style != session.StyleEducational {
		t.Fatalf("legacy request not restored: %+v", state.Request)
	}

	// Source file archived under the data directory.
	archived := filepath.Join(cfg.Paths.DataDir, "legacy_archive", "legacy-001.json")
	if _, err := os.Stat(archived); err != nil {
		t.Fatalf("expected archive copy: %v", err)
	}
}

func TestMigrateLegacyIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	backend := testsupport.MustOpenSQLite(t, cfg)
	mgr, err := manager.New(cfg, backend, logging.NewNop())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	ctx := context.Background()

	legacyDir := t.TempDir()
	writeLegacyFile(t, legacyDir, "legacy-001.json", legacyValid)

	first, err := mgr.MigrateLegacy(ctx, []string{legacyDir})
	if err != nil {
		t.Fatalf("MigrateLegacy: %v", err)
	}
	if first.Migrated != 1 {
		t.Fatalf("unexpected first report: %+v", first)
	}

	// The marker makes the second pass a no-op.
	second, err := mgr.MigrateLegacy(ctx, []string{legacyDir})
	if err != nil {
		t.Fatalf("MigrateLegacy: %v", err)
	}
	if second.Scanned != 0 || second.Migrated != 0 {
		t.Fatalf("expected no-op second pass: %+v", second)
	}

	entries, err := mgr.ListUserSessions(ctx, "alice", manager.ListFilter{})
	if err != nil {
		t.Fatalf("ListUserSessions: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 session after repeat migration, got %d", len(entries))
	}
}

func TestMigrateLegacyFailureSkipsMarker(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	backend := testsupport.MustOpenSQLite(t, cfg)
	mgr, err := manager.New(cfg, backend, logging.NewNop())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	ctx := context.Background()

	legacyDir := t.TempDir()
	writeLegacyFile(t, legacyDir, "broken.json", `{not json`)

	report, err := mgr.MigrateLegacy(ctx, []string{legacyDir})
	if err != nil {
		t.Fatalf("MigrateLegacy: %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}

	// No marker written, so the directory is retried next pass.
	if _, err := os.Stat(filepath.Join(legacyDir, ".clipforge_migrated")); !os.IsNotExist(err) {
		t.Fatal("marker must not be written after failures")
	}
}
