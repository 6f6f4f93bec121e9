package manager_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"clipforge/internal/eventlog"
	"clipforge/internal/logging"
	"clipforge/internal/manager"
	"clipforge/internal/session"
	"clipforge/internal/testsupport"
)

func newManager(t *testing.T, opts ...testsupport.ConfigOption) *manager.Manager {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	backend := testsupport.MustOpenSQLite(t, cfg)
	mgr, err := manager.New(cfg, backend, logging.NewNop())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return mgr
}

func validRequest() session.Request {
	return session.NewRequest("Explain how tides work for coastal towns")
}

func TestCreateAndGetSession(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()

	state, err := mgr.CreateSession(ctx, "alice", validRequest())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if state.SessionID == "" {
		t.Fatal("expected assigned session id")
	}
	if state.CurrentStage != session.StageInitializing {
		t.Fatalf("unexpected stage: %s", state.CurrentStage)
	}

	loaded, err := mgr.GetSession(ctx, "alice", state.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if loaded.SessionID != state.SessionID {
		t.Fatalf("snapshot missing session id: %q", loaded.SessionID)
	}
	if loaded.Request.Prompt != state.Request.Prompt {
		t.Fatalf("prompt mismatch: %q", loaded.Request.Prompt)
	}
}

func TestCreateSessionStampCarriesIDAndUpdatedAt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	backend := testsupport.MustOpenSQLite(t, cfg)
	mgr, err := manager.New(cfg, backend, logging.NewNop())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	ctx := context.Background()

	state, err := mgr.CreateSession(ctx, "alice", validRequest())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	events, err := backend.Events(ctx, state.SessionID)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected the stamp event only, got %d", len(events))
	}
	stamp := events[0]
	if stamp.Author != "system" {
		t.Fatalf("unexpected author: %q", stamp.Author)
	}
	if _, ok := stamp.StateDelta["session_id"]; !ok {
		t.Fatalf("stamp missing session_id: %+v", stamp.StateDelta)
	}
	if _, ok := stamp.StateDelta["updated_at"]; !ok {
		t.Fatalf("stamp missing updated_at: %+v", stamp.StateDelta)
	}
}

func TestCreateSessionDefaultsAnonymous(t *testing.T) {
	mgr := newManager(t)
	state, err := mgr.CreateSession(context.Background(), "", validRequest())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if state.UserID != session.AnonymousUser {
		t.Fatalf("unexpected user: %q", state.UserID)
	}
}

func TestCreateSessionRejectsInvalidRequest(t *testing.T) {
	mgr := newManager(t)
	_, err := mgr.CreateSession(context.Background(), "alice", session.Request{Prompt: "short"})
	if !errors.Is(err, manager.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestGetSessionEnforcesScope(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	state, err := mgr.CreateSession(ctx, "alice", validRequest())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := mgr.GetSession(ctx, "bob", state.SessionID); !errors.Is(err, manager.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for foreign user, got %v", err)
	}
}

func TestUpdateSessionAdvancesStageAndProgress(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	state, err := mgr.CreateSession(ctx, "alice", validRequest())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	stage := session.StageScripting
	stageProgress := 0.5
	applied, err := mgr.UpdateSession(ctx, "alice", state.SessionID, manager.Patch{
		Stage:         &stage,
		StageProgress: &stageProgress,
		Author:        "pipeline",
	})
	if err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}
	if !applied {
		t.Fatal("expected update to apply")
	}

	loaded, err := mgr.GetSession(ctx, "alice", state.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if loaded.CurrentStage != session.StageScripting {
		t.Fatalf("unexpected stage: %s", loaded.CurrentStage)
	}
	// 0.05 + 0.15 + 0.5*0.20
	if loaded.Progress < 0.29 || loaded.Progress > 0.31 {
		t.Fatalf("unexpected progress: %f", loaded.Progress)
	}
	if loaded.EstimatedCompletion == nil {
		t.Fatal("expected completion estimate")
	}
	if loaded.Revision < 2 {
		t.Fatalf("expected revision bump, got %d", loaded.Revision)
	}
}

func TestUpdateSessionRejectsTerminal(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	state, err := mgr.CreateSession(ctx, "alice", validRequest())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	completed := session.StageCompleted
	if _, err := mgr.UpdateSession(ctx, "alice", state.SessionID, manager.Patch{Stage: &completed}); err != nil {
		t.Fatalf("UpdateSession to completed: %v", err)
	}

	next := session.StageResearching
	applied, err := mgr.UpdateSession(ctx, "alice", state.SessionID, manager.Patch{Stage: &next})
	if err != nil {
		t.Fatalf("UpdateSession after terminal: %v", err)
	}
	if applied {
		t.Fatal("terminal session must reject updates")
	}

	loaded, err := mgr.GetSession(ctx, "alice", state.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if loaded.CurrentStage != session.StageCompleted {
		t.Fatalf("terminal stage mutated: %s", loaded.CurrentStage)
	}
	if loaded.Progress != 1.0 {
		t.Fatalf("completed session progress %f, want 1.0", loaded.Progress)
	}
}

func TestUpdateSessionStoresPayloadsAndMetadata(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	state, err := mgr.CreateSession(ctx, "alice", validRequest())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	script := &session.Script{
		Title:           "Tides",
		DurationSeconds: 60,
		Scenes: []session.Scene{
			{Number: 1, DurationSeconds: 30},
			{Number: 2, DurationSeconds: 30},
		},
	}
	if _, err := mgr.UpdateSession(ctx, "alice", state.SessionID, manager.Patch{
		Script:   script,
		Metadata: map[string]any{"source": "test"},
	}); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}
	if _, err := mgr.UpdateSession(ctx, "alice", state.SessionID, manager.Patch{
		Metadata: map[string]any{"attempt": float64(2)},
	}); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}

	loaded, err := mgr.GetSession(ctx, "alice", state.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if loaded.Script == nil || loaded.Script.Title != "Tides" {
		t.Fatalf("script not stored: %+v", loaded.Script)
	}
	// Metadata merges across updates instead of replacing.
	if loaded.Metadata["source"] != "test" || loaded.Metadata["attempt"] != float64(2) {
		t.Fatalf("metadata not merged: %+v", loaded.Metadata)
	}
}

func TestUpdateSessionRejectsInvalidScript(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	state, err := mgr.CreateSession(ctx, "alice", validRequest())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	bad := &session.Script{Title: "x", DurationSeconds: 60}
	if _, err := mgr.UpdateSession(ctx, "alice", state.SessionID, manager.Patch{Script: bad}); err == nil {
		t.Fatal("expected script validation error")
	}
}

func TestUpdateSessionRecordsErrors(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	state, err := mgr.CreateSession(ctx, "alice", validRequest())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	message := "tts provider timeout"
	for i := 0; i < 2; i++ {
		if _, err := mgr.UpdateSession(ctx, "alice", state.SessionID, manager.Patch{
			Error:      &message,
			ErrorStage: session.StageAudioGeneration,
		}); err != nil {
			t.Fatalf("UpdateSession: %v", err)
		}
	}

	loaded, err := mgr.GetSession(ctx, "alice", state.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if loaded.ErrorMessage != message {
		t.Fatalf("unexpected error message: %q", loaded.ErrorMessage)
	}
	if len(loaded.ErrorLog) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(loaded.ErrorLog))
	}
	if loaded.RetryCount[string(session.StageAudioGeneration)] != 2 {
		t.Fatalf("unexpected retry count: %+v", loaded.RetryCount)
	}
}

func TestConcurrentUpdatesToDistinctFields(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	state, err := mgr.CreateSession(ctx, "alice", validRequest())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var patch manager.Patch
			if i%2 == 0 {
				patch.Metadata = map[string]any{"worker": float64(i)}
			} else {
				patch.IntermediateFiles = []string{filepath.Join(os.TempDir(), "clip", "part.mp4")}
			}
			if _, err := mgr.UpdateSession(ctx, "alice", state.SessionID, patch); err != nil {
				t.Errorf("UpdateSession: %v", err)
			}
		}(i)
	}
	wg.Wait()

	loaded, err := mgr.GetSession(ctx, "alice", state.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if loaded.Revision < 9 {
		t.Fatalf("expected at least 9 events applied, got revision %d", loaded.Revision)
	}
	// Duplicate file paths collapse to one entry.
	if len(loaded.IntermediateFiles) != 1 {
		t.Fatalf("unexpected intermediate files: %+v", loaded.IntermediateFiles)
	}
}

func TestDeleteSessionRemovesFilesAndState(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	backend := testsupport.MustOpenSQLite(t, cfg)
	mgr, err := manager.New(cfg, backend, logging.NewNop())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	ctx := context.Background()

	state, err := mgr.CreateSession(ctx, "alice", validRequest())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	artifact := filepath.Join(cfg.Paths.TempDir, "scene1.mp4")
	if err := os.WriteFile(artifact, []byte("x"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	if _, err := mgr.UpdateSession(ctx, "alice", state.SessionID, manager.Patch{
		IntermediateFiles: []string{artifact, "/etc/passwd"},
	}); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}

	if err := mgr.DeleteSession(ctx, "alice", state.SessionID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}

	if _, err := os.Stat(artifact); !os.IsNotExist(err) {
		t.Fatal("expected artifact removed")
	}
	if _, err := os.Stat("/etc/passwd"); err != nil {
		t.Fatal("system file must never be touched")
	}
	if _, err := mgr.GetSession(ctx, "alice", state.SessionID); !errors.Is(err, manager.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
}

func TestDeleteSessionUnknown(t *testing.T) {
	mgr := newManager(t)
	if err := mgr.DeleteSession(context.Background(), "alice", "missing"); !errors.Is(err, manager.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRegistryHydratesFromDurableState(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	backend := testsupport.MustOpenSQLite(t, cfg)
	mgr, err := manager.New(cfg, backend, logging.NewNop())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	ctx := context.Background()
	state, err := mgr.CreateSession(ctx, "alice", validRequest())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// A second manager over the same database sees the session without
	// any listing call.
	second, err := eventlog.OpenSQLite(cfg.DatabasePath())
	if err != nil {
		t.Fatalf("reopen backend: %v", err)
	}
	t.Cleanup(func() { _ = second.Close() })
	restarted, err := manager.New(cfg, second, logging.NewNop())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	entries, err := restarted.ListUserSessions(ctx, "alice", manager.ListFilter{})
	if err != nil {
		t.Fatalf("ListUserSessions: %v", err)
	}
	if len(entries) != 1 || entries[0].SessionID != state.SessionID {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestFallbackKeepsServiceAlive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	mgr, err := manager.New(cfg, testsupport.FailingBackend{}, logging.NewNop())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	ctx := context.Background()

	state, err := mgr.CreateSession(ctx, "alice", validRequest())
	if err != nil {
		t.Fatalf("CreateSession via fallback: %v", err)
	}
	if !mgr.FallbackActive() {
		t.Fatal("expected fallback engaged")
	}

	loaded, err := mgr.GetSession(ctx, "alice", state.SessionID)
	if err != nil {
		t.Fatalf("GetSession via fallback: %v", err)
	}
	if loaded.SessionID != state.SessionID {
		t.Fatalf("unexpected session: %q", loaded.SessionID)
	}

	stage := session.StageResearching
	if applied, err := mgr.UpdateSession(ctx, "alice", state.SessionID, manager.Patch{Stage: &stage}); err != nil || !applied {
		t.Fatalf("UpdateSession via fallback: applied=%v err=%v", applied, err)
	}
	if err := mgr.DeleteSession(ctx, "alice", state.SessionID); err != nil {
		t.Fatalf("DeleteSession via fallback: %v", err)
	}
}

func TestFallbackFlagSafeUnderConcurrency(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	mgr, err := manager.New(cfg, testsupport.FailingBackend{}, logging.NewNop())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	ctx := context.Background()

	// Writers trip the fallback flag while readers poll it.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := mgr.CreateSession(ctx, "alice", validRequest()); err != nil {
				t.Errorf("CreateSession: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			_ = mgr.FallbackActive()
		}()
	}
	wg.Wait()

	if !mgr.FallbackActive() {
		t.Fatal("expected fallback engaged")
	}
}

func TestNoFallbackSurfacesPrimaryError(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutFallback())
	mgr, err := manager.New(cfg, testsupport.FailingBackend{}, logging.NewNop())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := mgr.CreateSession(context.Background(), "alice", validRequest()); !errors.Is(err, testsupport.ErrBackendDown) {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestListUserSessionsFilterAndPagination(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	mgr.WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})

	var ids []string
	for i := 0; i < 5; i++ {
		state, err := mgr.CreateSession(ctx, "alice", validRequest())
		if err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
		ids = append(ids, state.SessionID)
	}
	completed := session.StageCompleted
	if _, err := mgr.UpdateSession(ctx, "alice", ids[0], manager.Patch{Stage: &completed}); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}

	all, err := mgr.ListUserSessions(ctx, "alice", manager.ListFilter{})
	if err != nil {
		t.Fatalf("ListUserSessions: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 sessions, got %d", len(all))
	}
	// Newest first.
	if all[0].SessionID != ids[4] {
		t.Fatalf("expected newest first, got %s", all[0].SessionID)
	}

	queued, err := mgr.ListUserSessions(ctx, "alice", manager.ListFilter{Status: "queued"})
	if err != nil {
		t.Fatalf("ListUserSessions: %v", err)
	}
	if len(queued) != 4 {
		t.Fatalf("expected 4 queued, got %d", len(queued))
	}

	page, err := mgr.ListUserSessions(ctx, "alice", manager.ListFilter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("ListUserSessions: %v", err)
	}
	if len(page) != 2 || page[0].SessionID != ids[3] {
		t.Fatalf("unexpected page: %+v", page)
	}

	empty, err := mgr.ListUserSessions(ctx, "alice", manager.ListFilter{Offset: 10})
	if err != nil {
		t.Fatalf("ListUserSessions: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty page, got %d", len(empty))
	}
}

func TestListEntriesCarryPromptPreview(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()

	prompt := "Explain how tides work for coastal towns, covering " + strings.Repeat("harbors estuaries inlets ", 6) + "and beaches"
	state, err := mgr.CreateSession(ctx, "alice", session.NewRequest(prompt))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	entries, err := mgr.ListUserSessions(ctx, "alice", manager.ListFilter{})
	if err != nil {
		t.Fatalf("ListUserSessions: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	// Listings carry a 100-character preview, not the full prompt.
	if got := len([]rune(entries[0].Prompt)); got != 100 {
		t.Fatalf("preview length %d, want 100", got)
	}
	if !strings.HasPrefix(prompt, entries[0].Prompt) {
		t.Fatalf("preview is not a prefix: %q", entries[0].Prompt)
	}

	loaded, err := mgr.GetSession(ctx, "alice", state.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if loaded.Request.Prompt != prompt {
		t.Fatalf("stored prompt truncated: %q", loaded.Request.Prompt)
	}
}

func TestListRepairsRegistryDrift(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	backend := testsupport.MustOpenSQLite(t, cfg)
	mgr, err := manager.New(cfg, backend, logging.NewNop())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	ctx := context.Background()

	state, err := mgr.CreateSession(ctx, "alice", validRequest())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// Remove the stored session behind the manager's back.
	if err := backend.Delete(ctx, "alice", state.SessionID); err != nil {
		t.Fatalf("backend delete: %v", err)
	}

	entries, err := mgr.ListUserSessions(ctx, "alice", manager.ListFilter{})
	if err != nil {
		t.Fatalf("ListUserSessions: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected drift repaired, got %+v", entries)
	}
}

func TestListAllSessionsRepairsRegistryDrift(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	backend := testsupport.MustOpenSQLite(t, cfg)
	mgr, err := manager.New(cfg, backend, logging.NewNop())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	ctx := context.Background()

	gone, err := mgr.CreateSession(ctx, "alice", validRequest())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	kept, err := mgr.CreateSession(ctx, "bob", validRequest())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// Remove one stored session behind the manager's back.
	if err := backend.Delete(ctx, "alice", gone.SessionID); err != nil {
		t.Fatalf("backend delete: %v", err)
	}

	entries, err := mgr.ListAllSessions(ctx, manager.ListFilter{})
	if err != nil {
		t.Fatalf("ListAllSessions: %v", err)
	}
	if len(entries) != 1 || entries[0].SessionID != kept.SessionID {
		t.Fatalf("expected only the surviving session, got %+v", entries)
	}

	// The stale entry is also gone from the registry, not just filtered.
	again, err := mgr.ListAllSessions(ctx, manager.ListFilter{})
	if err != nil {
		t.Fatalf("ListAllSessions: %v", err)
	}
	if len(again) != 1 {
		t.Fatalf("stale entry resurfaced: %+v", again)
	}
}

func TestListAllSessionsDiscoversForeignSessions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	backend := testsupport.MustOpenSQLite(t, cfg)
	mgr, err := manager.New(cfg, backend, logging.NewNop())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	ctx := context.Background()
	state, err := mgr.CreateSession(ctx, "alice", validRequest())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// A second manager over the same database starts cold and must pick
	// the session up during the all-users listing.
	second, err := eventlog.OpenSQLite(cfg.DatabasePath())
	if err != nil {
		t.Fatalf("reopen backend: %v", err)
	}
	t.Cleanup(func() { _ = second.Close() })
	other, err := manager.New(cfg, second, logging.NewNop())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	entries, err := other.ListAllSessions(ctx, manager.ListFilter{})
	if err != nil {
		t.Fatalf("ListAllSessions: %v", err)
	}
	if len(entries) != 1 || entries[0].SessionID != state.SessionID {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestManagerClosedRejectsOperations(t *testing.T) {
	mgr := newManager(t)
	if err := mgr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := mgr.CreateSession(context.Background(), "alice", validRequest()); !errors.Is(err, manager.ErrManagerClosed) {
		t.Fatalf("expected ErrManagerClosed, got %v", err)
	}
}

func TestGetSessionPrefersFallbackOnlyWhenNeeded(t *testing.T) {
	mgr := newManager(t)
	if _, err := mgr.GetSession(context.Background(), "alice", "nope"); !errors.Is(err, manager.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestErrorLogEntriesAreTimestamped(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	state, err := mgr.CreateSession(ctx, "alice", validRequest())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	message := "asset download failed"
	if _, err := mgr.UpdateSession(ctx, "alice", state.SessionID, manager.Patch{Error: &message}); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}
	loaded, err := mgr.GetSession(ctx, "alice", state.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if len(loaded.ErrorLog) != 1 || !strings.Contains(loaded.ErrorLog[0], message) {
		t.Fatalf("unexpected error log: %+v", loaded.ErrorLog)
	}
}
