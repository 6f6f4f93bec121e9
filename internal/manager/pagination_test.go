package manager_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"clipforge/internal/manager"
	"clipforge/internal/session"
)

func TestListUserSessionsPaginated(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()

	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
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

	first, err := mgr.ListUserSessionsPaginated(ctx, "alice", 1, 2, "")
	if err != nil {
		t.Fatalf("ListUserSessionsPaginated: %v", err)
	}
	if len(first.Entries) != 2 || first.Entries[0].SessionID != ids[4] {
		t.Fatalf("unexpected first page: %+v", first.Entries)
	}
	if first.Info.TotalCount != 5 || first.Info.TotalPages != 3 {
		t.Fatalf("unexpected page info: %+v", first.Info)
	}
	if !first.Info.HasNext || first.Info.HasPrev {
		t.Fatalf("unexpected nav flags: %+v", first.Info)
	}

	last, err := mgr.ListUserSessionsPaginated(ctx, "alice", 3, 2, "")
	if err != nil {
		t.Fatalf("ListUserSessionsPaginated: %v", err)
	}
	if len(last.Entries) != 1 || last.Entries[0].SessionID != ids[0] {
		t.Fatalf("unexpected last page: %+v", last.Entries)
	}
	if last.Info.HasNext || !last.Info.HasPrev {
		t.Fatalf("unexpected nav flags: %+v", last.Info)
	}
}

func TestListUserSessionsPaginatedPastEnd(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	if _, err := mgr.CreateSession(ctx, "alice", validRequest()); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	page, err := mgr.ListUserSessionsPaginated(ctx, "alice", 9, 2, "")
	if err != nil {
		t.Fatalf("ListUserSessionsPaginated: %v", err)
	}
	if len(page.Entries) != 0 {
		t.Fatalf("expected empty page, got %+v", page.Entries)
	}
	if page.Info.TotalCount != 1 || page.Info.TotalPages != 1 {
		t.Fatalf("unexpected page info: %+v", page.Info)
	}
	if page.Info.HasNext || !page.Info.HasPrev {
		t.Fatalf("unexpected nav flags: %+v", page.Info)
	}
}

func TestListUserSessionsPaginatedRejectsZeroPage(t *testing.T) {
	mgr := newManager(t)
	if _, err := mgr.ListUserSessionsPaginated(context.Background(), "alice", 0, 2, ""); !errors.Is(err, manager.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestListUserSessionsPaginatedFiltersStatus(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()

	state, err := mgr.CreateSession(ctx, "alice", validRequest())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := mgr.CreateSession(ctx, "alice", validRequest()); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	completed := session.StageCompleted
	if _, err := mgr.UpdateSession(ctx, "alice", state.SessionID, manager.Patch{Stage: &completed}); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}

	page, err := mgr.ListUserSessionsPaginated(ctx, "alice", 1, 10, "completed")
	if err != nil {
		t.Fatalf("ListUserSessionsPaginated: %v", err)
	}
	if len(page.Entries) != 1 || page.Entries[0].SessionID != state.SessionID {
		t.Fatalf("unexpected filtered page: %+v", page.Entries)
	}
	if page.Info.TotalCount != 1 {
		t.Fatalf("filtered total should count matches only: %+v", page.Info)
	}
}

func TestGetSessionStatusView(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()

	state, err := mgr.CreateSession(ctx, "alice", validRequest())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	stage := session.StageScripting
	stageProgress := 0.5
	if _, err := mgr.UpdateSession(ctx, "alice", state.SessionID, manager.Patch{
		Stage:         &stage,
		StageProgress: &stageProgress,
	}); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}

	status, err := mgr.GetSessionStatus(ctx, "alice", state.SessionID)
	if err != nil {
		t.Fatalf("GetSessionStatus: %v", err)
	}
	if status.SessionID != state.SessionID {
		t.Fatalf("unexpected session id: %q", status.SessionID)
	}
	if status.Status != "processing" || status.CurrentStage != session.StageScripting {
		t.Fatalf("unexpected status view: %+v", status)
	}
	if status.Progress <= 0 {
		t.Fatalf("expected progress, got %f", status.Progress)
	}
	if status.EstimatedCompletion == nil {
		t.Fatal("expected completion estimate")
	}

	if _, err := mgr.GetSessionStatus(ctx, "bob", state.SessionID); !errors.Is(err, manager.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for foreign user, got %v", err)
	}
}
