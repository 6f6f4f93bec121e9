package session_test

import (
	"strings"
	"testing"
	"time"

	"clipforge/internal/session"
)

func TestStageOrderingAndTerminal(t *testing.T) {
	stages := session.AllStages()
	if len(stages) != 9 {
		t.Fatalf("expected 9 stages, got %d", len(stages))
	}
	if stages[0] != session.StageInitializing {
		t.Fatalf("unexpected first stage: %s", stages[0])
	}
	for i, stage := range stages {
		if stage.Index() != i {
			t.Fatalf("stage %s index %d, want %d", stage, stage.Index(), i)
		}
	}
	if !session.StageCompleted.Terminal() || !session.StageFailed.Terminal() {
		t.Fatal("completed and failed must be terminal")
	}
	if session.StageScripting.Terminal() {
		t.Fatal("scripting must not be terminal")
	}
}

func TestParseStage(t *testing.T) {
	stage, ok := session.ParseStage(" Audio_Generation ")
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if stage != session.StageAudioGeneration {
		t.Fatalf("unexpected stage: %s", stage)
	}
	if _, ok := session.ParseStage("rendering"); ok {
		t.Fatal("expected parse failure for unknown stage")
	}
}

func TestStatusKeyBuckets(t *testing.T) {
	cases := map[session.Stage]string{
		session.StageInitializing:  session.StatusQueued,
		session.StageResearching:   session.StatusProcessing,
		session.StageVideoAssembly: session.StatusProcessing,
		session.StageCompleted:     session.StatusCompleted,
		session.StageFailed:        session.StatusFailed,
	}
	for stage, want := range cases {
		if got := stage.StatusKey(); got != want {
			t.Fatalf("stage %s status %q, want %q", stage, got, want)
		}
	}
}

func TestRequestNormalizeAppliesDefaults(t *testing.T) {
	req := session.Request{Prompt: "  Explain how tides work  ", Style: "  CASUAL "}
	req.Normalize()
	if req.Prompt != "Explain how tides work" {
		t.Fatalf("unexpected prompt: %q", req.Prompt)
	}
	if req.Style != session.StyleCasual {
		t.Fatalf("unexpected style: %q", req.Style)
	}
	if req.Quality != session.QualityHigh {
		t.Fatalf("unexpected quality: %q", req.Quality)
	}
	if req.Voice != "neutral" {
		t.Fatalf("unexpected voice: %q", req.Voice)
	}
	if req.DurationSeconds != 60 {
		t.Fatalf("unexpected duration: %d", req.DurationSeconds)
	}
	if err := req.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestRequestValidateBounds(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*session.Request)
	}{
		{"blank prompt", func(r *session.Request) { r.Prompt = "   " }},
		{"short prompt", func(r *session.Request) { r.Prompt = "too short" }},
		{"long prompt", func(r *session.Request) { r.Prompt = strings.Repeat("x", 2001) }},
		{"duration low", func(r *session.Request) { r.DurationSeconds = 5 }},
		{"duration high", func(r *session.Request) { r.DurationSeconds = 601 }},
		{"bad style", func(r *session.Request) { r.Style = "noir" }},
		{"bad quality", func(r *session.Request) { r.Quality = "4k" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := session.NewRequest("Explain how tides work")
			tc.mutate(&req)
			if err := req.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestScriptValidate(t *testing.T) {
	script := session.Script{
		Title:           "Tides",
		DurationSeconds: 60,
		Scenes: []session.Scene{
			{Number: 1, DurationSeconds: 30},
			{Number: 2, DurationSeconds: 30},
		},
	}
	if err := script.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	script.Scenes[1].Number = 3
	if err := script.Validate(); err == nil {
		t.Fatal("expected error for non-sequential scenes")
	}
	script.Scenes[1].Number = 2

	script.DurationSeconds = 90
	if err := script.Validate(); err == nil {
		t.Fatal("expected error for total/sum mismatch")
	}

	script.DurationSeconds = 60
	script.Scenes[0].DurationSeconds = 150
	if err := script.Validate(); err == nil {
		t.Fatal("expected error for overlong scene")
	}
}

func TestNewStateDefaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	state := session.NewState("", session.NewRequest("Explain how tides work"), now)
	if state.UserID != session.AnonymousUser {
		t.Fatalf("unexpected user: %q", state.UserID)
	}
	if state.CurrentStage != session.StageInitializing {
		t.Fatalf("unexpected stage: %s", state.CurrentStage)
	}
	if state.Progress != 0 {
		t.Fatalf("unexpected progress: %f", state.Progress)
	}
	if !state.CreatedAt.Equal(now) || !state.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected timestamps: %v %v", state.CreatedAt, state.UpdatedAt)
	}
}

func TestAddErrorTracksRetries(t *testing.T) {
	state := session.NewState("alice", session.NewRequest("Explain how tides work"), time.Now())
	state.AddError("tts timeout", session.StageAudioGeneration)
	state.AddError("tts timeout again", session.StageAudioGeneration)
	state.AddError("unattributed", "")

	if len(state.ErrorLog) != 3 {
		t.Fatalf("expected 3 log entries, got %d", len(state.ErrorLog))
	}
	if state.ErrorMessage != "unattributed" {
		t.Fatalf("unexpected latest message: %q", state.ErrorMessage)
	}
	if got := state.RetryCount[string(session.StageAudioGeneration)]; got != 2 {
		t.Fatalf("expected retry count 2, got %d", got)
	}
	if !strings.HasPrefix(state.ErrorLog[0], "[") {
		t.Fatalf("log entry missing timestamp: %q", state.ErrorLog[0])
	}
}

func TestAddIntermediateFileDeduplicates(t *testing.T) {
	state := session.NewState("alice", session.NewRequest("Explain how tides work"), time.Now())
	state.AddIntermediateFile("/tmp/a.wav")
	state.AddIntermediateFile("/tmp/a.wav")
	state.AddIntermediateFile("/tmp/b.mp4")
	if len(state.IntermediateFiles) != 2 {
		t.Fatalf("expected 2 files, got %d", len(state.IntermediateFiles))
	}
}

func TestClampProgress(t *testing.T) {
	if got := session.ClampProgress(-0.5); got != 0 {
		t.Fatalf("clamp low: %f", got)
	}
	if got := session.ClampProgress(1.5); got != 1 {
		t.Fatalf("clamp high: %f", got)
	}
	if got := session.ClampProgress(0.42); got != 0.42 {
		t.Fatalf("clamp mid: %f", got)
	}
}
