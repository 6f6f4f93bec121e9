package session

import (
	"fmt"
	"time"
)

// AnonymousUser is the owner bucket for sessions created without a user id.
const AnonymousUser = "anonymous"

// State is the materialized snapshot of one video generation session.
// All mutation flows through the event log; State itself carries only
// small behaviors with no I/O.
type State struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Request Request `json:"request"`

	CurrentStage        Stage      `json:"current_stage"`
	Progress            float64    `json:"progress"`
	EstimatedCompletion *time.Time `json:"estimated_completion,omitempty"`

	ResearchData *ResearchData    `json:"research_data,omitempty"`
	Script       *Script          `json:"script,omitempty"`
	Assets       *AssetCollection `json:"assets,omitempty"`
	AudioAssets  *AudioAssets     `json:"audio_assets,omitempty"`
	FinalVideo   *FinalVideo      `json:"final_video,omitempty"`

	ErrorMessage string         `json:"error_message,omitempty"`
	ErrorLog     []string       `json:"error_log,omitempty"`
	RetryCount   map[string]int `json:"retry_count,omitempty"`

	IntermediateFiles []string       `json:"intermediate_files,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`

	// Revision counts applied events. Maintained by the backend for
	// observability; not used for conflict rejection.
	Revision int64 `json:"revision"`
}

// NewState builds the initial snapshot for a freshly created session.
// The session id is stamped by the manager once the backend assigns it.
func NewState(userID string, req Request, now time.Time) *State {
	if userID == "" {
		userID = AnonymousUser
	}
	return &State{
		UserID:       userID,
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
		Request:      req,
		CurrentStage: StageInitializing,
		Progress:     0,
	}
}

// AddError appends a timestamped entry to the error log, records the latest
// message, and bumps the retry count when a stage is attributed.
func (s *State) AddError(message string, stage Stage) {
	now := time.Now().UTC()
	s.ErrorLog = append(s.ErrorLog, fmt.Sprintf("[%s] %s", now.Format(time.RFC3339Nano), message))
	s.ErrorMessage = message
	s.UpdatedAt = now
	if stage != "" {
		if s.RetryCount == nil {
			s.RetryCount = make(map[string]int)
		}
		s.RetryCount[string(stage)]++
	}
}

// AddIntermediateFile records a produced file path for later cleanup.
// Duplicate paths are ignored.
func (s *State) AddIntermediateFile(path string) {
	for _, existing := range s.IntermediateFiles {
		if existing == path {
			return
		}
	}
	s.IntermediateFiles = append(s.IntermediateFiles, path)
	s.UpdatedAt = time.Now().UTC()
}

// IsCompleted reports whether generation finished successfully.
func (s *State) IsCompleted() bool {
	return s.CurrentStage == StageCompleted
}

// IsFailed reports whether generation ended in failure.
func (s *State) IsFailed() bool {
	return s.CurrentStage == StageFailed
}

// ClampProgress constrains a progress value to [0, 1].
func ClampProgress(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
