package manager

import (
	"context"
	"time"

	"clipforge/internal/session"
)

// SessionStatus is the lightweight polling view of one session,
// cheaper to serialize than the full state.
type SessionStatus struct {
	SessionID           string        `json:"session_id"`
	Status              string        `json:"status"`
	CurrentStage        session.Stage `json:"current_stage"`
	Progress            float64       `json:"progress"`
	EstimatedCompletion *time.Time    `json:"estimated_completion,omitempty"`
	ErrorMessage        string        `json:"error_message,omitempty"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// GetSessionStatus returns the status view for a session, honoring the
// same user scoping as GetSession.
func (m *Manager) GetSessionStatus(ctx context.Context, userID, sessionID string) (*SessionStatus, error) {
	state, err := m.GetSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return &SessionStatus{
		SessionID:           state.SessionID,
		Status:              state.CurrentStage.StatusKey(),
		CurrentStage:        state.CurrentStage,
		Progress:            state.Progress,
		EstimatedCompletion: state.EstimatedCompletion,
		ErrorMessage:        state.ErrorMessage,
		UpdatedAt:           state.UpdatedAt,
	}, nil
}
