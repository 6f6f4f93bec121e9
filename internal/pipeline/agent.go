package pipeline

import (
	"context"

	"clipforge/internal/manager"
	"clipforge/internal/session"
)

// ProgressFunc reports completion within the current stage. Values are
// clamped to [0, 1] before persisting.
type ProgressFunc func(fraction float64)

// Agent performs the work of one pipeline stage. Execute receives the
// session snapshot and returns a patch with the stage's results; the
// coordinator fills in the stage transition and applies it. Agents must
// honor context cancellation so daemon shutdown stays prompt.
type Agent interface {
	Stage() session.Stage
	Execute(ctx context.Context, state *session.State, report ProgressFunc) (manager.Patch, error)
}
