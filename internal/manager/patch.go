package manager

import "clipforge/internal/session"

// Patch describes a partial session update. Nil fields are untouched; the
// manager converts the set fields into a single event delta so concurrent
// updates to different fields never clobber each other.
type Patch struct {
	// Stage advances the pipeline stage. Progress and the completion
	// estimate are recomputed when it changes.
	Stage *session.Stage

	// StageProgress is the completion fraction within the current stage,
	// clamped to [0, 1].
	StageProgress *float64

	// Error appends a timestamped entry to the error log and records the
	// message as the latest error. ErrorStage attributes the failure to a
	// stage for retry accounting; it may be empty.
	Error      *string
	ErrorStage session.Stage

	// Stage result payloads. Each replaces the stored value wholesale.
	ResearchData *session.ResearchData
	Script       *session.Script
	Assets       *session.AssetCollection
	AudioAssets  *session.AudioAssets
	FinalVideo   *session.FinalVideo

	// Metadata entries are merged key by key into existing metadata.
	Metadata map[string]any

	// IntermediateFiles are appended to the session's cleanup list,
	// ignoring duplicates.
	IntermediateFiles []string

	// Author identifies the writer in the event log. Defaults to "system".
	Author string
}

// IsZero reports whether the patch carries no changes.
func (p Patch) IsZero() bool {
	return p.Stage == nil &&
		p.StageProgress == nil &&
		p.Error == nil &&
		p.ResearchData == nil &&
		p.Script == nil &&
		p.Assets == nil &&
		p.AudioAssets == nil &&
		p.FinalVideo == nil &&
		len(p.Metadata) == 0 &&
		len(p.IntermediateFiles) == 0
}
