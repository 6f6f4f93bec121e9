package session

import "strings"

// Stage represents a phase of the video generation pipeline.
type Stage string

const (
	StageInitializing    Stage = "initializing"
	StageResearching     Stage = "researching"
	StageScripting       Stage = "scripting"
	StageAssetSourcing   Stage = "asset_sourcing"
	StageAudioGeneration Stage = "audio_generation"
	StageVideoAssembly   Stage = "video_assembly"
	StageFinalizing      Stage = "finalizing"
	StageCompleted       Stage = "completed"
	StageFailed          Stage = "failed"
)

// Coarse status buckets used by the registry and listing filters.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

var allStages = []Stage{
	StageInitializing,
	StageResearching,
	StageScripting,
	StageAssetSourcing,
	StageAudioGeneration,
	StageVideoAssembly,
	StageFinalizing,
	StageCompleted,
	StageFailed,
}

var stageIndex = func() map[Stage]int {
	idx := make(map[Stage]int, len(allStages))
	for i, stage := range allStages {
		idx[stage] = i
	}
	return idx
}()

// AllStages returns the ordered list of known stages.
func AllStages() []Stage {
	cp := make([]Stage, len(allStages))
	copy(cp, allStages)
	return cp
}

// ActiveStages returns the pipeline stages in order, excluding terminal ones.
func ActiveStages() []Stage {
	active := make([]Stage, 0, len(allStages)-2)
	for _, stage := range allStages {
		if !stage.Terminal() {
			active = append(active, stage)
		}
	}
	return active
}

// ParseStage converts a string into a known Stage.
func ParseStage(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stageIndex[normalized]
	return normalized, ok
}

// Index returns the stage's position in pipeline order.
func (s Stage) Index() int {
	if idx, ok := stageIndex[s]; ok {
		return idx
	}
	return -1
}

// Next returns the stage that follows in pipeline order. Terminal and
// unknown stages return themselves.
func (s Stage) Next() Stage {
	idx := s.Index()
	if idx < 0 || s.Terminal() {
		return s
	}
	return allStages[idx+1]
}

// Terminal reports whether the stage ends the session lifecycle.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// StatusKey maps a stage onto the coarse status bucket used for
// listing, filtering, and API presentation.
func (s Stage) StatusKey() string {
	switch s {
	case StageCompleted:
		return StatusCompleted
	case StageFailed:
		return StatusFailed
	case StageInitializing:
		return StatusQueued
	default:
		return StatusProcessing
	}
}
