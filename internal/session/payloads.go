package session

import "fmt"

// ResearchData holds the output of the research stage.
type ResearchData struct {
	Facts     []string       `json:"facts"`
	Sources   []string       `json:"sources"`
	KeyPoints []string       `json:"key_points"`
	Context   map[string]any `json:"context,omitempty"`
}

// Scene is a single scene within a script.
type Scene struct {
	Number             int      `json:"scene_number"`
	Description        string   `json:"description"`
	VisualRequirements []string `json:"visual_requirements"`
	Dialogue           string   `json:"dialogue"`
	DurationSeconds    float64  `json:"duration"`
	AssetIDs           []string `json:"assets,omitempty"`
}

// Script is the complete generated video script.
type Script struct {
	Title           string         `json:"title"`
	DurationSeconds float64        `json:"total_duration"`
	Scenes          []Scene        `json:"scenes"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Validate checks scene numbering and duration consistency.
func (s Script) Validate() error {
	if len(s.Scenes) == 0 {
		return fmt.Errorf("script requires at least one scene")
	}
	var sum float64
	for i, scene := range s.Scenes {
		if scene.Number != i+1 {
			return fmt.Errorf("scene numbers must be sequential starting at 1, got %d at position %d", scene.Number, i)
		}
		if scene.DurationSeconds <= 0 || scene.DurationSeconds > 120 {
			return fmt.Errorf("scene %d duration %.1fs outside range (0,120]", scene.Number, scene.DurationSeconds)
		}
		sum += scene.DurationSeconds
	}
	// 1s tolerance between declared total and per-scene sum.
	if diff := s.DurationSeconds - sum; diff > 1 || diff < -1 {
		return fmt.Errorf("total duration %.1fs does not match scene sum %.1fs", s.DurationSeconds, sum)
	}
	return nil
}

// AssetItem is a sourced media asset.
type AssetItem struct {
	ID          string         `json:"asset_id"`
	Type        string         `json:"asset_type"`
	SourceURL   string         `json:"source_url"`
	LocalPath   string         `json:"local_path,omitempty"`
	UsageRights string         `json:"usage_rights"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// AssetCollection holds the visual assets sourced for a session.
type AssetCollection struct {
	Images   []AssetItem    `json:"images"`
	Videos   []AssetItem    `json:"videos"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AudioAssets holds generated narration and timing data.
type AudioAssets struct {
	VoiceFiles []string         `json:"voice_files"`
	TimingData map[string]any   `json:"timing_data,omitempty"`
	SyncMarks  []map[string]any `json:"synchronization_markers,omitempty"`
}

// FinalVideo describes the assembled output.
type FinalVideo struct {
	VideoFile      string         `json:"video_file"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	QualityMetrics map[string]any `json:"quality_metrics,omitempty"`
}
