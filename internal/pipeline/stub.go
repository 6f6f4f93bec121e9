package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"clipforge/internal/manager"
	"clipforge/internal/session"
	"clipforge/internal/textutil"
)

// StubAgents returns a deterministic agent set covering every working
// stage. The stubs synthesize plausible payloads from the session
// request without performing any external work, which keeps daemon
// bring-up and end-to-end testing independent of real generation
// services. Paths in produced payloads live under workDir.
func StubAgents(workDir string) []Agent {
	return []Agent{
		stubAgent{stage: session.StageResearching, run: stubResearch},
		stubAgent{stage: session.StageScripting, run: stubScript},
		stubAgent{stage: session.StageAssetSourcing, run: stubAssets},
		stubAgent{stage: session.StageAudioGeneration, run: makeStubAudio(workDir)},
		stubAgent{stage: session.StageVideoAssembly, run: makeStubAssembly(workDir)},
		stubAgent{stage: session.StageFinalizing, run: makeStubFinalize(workDir)},
	}
}

type stubFunc func(ctx context.Context, state *session.State, report ProgressFunc) (manager.Patch, error)

type stubAgent struct {
	stage session.Stage
	run   stubFunc
}

func (a stubAgent) Stage() session.Stage { return a.stage }

func (a stubAgent) Execute(ctx context.Context, state *session.State, report ProgressFunc) (manager.Patch, error) {
	if err := ctx.Err(); err != nil {
		return manager.Patch{}, err
	}
	report(0.5)
	return a.run(ctx, state, report)
}

func stubResearch(_ context.Context, state *session.State, _ ProgressFunc) (manager.Patch, error) {
	topic := strings.TrimSpace(state.Request.Prompt)
	data := &session.ResearchData{
		Facts: []string{
			fmt.Sprintf("Synthesized fact about %q", topic),
			"Stub research contains no external citations",
		},
		Sources:   []string{"stub://research"},
		KeyPoints: []string{topic},
		Context:   map[string]any{"stub": true},
	}
	return manager.Patch{ResearchData: data}, nil
}

func stubScript(_ context.Context, state *session.State, _ ProgressFunc) (manager.Patch, error) {
	total := float64(state.Request.DurationSeconds)
	sceneCount := int(total/30) + 1
	if total >= 30 && int(total)%30 == 0 {
		sceneCount = int(total) / 30
	}
	per := total / float64(sceneCount)
	scenes := make([]session.Scene, sceneCount)
	for i := range scenes {
		scenes[i] = session.Scene{
			Number:             i + 1,
			Description:        fmt.Sprintf("Scene %d covering %s", i+1, state.Request.Prompt),
			VisualRequirements: []string{"stock footage"},
			Dialogue:           fmt.Sprintf("Narration for scene %d.", i+1),
			DurationSeconds:    per,
		}
	}
	script := &session.Script{
		Title:           strings.TrimSpace(state.Request.Prompt),
		DurationSeconds: total,
		Scenes:          scenes,
		Metadata:        map[string]any{"style": string(state.Request.Style)},
	}
	if err := script.Validate(); err != nil {
		return manager.Patch{}, fmt.Errorf("stub script invalid: %w", err)
	}
	return manager.Patch{Script: script}, nil
}

func stubAssets(_ context.Context, state *session.State, _ ProgressFunc) (manager.Patch, error) {
	if state.Script == nil {
		return manager.Patch{}, fmt.Errorf("asset sourcing requires a script")
	}
	assets := &session.AssetCollection{Metadata: map[string]any{"stub": true}}
	for _, scene := range state.Script.Scenes {
		assets.Images = append(assets.Images, session.AssetItem{
			ID:          fmt.Sprintf("img-%s-%d", shortID(state.SessionID), scene.Number),
			Type:        "image",
			SourceURL:   "stub://assets/image",
			UsageRights: "royalty_free",
		})
	}
	return manager.Patch{Assets: assets}, nil
}

func makeStubAudio(workDir string) stubFunc {
	return func(_ context.Context, state *session.State, _ ProgressFunc) (manager.Patch, error) {
		if state.Script == nil {
			return manager.Patch{}, fmt.Errorf("audio generation requires a script")
		}
		var files []string
		for _, scene := range state.Script.Scenes {
			files = append(files, filepath.Join(workDir, fmt.Sprintf("%s-scene%d.wav", shortID(state.SessionID), scene.Number)))
		}
		audio := &session.AudioAssets{
			VoiceFiles: files,
			TimingData: map[string]any{"total_duration": state.Script.DurationSeconds},
		}
		return manager.Patch{AudioAssets: audio, IntermediateFiles: files}, nil
	}
}

func makeStubAssembly(workDir string) stubFunc {
	return func(_ context.Context, state *session.State, _ ProgressFunc) (manager.Patch, error) {
		if state.Assets == nil || state.AudioAssets == nil {
			return manager.Patch{}, fmt.Errorf("assembly requires assets and audio")
		}
		draft := filepath.Join(workDir, shortID(state.SessionID)+"-draft.mp4")
		return manager.Patch{
			Metadata:          map[string]any{"draft_video": draft},
			IntermediateFiles: []string{draft},
		}, nil
	}
}

func makeStubFinalize(workDir string) stubFunc {
	return func(_ context.Context, state *session.State, _ ProgressFunc) (manager.Patch, error) {
		name := fmt.Sprintf("%s-%s.mp4", textutil.Slug(state.Request.Prompt, 5), shortID(state.SessionID))
		final := &session.FinalVideo{
			VideoFile: filepath.Join(workDir, name),
			Metadata: map[string]any{
				"quality": string(state.Request.Quality),
			},
			QualityMetrics: map[string]any{"stub": true},
		}
		return manager.Patch{FinalVideo: final}, nil
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
