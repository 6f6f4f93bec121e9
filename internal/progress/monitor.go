// Package progress estimates overall completion and remaining time for
// video generation sessions from per-stage weights and typical durations.
package progress

import (
	"time"

	"clipforge/internal/config"
	"clipforge/internal/session"
)

// Built-in stage weights. They sum to 1.0 across the working stages.
var defaultWeights = map[session.Stage]float64{
	session.StageInitializing:    0.05,
	session.StageResearching:     0.15,
	session.StageScripting:       0.20,
	session.StageAssetSourcing:   0.25,
	session.StageAudioGeneration: 0.15,
	session.StageVideoAssembly:   0.15,
	session.StageFinalizing:      0.05,
}

// Typical wall-clock duration per stage, used for ETA before real progress
// data accumulates.
var defaultDurations = map[session.Stage]time.Duration{
	session.StageInitializing:    5 * time.Second,
	session.StageResearching:     30 * time.Second,
	session.StageScripting:       45 * time.Second,
	session.StageAssetSourcing:   60 * time.Second,
	session.StageAudioGeneration: 40 * time.Second,
	session.StageVideoAssembly:   90 * time.Second,
	session.StageFinalizing:      10 * time.Second,
}

// Monitor converts stage position and in-stage progress into an overall
// completion fraction and an estimated completion time.
type Monitor struct {
	weights   map[session.Stage]float64
	durations map[session.Stage]time.Duration
	now       func() time.Time
}

// NewMonitor builds a monitor with built-in weights and durations, applying
// any per-stage overrides from configuration.
func NewMonitor(cfg config.Progress) *Monitor {
	weights := make(map[session.Stage]float64, len(defaultWeights))
	for stage, weight := range defaultWeights {
		weights[stage] = weight
	}
	durations := make(map[session.Stage]time.Duration, len(defaultDurations))
	for stage, duration := range defaultDurations {
		durations[stage] = duration
	}
	for name, weight := range cfg.StageWeights {
		if stage, ok := session.ParseStage(name); ok {
			weights[stage] = weight
		}
	}
	for name, seconds := range cfg.StageDurationsSeconds {
		if stage, ok := session.ParseStage(name); ok {
			durations[stage] = time.Duration(seconds) * time.Second
		}
	}
	return &Monitor{weights: weights, durations: durations, now: time.Now}
}

// Overall computes the session-wide completion fraction for a stage with the
// given in-stage progress. Weights of all earlier stages count as done.
// Completed sessions report 1.0; failed sessions keep the last known value.
func (m *Monitor) Overall(stage session.Stage, stageProgress float64, lastKnown float64) float64 {
	switch stage {
	case session.StageCompleted:
		return 1.0
	case session.StageFailed:
		return session.ClampProgress(lastKnown)
	}

	stageProgress = session.ClampProgress(stageProgress)
	var done float64
	for _, candidate := range session.AllStages() {
		if candidate == stage {
			break
		}
		done += m.weights[candidate]
	}
	return session.ClampProgress(done + stageProgress*m.weights[stage])
}

// ExpectedTotal returns the typical end-to-end duration across all stages.
func (m *Monitor) ExpectedTotal() time.Duration {
	var total time.Duration
	for _, duration := range m.durations {
		total += duration
	}
	return total
}

// ExpectedStageDuration returns the typical duration of one stage.
func (m *Monitor) ExpectedStageDuration(stage session.Stage) time.Duration {
	return m.durations[stage]
}

// Remaining sums the time left stage by stage: the current stage keeps
// its configured duration scaled by the unfinished fraction, stages after
// it contribute their full configured duration. A slow stage therefore
// never inflates the estimate for stages that have not started.
func (m *Monitor) Remaining(stage session.Stage, stageProgress float64) time.Duration {
	if stage.Terminal() {
		return 0
	}
	stageProgress = session.ClampProgress(stageProgress)
	remaining := time.Duration(float64(m.durations[stage]) * (1 - stageProgress))
	after := false
	for _, candidate := range session.ActiveStages() {
		if candidate == stage {
			after = true
			continue
		}
		if after {
			remaining += m.durations[candidate]
		}
	}
	return remaining
}

// EstimateCompletion projects when the session will finish from the
// per-stage remaining sum. Terminal sessions have no estimate.
func (m *Monitor) EstimateCompletion(stage session.Stage, stageProgress float64) *time.Time {
	if stage.Terminal() {
		return nil
	}
	estimate := m.now().Add(m.Remaining(stage, stageProgress))
	return &estimate
}

// WithClock overrides the time source. Intended for tests.
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.now = now
	return m
}
