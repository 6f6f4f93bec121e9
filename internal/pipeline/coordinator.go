package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/manager"
	"clipforge/internal/progress"
	"clipforge/internal/session"
)

const (
	defaultPollInterval = 5 * time.Second
	// maxStageAttempts bounds retries per stage before the session fails.
	maxStageAttempts = 3
)

// Coordinator drives active sessions through the pipeline. Workers poll
// the manager for sessions whose current stage has a registered agent,
// execute the agent, and persist the result as a stage transition. All
// state lives in the session store, so a coordinator restart resumes
// exactly where the event log left off.
type Coordinator struct {
	mgr     *manager.Manager
	logger  *slog.Logger
	agents  map[session.Stage]Agent
	tracker *progress.Tracker

	workers int
	poll    time.Duration

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	inflight map[string]struct{}
	lastErr  error

	wg sync.WaitGroup
}

// NewCoordinator builds a coordinator from the pipeline configuration.
// Agents are registered per stage; a later registration for the same
// stage replaces the earlier one.
func NewCoordinator(cfg config.Pipeline, mgr *manager.Manager, logger *slog.Logger, agents ...Agent) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	poll := time.Duration(cfg.PollInterval) * time.Second
	if poll <= 0 {
		poll = defaultPollInterval
	}
	c := &Coordinator{
		mgr:      mgr,
		logger:   logger.With(logging.String(logging.FieldComponent, "pipeline")),
		agents:   make(map[session.Stage]Agent, len(agents)),
		tracker:  progress.NewTracker(mgr.Monitor()),
		workers:  workers,
		poll:     poll,
		inflight: make(map[string]struct{}),
	}
	for _, agent := range agents {
		c.agents[agent.Stage()] = agent
	}
	return c
}

// WithPollInterval overrides the idle poll interval. Intended for tests.
func (c *Coordinator) WithPollInterval(d time.Duration) *Coordinator {
	if d > 0 {
		c.poll = d
	}
	return c
}

// Start begins background processing.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New("pipeline already running")
	}
	if len(c.agents) == 0 {
		c.mu.Unlock()
		return errors.New("pipeline agents not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true
	c.wg.Add(c.workers)
	c.mu.Unlock()

	for i := 0; i < c.workers; i++ {
		go c.runWorker(runCtx, i)
	}
	return nil
}

// Stop terminates background processing and waits for workers to drain.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	c.running = false
	c.cancel = nil
	c.mu.Unlock()

	cancel()
	c.wg.Wait()
}

// SessionProgress returns the live in-flight view of a session being
// worked on, without touching the store. Sessions not currently claimed
// by this coordinator report no snapshot.
func (c *Coordinator) SessionProgress(sessionID string) (progress.Snapshot, bool) {
	return c.tracker.SessionProgress(sessionID)
}

// LastError returns the most recent worker error, if any.
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Coordinator) runWorker(ctx context.Context, id int) {
	defer c.wg.Done()
	logger := c.logger.With(logging.Int("worker", id))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		entry, ok := c.claimNext(ctx)
		if !ok {
			c.waitForWorkOrShutdown(ctx)
			continue
		}

		if err := c.step(ctx, logger, entry); err != nil {
			if errors.Is(err, context.Canceled) {
				c.release(entry.SessionID)
				return
			}
			c.setLastError(err)
			logger.Error("session step failed",
				logging.String(logging.FieldSessionID, entry.SessionID),
				logging.Error(err),
			)
		}
		c.release(entry.SessionID)
	}
}

// claimNext picks the oldest unclaimed session whose stage this
// coordinator can advance.
func (c *Coordinator) claimNext(ctx context.Context) (manager.Entry, bool) {
	entries, err := c.mgr.ListAllSessions(ctx, manager.ListFilter{})
	if err != nil {
		c.setLastError(err)
		return manager.Entry{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Oldest first so long-queued sessions do not starve.
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		stage, ok := session.ParseStage(entry.Stage)
		if !ok || stage.Terminal() {
			continue
		}
		if stage != session.StageInitializing {
			if _, registered := c.agents[stage]; !registered {
				continue
			}
		}
		if _, claimed := c.inflight[entry.SessionID]; claimed {
			continue
		}
		c.inflight[entry.SessionID] = struct{}{}
		return entry, true
	}
	return manager.Entry{}, false
}

func (c *Coordinator) release(sessionID string) {
	c.mu.Lock()
	delete(c.inflight, sessionID)
	c.mu.Unlock()
}

func (c *Coordinator) step(ctx context.Context, logger *slog.Logger, entry manager.Entry) error {
	state, err := c.mgr.GetSession(ctx, entry.UserID, entry.SessionID)
	if err != nil {
		if errors.Is(err, manager.ErrSessionNotFound) {
			return nil
		}
		return fmt.Errorf("load session: %w", err)
	}
	stage := state.CurrentStage
	if stage.Terminal() {
		return nil
	}

	// Intake transition carries no agent work.
	if stage == session.StageInitializing {
		next := stage.Next()
		_, err := c.mgr.UpdateSession(ctx, state.UserID, state.SessionID, manager.Patch{
			Stage:  &next,
			Author: "pipeline",
		})
		if err == nil {
			c.tracker.AdvanceToStage(state.SessionID, next)
		}
		return err
	}

	agent, ok := c.agents[stage]
	if !ok {
		return nil
	}

	if _, tracked := c.tracker.SessionProgress(state.SessionID); !tracked {
		c.tracker.StartMonitoring(state.SessionID, stage)
	}

	stageStart := time.Now()
	logger.Info("stage started",
		logging.String(logging.FieldSessionID, state.SessionID),
		logging.String(logging.FieldUserID, state.UserID),
		logging.String(logging.FieldStage, string(stage)),
	)

	report := c.progressReporter(ctx, state, stage)
	patch, execErr := agent.Execute(ctx, state, report)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			return execErr
		}
		return c.recordFailure(ctx, logger, state, stage, execErr)
	}

	next := stage.Next()
	patch.Stage = &next
	if patch.Author == "" {
		patch.Author = agentAuthor(stage)
	}
	applied, err := c.mgr.UpdateSession(ctx, state.UserID, state.SessionID, patch)
	if err != nil {
		return fmt.Errorf("persist stage result: %w", err)
	}
	if !applied {
		logger.Warn("stage result dropped, session already terminal",
			logging.String(logging.FieldSessionID, state.SessionID),
			logging.String(logging.FieldStage, string(stage)),
		)
		c.tracker.CompleteSession(state.SessionID)
		return nil
	}
	if next.Terminal() {
		c.tracker.CompleteSession(state.SessionID)
	} else {
		c.tracker.AdvanceToStage(state.SessionID, next)
	}
	logger.Info("stage completed",
		logging.String(logging.FieldSessionID, state.SessionID),
		logging.String(logging.FieldStage, string(stage)),
		logging.String("next_stage", string(next)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	return nil
}

// progressReporter persists in-stage progress as events authored by the
// stage agent. Reporting is best effort; persistence errors are logged
// and never interrupt agent execution.
func (c *Coordinator) progressReporter(ctx context.Context, state *session.State, stage session.Stage) ProgressFunc {
	return func(fraction float64) {
		fraction = session.ClampProgress(fraction)
		c.tracker.UpdateStageProgress(state.SessionID, fraction)
		_, err := c.mgr.UpdateSession(ctx, state.UserID, state.SessionID, manager.Patch{
			StageProgress: &fraction,
			Author:        agentAuthor(stage),
		})
		if err != nil {
			c.logger.Debug("progress report dropped",
				logging.String(logging.FieldSessionID, state.SessionID),
				logging.Error(err),
			)
		}
	}
}

// recordFailure logs the stage error and either leaves the session at
// the same stage for retry or fails it once attempts are exhausted.
func (c *Coordinator) recordFailure(ctx context.Context, logger *slog.Logger, state *session.State, stage session.Stage, execErr error) error {
	message := fmt.Sprintf("%s: %v", stage, execErr)
	patch := manager.Patch{
		Error:      &message,
		ErrorStage: stage,
		Author:     agentAuthor(stage),
	}
	attempts := state.RetryCount[string(stage)] + 1
	exhausted := attempts >= maxStageAttempts
	if exhausted {
		failed := session.StageFailed
		patch.Stage = &failed
	}

	if _, err := c.mgr.UpdateSession(ctx, state.UserID, state.SessionID, patch); err != nil {
		return fmt.Errorf("persist stage failure: %w", err)
	}
	if exhausted {
		c.tracker.CompleteSession(state.SessionID)
	}
	logger.Warn("stage failed",
		logging.String(logging.FieldSessionID, state.SessionID),
		logging.String(logging.FieldStage, string(stage)),
		logging.Int("attempt", attempts),
		logging.Bool("exhausted", exhausted),
		logging.Error(execErr),
	)
	return nil
}

func (c *Coordinator) waitForWorkOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(c.poll):
	}
}

func (c *Coordinator) setLastError(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

func agentAuthor(stage session.Stage) string {
	return "agent:" + string(stage)
}
