package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/manager"
	"clipforge/internal/pipeline"
)

// Daemon coordinates the background services and enforces
// single-instance execution via a lock file in the log directory.
type Daemon struct {
	cfg         *config.Config
	logger      *slog.Logger
	mgr         *manager.Manager
	coordinator *pipeline.Coordinator

	lockPath string
	lock     *flock.Flock

	cleanupInterval time.Duration

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status reports daemon runtime information.
type Status struct {
	Running        bool
	ActiveSessions int
	FallbackActive bool
	LockFilePath   string
	DatabasePath   string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, mgr *manager.Manager, coordinator *pipeline.Coordinator, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || mgr == nil || logger == nil {
		return nil, errors.New("daemon requires config, manager, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "clipforged.lock")
	interval := time.Duration(cfg.Retention.CleanupInterval) * time.Second
	return &Daemon{
		cfg:             cfg,
		logger:          logger.With(logging.String(logging.FieldComponent, "daemon")),
		mgr:             mgr,
		coordinator:     coordinator,
		lockPath:        lockPath,
		lock:            flock.New(lockPath),
		cleanupInterval: interval,
	}, nil
}

// Start acquires the daemon lock and launches the pipeline and the
// cleanup loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another clipforge daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if d.coordinator != nil {
		if err := d.coordinator.Start(runCtx); err != nil {
			_ = d.lock.Unlock()
			cancel()
			d.cancel = nil
			return fmt.Errorf("start pipeline: %w", err)
		}
	}

	if d.cleanupInterval > 0 {
		d.wg.Add(1)
		go d.runCleanupLoop(runCtx)
	}

	d.running.Store(true)
	d.logger.Info("clipforge daemon started",
		logging.String("lock", d.lockPath),
		logging.Duration("cleanup_interval", d.cleanupInterval),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.coordinator != nil {
		d.coordinator.Stop()
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("clipforge daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.mgr.Close()
}

// Status summarizes the daemon's runtime state.
func (d *Daemon) Status() Status {
	return Status{
		Running:        d.running.Load(),
		ActiveSessions: d.mgr.ActiveSessionCount(),
		FallbackActive: d.mgr.FallbackActive(),
		LockFilePath:   d.lockPath,
		DatabasePath:   d.cfg.DatabasePath(),
	}
}

func (d *Daemon) runCleanupLoop(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runCleanupOnce(ctx)
		}
	}
}

func (d *Daemon) runCleanupOnce(ctx context.Context) {
	report, err := d.mgr.CleanupExpired(ctx)
	if err != nil {
		d.logger.Error("session cleanup failed", logging.Error(err))
		return
	}
	if report.Removed > 0 || report.Failed > 0 {
		d.logger.Info("session cleanup finished",
			logging.Int("examined", report.Examined),
			logging.Int("removed", report.Removed),
			logging.Int("failed", report.Failed),
			logging.String("duration", report.Duration),
		)
	}
}
