// Package daemonrun hosts the daemon's foreground run loop so both the
// clipforged binary and the CLI's daemon run command share one
// implementation.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"clipforge/internal/config"
	"clipforge/internal/daemon"
	"clipforge/internal/eventlog"
	"clipforge/internal/logging"
	"clipforge/internal/manager"
	"clipforge/internal/pipeline"
)

// Options adjusts one daemon run without touching the stored config.
type Options struct {
	// LogLevel overrides the configured level when non-empty.
	LogLevel string
}

// Run starts the daemon in the foreground and blocks until ctx is
// cancelled. It owns the whole lifecycle: logging, pid file, backend,
// manager, startup migration, pipeline, and the daemon itself.
func Run(ctx context.Context, cfg *config.Config, opts Options) error {
	if strings.TrimSpace(opts.LogLevel) != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "clipforge-*.log"},
	)

	pidPath := filepath.Join(cfg.Paths.LogDir, "clipforged.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	backend, err := OpenBackend(cfg)
	if err != nil {
		logger.Error("open session backend", logging.Error(err))
		return err
	}
	defer backend.Close()

	mgr, err := manager.New(cfg, backend, logger)
	if err != nil {
		return fmt.Errorf("create session manager: %w", err)
	}

	if cfg.Migration.Enabled {
		report, err := mgr.MigrateLegacy(ctx, cfg.Migration.LegacyDirs)
		if err != nil {
			logger.Warn("legacy migration failed",
				logging.Error(err),
				logging.String("hint", "check migration.legacy_dirs paths"),
			)
		} else if report.Scanned > 0 {
			logger.Info("legacy migration finished",
				logging.Int("scanned", report.Scanned),
				logging.Int("migrated", report.Migrated),
				logging.Int("failed", report.Failed),
			)
		}
	}

	coordinator := buildCoordinator(cfg, mgr, logger)
	d, err := daemon.New(cfg, mgr, coordinator, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("clipforged shutting down")
	return nil
}

func buildCoordinator(cfg *config.Config, mgr *manager.Manager, logger *slog.Logger) *pipeline.Coordinator {
	if !cfg.Pipeline.StubAgents {
		// No real generation agents ship yet, so the daemon runs in
		// store-only mode when stubs are disabled.
		logger.Warn("stub agents disabled, sessions will not advance automatically")
		return nil
	}
	agents := pipeline.StubAgents(cfg.Paths.TempDir)
	return pipeline.NewCoordinator(cfg.Pipeline, mgr, logger, agents...)
}

// OpenBackend picks the event log implementation the config names.
func OpenBackend(cfg *config.Config) (eventlog.Backend, error) {
	if cfg.Store.Driver == "memory" {
		return eventlog.NewMemory(), nil
	}
	return eventlog.OpenSQLite(cfg.DatabasePath())
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
