package main

import (
	"context"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"clipforge/internal/config"
	"clipforge/internal/eventlog"
	"clipforge/internal/logging"
	"clipforge/internal/manager"
)

type commandContext struct {
	configFlag *string
	userFlag   *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, userFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		userFlag:   userFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) user() string {
	if c.userFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.userFlag)
}

// withManager opens the configured backend, builds a manager around it,
// and tears both down when fn returns. The CLI talks to the store
// directly; it shares the database with a running daemon through
// SQLite's WAL mode.
func (c *commandContext) withManager(cmd *cobra.Command, fn func(context.Context, *manager.Manager) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	var backend eventlog.Backend
	if cfg.Store.Driver == "memory" {
		backend = eventlog.NewMemory()
	} else {
		backend, err = eventlog.OpenSQLite(cfg.DatabasePath())
		if err != nil {
			return err
		}
	}
	defer backend.Close()

	logger, err := logging.New(logging.Options{
		Level:            "warn",
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
	if err != nil {
		return err
	}

	mgr, err := manager.New(cfg, backend, logger)
	if err != nil {
		return err
	}
	defer mgr.Close()

	return fn(cmd.Context(), mgr)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
