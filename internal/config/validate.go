package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateRetention(); err != nil {
		return err
	}
	if err := c.validateProgress(); err != nil {
		return err
	}
	if err := c.validatePerformance(); err != nil {
		return err
	}
	if err := c.validateMigration(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case "sqlite", "memory":
		return nil
	default:
		return fmt.Errorf("store.driver must be \"sqlite\" or \"memory\", got %q", c.Store.Driver)
	}
}

func (c *Config) validateRetention() error {
	return ensurePositiveMap(map[string]int{
		"retention.cleanup_interval":      c.Retention.CleanupInterval,
		"retention.max_session_age_hours": c.Retention.MaxSessionAgeHours,
		"retention.completed_grace_hours": c.Retention.CompletedGraceHours,
		"retention.max_report_errors":     c.Retention.MaxReportErrors,
	})
}

func (c *Config) validateProgress() error {
	for stage, weight := range c.Progress.StageWeights {
		if weight < 0 || weight > 1 {
			return fmt.Errorf("progress.stage_weights[%s] must be between 0 and 1", stage)
		}
	}
	for stage, seconds := range c.Progress.StageDurationsSeconds {
		if seconds <= 0 {
			return fmt.Errorf("progress.stage_durations_seconds[%s] must be positive", stage)
		}
	}
	return nil
}

func (c *Config) validatePerformance() error {
	if c.Performance.MaxAvgCompletionSeconds <= 0 {
		return errors.New("performance.max_avg_completion_seconds must be positive")
	}
	if c.Performance.MaxErrorRate < 0 || c.Performance.MaxErrorRate > 1 {
		return errors.New("performance.max_error_rate must be between 0 and 1")
	}
	if c.Performance.MinSuccessRate < 0 || c.Performance.MinSuccessRate > 1 {
		return errors.New("performance.min_success_rate must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateMigration() error {
	if c.Migration.Enabled && len(c.Migration.LegacyDirs) == 0 {
		return errors.New("migration.legacy_dirs must include at least one directory when migration.enabled is true")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
