package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
	TempDir   string `toml:"temp_dir"`
	OutputDir string `toml:"output_dir"`
	CacheDir  string `toml:"cache_dir"`
}

// Store contains configuration for the session event log backend.
type Store struct {
	// Driver selects the primary backend: "sqlite" or "memory".
	Driver string `toml:"driver"`
	// FallbackEnabled routes failed primary operations to a volatile
	// in-memory backend instead of surfacing the error.
	FallbackEnabled bool `toml:"fallback_enabled"`
}

// Retention contains session cleanup policy.
type Retention struct {
	CleanupInterval     int `toml:"cleanup_interval"`
	MaxSessionAgeHours  int `toml:"max_session_age_hours"`
	CompletedGraceHours int `toml:"completed_grace_hours"`
	MaxReportErrors     int `toml:"max_report_errors"`
}

// Progress contains overrides for stage weighting and duration estimates.
// Keys are stage names; absent stages keep the built-in values.
type Progress struct {
	StageWeights          map[string]float64 `toml:"stage_weights"`
	StageDurationsSeconds map[string]int     `toml:"stage_durations_seconds"`
}

// Pipeline contains worker pool and agent configuration.
type Pipeline struct {
	Workers      int  `toml:"workers"`
	StubAgents   bool `toml:"stub_agents"`
	PollInterval int  `toml:"poll_interval"`
}

// Performance contains thresholds for the health aggregator.
type Performance struct {
	MaxAvgCompletionSeconds float64 `toml:"max_avg_completion_seconds"`
	MaxErrorRate            float64 `toml:"max_error_rate"`
	MinSuccessRate          float64 `toml:"min_success_rate"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Migration contains legacy flat-file session import settings.
type Migration struct {
	Enabled    bool     `toml:"enabled"`
	LegacyDirs []string `toml:"legacy_dirs"`
}

// Config encapsulates all configuration values for clipforge.
//
// Configuration sections by subsystem:
//   - Paths: data, log, temp, output, and cache directories
//   - Store: primary backend driver and fallback policy
//   - Retention: cleanup cadence and session age limits
//   - Progress: stage weight and duration overrides for ETA estimation
//   - Pipeline: worker pool sizing and stub agent toggle
//   - Performance: thresholds for degraded and unhealthy reporting
//   - Logging: log format, level, and retention
//   - Migration: legacy flat-file session import
type Config struct {
	Paths       Paths       `toml:"paths"`
	Store       Store       `toml:"store"`
	Retention   Retention   `toml:"retention"`
	Progress    Progress    `toml:"progress"`
	Pipeline    Pipeline    `toml:"pipeline"`
	Performance Performance `toml:"performance"`
	Logging     Logging     `toml:"logging"`
	Migration   Migration   `toml:"migration"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/clipforge/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/clipforge/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("clipforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// OutputDir is created on a best-effort basis so the daemon can run when
// external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.TempDir, c.Paths.CacheDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		// Best-effort to avoid failing config load when storage is offline.
		_ = os.MkdirAll(c.Paths.OutputDir, 0o755)
	}
	return nil
}

// DatabasePath returns the location of the session store database file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "sessions.db")
}

// AllowedCleanupRoots returns the directories under which session file
// cleanup may delete paths. Anything outside these roots is refused.
func (c *Config) AllowedCleanupRoots() []string {
	roots := make([]string, 0, 4)
	for _, dir := range []string{c.Paths.TempDir, c.Paths.OutputDir, c.Paths.CacheDir} {
		if strings.TrimSpace(dir) != "" {
			roots = append(roots, dir)
		}
	}
	roots = append(roots, os.TempDir())
	return roots
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
