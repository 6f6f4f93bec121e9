package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"clipforge/internal/config"
)

func TestLoadDefaultsAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "clipforge", "data")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Fatalf("unexpected store driver: %q", cfg.Store.Driver)
	}
	if !cfg.Store.FallbackEnabled {
		t.Fatal("expected fallback enabled by default")
	}
	if cfg.Retention.MaxSessionAgeHours != 24 {
		t.Fatalf("unexpected max session age: %d", cfg.Retention.MaxSessionAgeHours)
	}
	if cfg.Retention.CompletedGraceHours != 1 {
		t.Fatalf("unexpected completed grace: %d", cfg.Retention.CompletedGraceHours)
	}
	if cfg.Pipeline.Workers != 2 {
		t.Fatalf("unexpected worker count: %d", cfg.Pipeline.Workers)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
	if got := cfg.DatabasePath(); got != filepath.Join(wantData, "sessions.db") {
		t.Fatalf("unexpected database path: %q", got)
	}
}

func TestLoadParsesExplicitFile(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(t.TempDir(), "config.toml")
	contents := strings.Join([]string{
		"[store]",
		"driver = \"memory\"",
		"fallback_enabled = false",
		"",
		"[retention]",
		"max_session_age_hours = 48",
		"",
		"[logging]",
		"format = \"json\"",
		"level = \"debug\"",
	}, "\n")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != path {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Store.Driver != "memory" {
		t.Fatalf("unexpected driver: %q", cfg.Store.Driver)
	}
	if cfg.Store.FallbackEnabled {
		t.Fatal("expected fallback disabled")
	}
	if cfg.Retention.MaxSessionAgeHours != 48 {
		t.Fatalf("unexpected max session age: %d", cfg.Retention.MaxSessionAgeHours)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
	// Untouched sections keep defaults.
	if cfg.Retention.CompletedGraceHours != 1 {
		t.Fatalf("unexpected completed grace: %d", cfg.Retention.CompletedGraceHours)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[store]\ndriver = \"postgres\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for unknown driver")
	} else if !strings.Contains(err.Error(), "store.driver") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadRejectsEnabledMigrationWithoutDirs(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[migration]\nenabled = true\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for migration without dirs")
	}
}

func TestSampleConfigParsesAndValidates(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}

	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config does not validate: %v", err)
	}
}
