package testsupport

import (
	"path/filepath"
	"testing"

	"clipforge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.TempDir = filepath.Join(base, "tmp")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	return builder.cfg
}

// WithMemoryDriver switches the test config to the volatile store driver.
func WithMemoryDriver() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Store.Driver = "memory"
	}
}

// WithoutFallback disables the in-memory fallback store.
func WithoutFallback() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Store.FallbackEnabled = false
	}
}

// WithRetention overrides session age and grace windows, in hours.
func WithRetention(maxAgeHours, graceHours int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Retention.MaxSessionAgeHours = maxAgeHours
		b.cfg.Retention.CompletedGraceHours = graceHours
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
