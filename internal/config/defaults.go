package config

const (
	defaultDataDir   = "~/.local/share/clipforge/data"
	defaultLogDir    = "~/.local/share/clipforge/logs"
	defaultTempDir   = "~/.local/share/clipforge/tmp"
	defaultOutputDir = "~/videos/clipforge"
	defaultCacheDir  = "~/.cache/clipforge"

	defaultStoreDriver = "sqlite"

	defaultCleanupInterval     = 3600
	defaultMaxSessionAgeHours  = 24
	defaultCompletedGraceHours = 1
	defaultMaxReportErrors     = 50

	defaultPipelineWorkers      = 2
	defaultPipelinePollInterval = 5

	defaultMaxAvgCompletionSeconds = 300
	defaultMaxErrorRate            = 0.25
	defaultMinSuccessRate          = 0.5

	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 60
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			TempDir:   defaultTempDir,
			OutputDir: defaultOutputDir,
			CacheDir:  defaultCacheDir,
		},
		Store: Store{
			Driver:          defaultStoreDriver,
			FallbackEnabled: true,
		},
		Retention: Retention{
			CleanupInterval:     defaultCleanupInterval,
			MaxSessionAgeHours:  defaultMaxSessionAgeHours,
			CompletedGraceHours: defaultCompletedGraceHours,
			MaxReportErrors:     defaultMaxReportErrors,
		},
		Pipeline: Pipeline{
			Workers:      defaultPipelineWorkers,
			StubAgents:   true,
			PollInterval: defaultPipelinePollInterval,
		},
		Performance: Performance{
			MaxAvgCompletionSeconds: defaultMaxAvgCompletionSeconds,
			MaxErrorRate:            defaultMaxErrorRate,
			MinSuccessRate:          defaultMinSuccessRate,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
