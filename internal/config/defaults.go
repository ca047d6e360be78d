package config

const (
	defaultConfigPath            = "~/.config/vidingest/config.toml"
	defaultManagedRoot           = "~/vidingest/managed"
	defaultLogDir                = "~/.local/share/vidingest/logs"
	defaultRegistryRelative      = ".vidingest/registry.db"
	defaultLogRetentionDays      = 30
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultMaxTargets            = 4
	defaultHashWorkers           = 4
	defaultSampleBytes           = 1 << 20
	defaultHashRetries           = 1
	defaultStagingWorkers        = 2
	defaultUnknownSubject        = "unsorted"
	defaultLockTimeoutSeconds    = 30
	defaultPartialMaxAgeHours    = 24
	defaultConnectTimeoutSeconds = 15
	defaultKnownHostsFile        = "~/.ssh/known_hosts"
	defaultRemoteCommand         = "vidingest"
	defaultSSHPort               = 22
)

var defaultExtensions = []string{
	".mp4", ".m4v", ".mov", ".avi", ".mkv", ".wmv", ".mpg", ".mpeg",
	".mts", ".m2ts", ".webm", ".flv", ".3gp", ".h264",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		Scan: Scan{
			Extensions:            append([]string(nil), defaultExtensions...),
			MaxTargets:            defaultMaxTargets,
			HashWorkers:           defaultHashWorkers,
			SampleBytes:           defaultSampleBytes,
			HashRetries:           defaultHashRetries,
			SkipZeroByte:          true,
			SkipHidden:            true,
			SkipCloudPlaceholders: true,
		},
		Staging: Staging{
			Workers:            defaultStagingWorkers,
			UnknownSubject:     defaultUnknownSubject,
			LockTimeoutSeconds: defaultLockTimeoutSeconds,
			PartialMaxAgeHours: defaultPartialMaxAgeHours,
		},
		Remote: Remote{
			ConnectTimeoutSeconds: defaultConnectTimeoutSeconds,
			KnownHostsFile:        defaultKnownHostsFile,
			Command:               defaultRemoteCommand,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
