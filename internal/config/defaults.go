package config

const (
	defaultConfigPath           = "~/.config/mediagrab/config.toml"
	defaultDownloadDir          = "~/.local/share/mediagrab/downloads"
	defaultLogDir               = "~/.local/share/mediagrab/logs"
	defaultStateDir             = "~/.local/share/mediagrab/state"
	defaultAPIBind              = "127.0.0.1:8080"
	defaultYtdlpBinary          = "yt-dlp"
	defaultFFmpegBinary         = "ffmpeg"
	defaultAudioQuality         = "192"
	defaultInfoTimeoutSeconds   = 60
	defaultPlaylistMaxEntries   = 50
	defaultEnumerator           = EnumeratorEngine
	defaultRetentionHours       = 6
	defaultIntervalHours        = 6
	defaultNotifyTimeoutSeconds = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 14
)

// Playlist enumerator identifiers.
const (
	EnumeratorEngine = "engine"
	EnumeratorNative = "native"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DownloadDir: defaultDownloadDir,
			LogDir:      defaultLogDir,
			StateDir:    defaultStateDir,
			APIBind:     defaultAPIBind,
		},
		Engine: Engine{
			YtdlpBinary:        defaultYtdlpBinary,
			FFmpegBinary:       defaultFFmpegBinary,
			AudioQuality:       defaultAudioQuality,
			NoCheckCertificate: true,
			InfoTimeoutSeconds: defaultInfoTimeoutSeconds,
		},
		Playlist: Playlist{
			MaxEntries: defaultPlaylistMaxEntries,
			Enumerator: defaultEnumerator,
		},
		Cleanup: Cleanup{
			RetentionHours: defaultRetentionHours,
			IntervalHours:  defaultIntervalHours,
			SweepOrphans:   true,
		},
		Journal: Journal{
			Enabled: true,
		},
		Metrics: Metrics{
			Enabled: true,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeoutSeconds,
			OnDone:                true,
			OnError:               true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
