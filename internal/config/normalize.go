package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeEngine(); err != nil {
		return err
	}
	c.normalizePlaylist()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("MEDIAGRAB_DOWNLOAD_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.DownloadDir = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("MEDIAGRAB_API_BIND"); ok && strings.TrimSpace(value) != "" {
		c.Paths.APIBind = strings.TrimSpace(value)
	}
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("MEDIAGRAB_API_TOKEN"); ok {
			c.Paths.APIToken = value
		}
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)

	var err error
	if strings.TrimSpace(c.Paths.DownloadDir) == "" {
		c.Paths.DownloadDir = defaultDownloadDir
	}
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StaticDir) != "" {
		if c.Paths.StaticDir, err = expandPath(c.Paths.StaticDir); err != nil {
			return fmt.Errorf("paths.static_dir: %w", err)
		}
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeEngine() error {
	if value, ok := os.LookupEnv("YTDLP_PATH"); ok && strings.TrimSpace(value) != "" {
		c.Engine.YtdlpBinary = value
	}
	if value, ok := os.LookupEnv("FFMPEG_PATH"); ok && strings.TrimSpace(value) != "" {
		c.Engine.FFmpegBinary = value
	}
	c.Engine.YtdlpBinary = strings.TrimSpace(c.Engine.YtdlpBinary)
	if c.Engine.YtdlpBinary == "" {
		c.Engine.YtdlpBinary = defaultYtdlpBinary
	}
	c.Engine.FFmpegBinary = strings.TrimSpace(c.Engine.FFmpegBinary)
	if c.Engine.FFmpegBinary == "" {
		c.Engine.FFmpegBinary = defaultFFmpegBinary
	}
	// Bare command names stay as-is for PATH lookup; anything with a separator is a path.
	if strings.ContainsRune(c.Engine.FFmpegBinary, os.PathSeparator) || strings.HasPrefix(c.Engine.FFmpegBinary, "~") {
		expanded, err := expandPath(c.Engine.FFmpegBinary)
		if err != nil {
			return fmt.Errorf("engine.ffmpeg_binary: %w", err)
		}
		c.Engine.FFmpegBinary = expanded
	}
	if strings.ContainsRune(c.Engine.YtdlpBinary, os.PathSeparator) || strings.HasPrefix(c.Engine.YtdlpBinary, "~") {
		expanded, err := expandPath(c.Engine.YtdlpBinary)
		if err != nil {
			return fmt.Errorf("engine.ytdlp_binary: %w", err)
		}
		c.Engine.YtdlpBinary = expanded
	}
	c.Engine.JSRuntime = strings.ToLower(strings.TrimSpace(c.Engine.JSRuntime))
	c.Engine.AudioQuality = strings.TrimSpace(c.Engine.AudioQuality)
	if c.Engine.AudioQuality == "" {
		c.Engine.AudioQuality = defaultAudioQuality
	}
	if c.Engine.InfoTimeoutSeconds <= 0 {
		c.Engine.InfoTimeoutSeconds = defaultInfoTimeoutSeconds
	}
	return nil
}

func (c *Config) normalizePlaylist() {
	if c.Playlist.MaxEntries <= 0 {
		c.Playlist.MaxEntries = defaultPlaylistMaxEntries
	}
	c.Playlist.Enumerator = strings.ToLower(strings.TrimSpace(c.Playlist.Enumerator))
	if c.Playlist.Enumerator == "" {
		c.Playlist.Enumerator = defaultEnumerator
	}
}

func (c *Config) normalizeNotifications() {
	if value, ok := os.LookupEnv("MEDIAGRAB_NTFY_TOPIC"); ok && strings.TrimSpace(value) != "" {
		c.Notifications.NtfyTopic = value
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNotifyTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
