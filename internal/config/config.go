package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DownloadDir string `toml:"download_dir"`
	LogDir      string `toml:"log_dir"`
	StateDir    string `toml:"state_dir"`
	StaticDir   string `toml:"static_dir"`
	APIBind     string `toml:"api_bind"`
	APIToken    string `toml:"api_token"`
}

// Engine contains settings for the external extraction engine.
type Engine struct {
	YtdlpBinary        string `toml:"ytdlp_binary"`
	FFmpegBinary       string `toml:"ffmpeg_binary"`
	JSRuntime          string `toml:"js_runtime"`
	AudioQuality       string `toml:"audio_quality"`
	NoCheckCertificate bool   `toml:"no_check_certificate"`
	InfoTimeoutSeconds int    `toml:"info_timeout_seconds"`
}

// Playlist contains settings for playlist preview and expansion.
type Playlist struct {
	MaxEntries  int    `toml:"max_entries"`
	ExpandLimit int    `toml:"expand_limit"`
	Archive     bool   `toml:"archive"`
	Enumerator  string `toml:"enumerator"`
}

// Workflow contains settings for job execution.
type Workflow struct {
	// MaxConcurrent bounds simultaneous engine invocations. Zero means unbounded.
	MaxConcurrent int `toml:"max_concurrent"`
}

// Cleanup contains settings for the retention sweeper.
type Cleanup struct {
	RetentionHours float64 `toml:"retention_hours"`
	IntervalHours  float64 `toml:"interval_hours"`
	SweepOrphans   bool    `toml:"sweep_orphans"`
}

// Journal contains settings for the SQLite job journal.
type Journal struct {
	Enabled bool `toml:"enabled"`
}

// Metrics contains settings for the Prometheus endpoint.
type Metrics struct {
	Enabled bool `toml:"enabled"`
}

// Notifications contains ntfy settings for job completion alerts.
type Notifications struct {
	// NtfyTopic is the full topic URL; empty disables notifications.
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	OnDone                bool   `toml:"on_done"`
	OnError               bool   `toml:"on_error"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for mediagrab.
//
// Configuration sections by subsystem:
//   - Paths: directories, API bind address and token
//   - Engine: yt-dlp, ffmpeg and JS runtime locations
//   - Playlist: preview limits, expansion limits and archiving
//   - Workflow: engine admission limits
//   - Cleanup: job retention window and sweep cadence
//   - Journal: persistence of job records across restarts
//   - Metrics: Prometheus exposition
//   - Notifications: ntfy alerts for finished and failed jobs
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Engine        Engine        `toml:"engine"`
	Playlist      Playlist      `toml:"playlist"`
	Workflow      Workflow      `toml:"workflow"`
	Cleanup       Cleanup       `toml:"cleanup"`
	Journal       Journal       `toml:"journal"`
	Metrics       Metrics       `toml:"metrics"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
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
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strings.TrimSpace(strict.String()))
			}
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

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mediagrab.toml")
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
// StaticDir is never created; an absent static directory simply disables the UI route.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DownloadDir, c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RetentionWindow returns the age after which finished jobs are swept.
func (c *Config) RetentionWindow() time.Duration {
	return hoursToDuration(c.Cleanup.RetentionHours)
}

// SweepInterval returns how often the cleanup sweeper runs.
func (c *Config) SweepInterval() time.Duration {
	return hoursToDuration(c.Cleanup.IntervalHours)
}

// NotifyTimeout returns the ntfy request timeout.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeoutSeconds) * time.Second
}

// InfoTimeout bounds metadata probes issued by /api/info.
func (c *Config) InfoTimeout() time.Duration {
	return time.Duration(c.Engine.InfoTimeoutSeconds) * time.Second
}

// JournalPath returns the SQLite journal location.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.StateDir, "jobs.db")
}

// LockPath returns the single-instance daemon lock location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "mediagrab.lock")
}

func hoursToDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
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
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
