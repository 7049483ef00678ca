package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"mediagrab/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(tempHome, ".config", "mediagrab", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantDownloads := filepath.Join(tempHome, ".local", "share", "mediagrab", "downloads")
	if cfg.Paths.DownloadDir != wantDownloads {
		t.Fatalf("unexpected download dir: got %q want %q", cfg.Paths.DownloadDir, wantDownloads)
	}
	if cfg.Paths.APIBind != "127.0.0.1:8080" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.RetentionWindow() != 6*time.Hour {
		t.Fatalf("unexpected retention window: %s", cfg.RetentionWindow())
	}
	if cfg.SweepInterval() != 6*time.Hour {
		t.Fatalf("unexpected sweep interval: %s", cfg.SweepInterval())
	}
	if cfg.Playlist.MaxEntries != 50 {
		t.Fatalf("unexpected playlist max entries: %d", cfg.Playlist.MaxEntries)
	}
	if cfg.Workflow.MaxConcurrent != 0 {
		t.Fatalf("expected unbounded workflow by default, got %d", cfg.Workflow.MaxConcurrent)
	}
	if !cfg.Journal.Enabled || !cfg.Metrics.Enabled {
		t.Fatal("expected journal and metrics enabled by default")
	}
	if cfg.JournalPath() != filepath.Join(cfg.Paths.StateDir, "jobs.db") {
		t.Fatalf("unexpected journal path %q", cfg.JournalPath())
	}
}

func TestLoadCustomConfigOverrides(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	custom := config.Default()
	custom.Paths.DownloadDir = "~/media"
	custom.Paths.APIBind = "0.0.0.0:9999"
	custom.Playlist.Archive = true
	custom.Playlist.Enumerator = "NATIVE"
	custom.Workflow.MaxConcurrent = 2
	custom.Cleanup.RetentionHours = 0.5
	custom.Logging.Format = "JSON"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected %q to be loaded, got %q exists=%v", configPath, resolved, exists)
	}
	if cfg.Paths.DownloadDir != filepath.Join(tempHome, "media") {
		t.Fatalf("unexpected download dir: %q", cfg.Paths.DownloadDir)
	}
	if cfg.Paths.APIBind != "0.0.0.0:9999" {
		t.Fatalf("unexpected bind: %q", cfg.Paths.APIBind)
	}
	if !cfg.Playlist.Archive || cfg.Playlist.Enumerator != config.EnumeratorNative {
		t.Fatalf("unexpected playlist section: %+v", cfg.Playlist)
	}
	if cfg.Workflow.MaxConcurrent != 2 {
		t.Fatalf("unexpected max concurrent: %d", cfg.Workflow.MaxConcurrent)
	}
	if cfg.RetentionWindow() != 30*time.Minute {
		t.Fatalf("unexpected retention: %s", cfg.RetentionWindow())
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected lowercased log format, got %q", cfg.Logging.Format)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	downloads := t.TempDir()
	t.Setenv("MEDIAGRAB_DOWNLOAD_DIR", downloads)
	t.Setenv("MEDIAGRAB_API_TOKEN", "  secret  ")
	t.Setenv("YTDLP_PATH", "/opt/bin/yt-dlp")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.DownloadDir != downloads {
		t.Fatalf("expected env download dir, got %q", cfg.Paths.DownloadDir)
	}
	if cfg.Paths.APIToken != "secret" {
		t.Fatalf("expected trimmed token, got %q", cfg.Paths.APIToken)
	}
	if cfg.Engine.YtdlpBinary != "/opt/bin/yt-dlp" {
		t.Fatalf("unexpected yt-dlp binary %q", cfg.Engine.YtdlpBinary)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[paths]\nmystery = 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("expected parse error for unknown key, got %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"bind", func(c *config.Config) { c.Paths.APIBind = "nope" }, "paths.api_bind"},
		{"runtime", func(c *config.Config) { c.Engine.JSRuntime = "python" }, "engine.js_runtime"},
		{"enumerator", func(c *config.Config) { c.Playlist.Enumerator = "scrape" }, "playlist.enumerator"},
		{"workers", func(c *config.Config) { c.Workflow.MaxConcurrent = -1 }, "workflow.max_concurrent"},
		{"retention", func(c *config.Config) { c.Cleanup.RetentionHours = 0 }, "cleanup.retention_hours"},
		{"format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"ntfy", func(c *config.Config) { c.Notifications.NtfyTopic = "ntfy.sh/topic" }, "notifications.ntfy_topic"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Engine.AudioQuality != "192" {
		t.Fatalf("unexpected audio quality %q", cfg.Engine.AudioQuality)
	}
}

func TestEnsureDirectoriesCreatesRuntimeDirs(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DownloadDir = filepath.Join(base, "downloads")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DownloadDir, cfg.Paths.LogDir, cfg.Paths.StateDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}
