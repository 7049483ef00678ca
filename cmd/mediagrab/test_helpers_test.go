package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"mediagrab/internal/config"
	"mediagrab/internal/daemon"
	"mediagrab/internal/deps"
	"mediagrab/internal/logging"
	"mediagrab/internal/testsupport"
	"mediagrab/internal/workflow"
)

type cliTestEnv struct {
	cfg        *config.Config
	engine     *testsupport.FakeEngine
	daemon     *daemon.Daemon
	configPath string
	apiAddr    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	t.Setenv("HOME", testsupport.BaseDir(cfg))
	configPath := filepath.Join(testsupport.BaseDir(cfg), "mediagrab.toml")
	writeTestConfig(t, configPath, cfg)

	eng := testsupport.NewFakeEngine()
	ytdlp := deps.Status{Name: "yt-dlp", Command: "yt-dlp", Available: true, Path: "/usr/bin/yt-dlp"}
	ffmpeg := deps.Status{Name: "ffmpeg", Command: "ffmpeg", Available: false, Detail: "binary \"ffmpeg\" not found"}
	d, err := daemon.New(cfg, logging.NewNop(),
		daemon.WithEngine(eng),
		daemon.WithDependencyReport(deps.Report{Ytdlp: ytdlp, FFmpeg: ffmpeg, Dependencies: []deps.Status{ytdlp, ffmpeg}}),
		daemon.WithManagerOptions(workflow.WithSlotPollInterval(5*time.Millisecond)),
	)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		_ = d.Close()
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	return &cliTestEnv{
		cfg:        cfg,
		engine:     eng,
		daemon:     d,
		configPath: configPath,
		apiAddr:    d.Addr(),
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := runCLI(t, append([]string{"--config", e.configPath, "--api", e.apiAddr}, args...))
	return out, err
}

func runCLI(t *testing.T, args []string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
