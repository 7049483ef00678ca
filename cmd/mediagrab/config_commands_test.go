package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediagrab/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "mediagrab.toml")
	writeTestConfig(t, configPath, cfg)

	out, _, err := runCLI(t, []string{"--config", configPath, "config", "validate"})
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, configPath)

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target})
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}); err == nil {
		t.Fatal("expected init to refuse overwriting an existing file")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, []string{"--config", target, "config", "validate"})
	if err != nil {
		t.Fatalf("validate sample: %v", err)
	}
	requireContains(t, out, "Configuration valid")
}

func TestConfigValidateRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[logging]\nformat = \"xml\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := runCLI(t, []string{"--config", path, "config", "validate"}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestConfigShowMasksTokenAndAppliesEnvFile(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken("s3cret"))
	configPath := filepath.Join(testsupport.BaseDir(cfg), "mediagrab.toml")
	writeTestConfig(t, configPath, cfg)

	override := filepath.Join(testsupport.BaseDir(cfg), "elsewhere")
	envFile := filepath.Join(t.TempDir(), "mediagrab.env")
	if err := os.WriteFile(envFile, []byte("MEDIAGRAB_DOWNLOAD_DIR="+override+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Registers restoration of the variable the env file overwrites.
	t.Setenv("MEDIAGRAB_DOWNLOAD_DIR", "")

	out, _, err := runCLI(t, []string{"--config", configPath, "--env-file", envFile, "config", "show"})
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, override)
	requireContains(t, out, "********")
	if strings.Contains(out, "s3cret") {
		t.Fatalf("token leaked in %q", out)
	}
	if _, err := os.Stat(override); err != nil {
		t.Fatalf("expected env override directory to be created: %v", err)
	}
}
