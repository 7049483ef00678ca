package preflight

import (
	"context"
	"strings"

	"mediagrab/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Download directory", cfg.Paths.DownloadDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}
	if strings.TrimSpace(cfg.Paths.LogDir) != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	if strings.TrimSpace(cfg.Paths.StaticDir) != "" {
		results = append(results, CheckDirectoryAccess("Static directory", cfg.Paths.StaticDir))
	}
	results = append(results, CheckFreeSpace("Download volume", cfg.Paths.DownloadDir, MinFreeBytes))
	results = append(results, CheckEngineVersion(ctx, cfg.Engine.YtdlpBinary))
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
