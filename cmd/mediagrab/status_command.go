package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mediagrab/internal/api"
	"mediagrab/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency and storage status",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			cfg := ctx.configValue()

			client, err := ctx.newClient()
			if err != nil {
				return err
			}
			health, healthErr := client.Health(cmd.Context())

			printSection(stdout, "System Status", colorize, daemonLines(client.BaseURL(), health, healthErr, colorize))

			if healthErr == nil {
				printSection(stdout, "Dependencies", colorize, dependencyLines(health.Dependencies, colorize))
				storage, err := client.Storage(cmd.Context())
				printSection(stdout, "Storage", colorize, storageLines(storage, err, colorize))
			}

			var checks []string
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				checks = append(checks, preflightLine(result, colorize))
			}
			printSection(stdout, "Preflight", colorize, checks)
			return nil
		},
	}
}

func printSection(w io.Writer, title string, colorize bool, lines []string) {
	if len(lines) == 0 {
		return
	}
	for _, line := range renderSectionHeader(title, colorize) {
		fmt.Fprintln(w, line)
	}
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)
}

func daemonLines(base string, health api.HealthResponse, err error, colorize bool) []string {
	if err != nil {
		return []string{
			renderStatusLine("Daemon", statusError, "Not running", colorize),
			renderStatusLine("API", statusInfo, base, colorize),
		}
	}
	wf := health.Workflow
	limit := "unlimited"
	if wf.MaxConcurrent > 0 {
		limit = fmt.Sprintf("%d", wf.MaxConcurrent)
	}
	lines := []string{
		renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", health.PID), colorize),
		renderStatusLine("API", statusInfo, base, colorize),
		renderStatusLine("Jobs", statusInfo, fmt.Sprintf("%d tracked", health.JobCount), colorize),
		renderStatusLine("Workers", statusInfo, fmt.Sprintf("%d active, %d waiting, limit %s", wf.Active, wf.Waiting, limit), colorize),
	}
	if health.JSRuntime != "" {
		lines = append(lines, renderStatusLine("JS runtime", statusOK, health.JSRuntime, colorize))
	} else {
		lines = append(lines, renderStatusLine("JS runtime", statusWarn, "none detected", colorize))
	}
	if wf.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusWarn, fmt.Sprintf("%s (job %s)", wf.LastError, wf.LastJobID), colorize))
	}
	return lines
}

func storageLines(storage api.StorageResponse, err error, colorize bool) []string {
	if err != nil {
		return []string{renderStatusLine("Storage", statusError, err.Error(), colorize)}
	}
	if storage.Error != "" {
		return []string{renderStatusLine("Storage", statusWarn, storage.Error, colorize)}
	}
	kind := statusOK
	if storage.Free < preflight.MinFreeBytes {
		kind = statusWarn
	}
	return []string{
		renderStatusLine("Free", kind, fmt.Sprintf("%s of %s", humanize.IBytes(storage.Free), humanize.IBytes(storage.Total)), colorize),
		renderStatusLine("Downloads", statusInfo, humanize.IBytes(uint64(max(storage.DownloadsSize, 0))), colorize),
	}
}
