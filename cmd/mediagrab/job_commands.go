package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mediagrab/internal/api"
	"mediagrab/internal/jobs"
)

const titleWidth = 48

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List jobs tracked by the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Jobs(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderJobsTable(resp.Jobs))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw JSON response")
	return cmd
}

func renderJobsTable(list []jobs.Job) string {
	rows := make([][]string, 0, len(list))
	for _, job := range list {
		rows = append(rows, []string{
			job.ID,
			string(job.Status),
			fmt.Sprintf("%.1f%%", job.Progress),
			job.Type,
			jobLabel(job),
			humanize.Time(job.CreatedAt),
		})
	}
	return renderTable([]tableColumn{
		{Header: "ID"},
		{Header: "Status"},
		{Header: "Progress", Align: alignRight},
		{Header: "Type"},
		{Header: "Title", MaxWidth: titleWidth},
		{Header: "Created"},
	}, rows)
}

func jobLabel(job jobs.Job) string {
	for _, candidate := range []string{job.Title, job.Filename, job.URL} {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			return candidate
		}
	}
	return "-"
}

func newJobCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var showLog bool
	cmd := &cobra.Command{
		Use:   "job <id>",
		Short: "Show a single job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				job, err := client.Job(cmd.Context(), args[0])
				if api.IsNotFound(err) {
					return fmt.Errorf("job %s not found", args[0])
				}
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, job)
				}
				printJob(cmd.OutOrStdout(), job, showLog, shouldColorize(cmd.OutOrStdout()))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw JSON response")
	cmd.Flags().BoolVar(&showLog, "log", false, "Include the job log")
	return cmd
}

func printJob(w io.Writer, job jobs.Job, showLog, colorize bool) {
	fmt.Fprintln(w, renderStatusLine("Job", jobStatusKind(job.Status), fmt.Sprintf("%s %s", job.ID, job.Status), colorize))
	fmt.Fprintln(w, renderStatusLine("URL", statusInfo, job.URL, colorize))
	fmt.Fprintln(w, renderStatusLine("Progress", statusInfo, fmt.Sprintf("%.1f%%", job.Progress), colorize))
	format := job.VideoFormat
	if job.Type == jobs.TypeAudio {
		format = job.AudioFormat
	}
	fmt.Fprintln(w, renderStatusLine("Request", statusInfo, fmt.Sprintf("%s %s %s, playlist %s", job.Type, job.Quality, format, yesNo(job.Playlist)), colorize))
	if job.Title != "" {
		fmt.Fprintln(w, renderStatusLine("Title", statusInfo, job.Title, colorize))
	}
	if job.Filename != "" {
		fmt.Fprintln(w, renderStatusLine("File", statusInfo, job.Filename, colorize))
	}
	if job.ParentID != "" {
		fmt.Fprintln(w, renderStatusLine("Parent", statusInfo, job.ParentID, colorize))
	}
	if job.Error != "" {
		fmt.Fprintln(w, renderStatusLine("Error", statusError, job.Error, colorize))
	}
	if !showLog {
		return
	}
	for _, entry := range job.Log {
		fmt.Fprintf(w, "%s%s [%s] %s\n", statusIndent, entry.Time, entry.Level, entry.Message)
	}
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var req api.DownloadRequest
	var follow bool
	cmd := &cobra.Command{
		Use:   "download <url>",
		Short: "Queue a download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.URL = args[0]
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Download(cmd.Context(), req)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Queued job %s\n", resp.JobID)
				if !follow {
					return nil
				}
				return followJob(cmd.Context(), client, resp.JobID, stdout)
			})
		},
	}
	cmd.Flags().StringVarP(&req.Type, "type", "t", jobs.DefaultType, "Download type: video or audio")
	cmd.Flags().StringVarP(&req.Quality, "quality", "q", jobs.DefaultQuality, "Video height (1080p) or audio bitrate (best, 192)")
	cmd.Flags().StringVar(&req.AudioFormat, "audio-format", jobs.DefaultAudioFormat, "Audio container for audio downloads")
	cmd.Flags().StringVar(&req.VideoFormat, "video-format", jobs.DefaultVideoFormat, "Video container for video downloads")
	cmd.Flags().BoolVar(&req.Playlist, "playlist", false, "Expand playlist URLs into one job per entry")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream progress until the job finishes")
	return cmd
}

// errJobFailed is returned by followJob when the job ends in error.
var errJobFailed = errors.New("job failed")

func followJob(ctx context.Context, client *api.Client, id string, w io.Writer) error {
	var final jobs.DoneData
	err := client.Follow(ctx, id, func(ev api.StreamEvent) error {
		switch jobs.EventType(ev.Event) {
		case jobs.EventProgress:
			var data jobs.ProgressData
			if err := json.Unmarshal(ev.Data, &data); err != nil {
				return err
			}
			fmt.Fprintln(w, formatProgress(data))
		case jobs.EventLogLine:
			var entry jobs.LogEntry
			if err := json.Unmarshal(ev.Data, &entry); err != nil {
				return err
			}
			fmt.Fprintf(w, "[%s] %s\n", entry.Level, entry.Message)
		case jobs.EventChildJob:
			var child jobs.ChildJobData
			if err := json.Unmarshal(ev.Data, &child); err != nil {
				return err
			}
			fmt.Fprintf(w, "Queued child job %s\n", child.ID)
		case jobs.EventDone:
			return json.Unmarshal(ev.Data, &final)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if final.Filename != "" {
		fmt.Fprintf(w, "Job %s %s: %s\n", id, final.Status, final.Filename)
	} else {
		fmt.Fprintf(w, "Job %s %s\n", id, final.Status)
	}
	if final.Status == jobs.StatusError {
		return fmt.Errorf("%w: %s", errJobFailed, id)
	}
	return nil
}

func formatProgress(data jobs.ProgressData) string {
	parts := []string{string(data.Status), fmt.Sprintf("%5.1f%%", data.Progress)}
	if data.Speed != "" {
		parts = append(parts, data.Speed)
	}
	if data.ETA != "" {
		parts = append(parts, "ETA "+data.ETA)
	}
	return strings.Join(parts, "  ")
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "cancel <id>",
		Aliases: []string{"rm"},
		Short:   "Cancel a job and delete its files",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				err := client.Delete(cmd.Context(), args[0])
				if api.IsNotFound(err) {
					return fmt.Errorf("job %s not found", args[0])
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed job %s\n", args[0])
				return nil
			})
		},
	}
}

func newInfoCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "info <url>",
		Short: "Preview a URL without downloading it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				info, err := client.Info(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, info)
				}
				printInfo(cmd.OutOrStdout(), info, shouldColorize(cmd.OutOrStdout()))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw JSON response")
	return cmd
}

func printInfo(w io.Writer, info api.InfoResponse, colorize bool) {
	fmt.Fprintln(w, renderStatusLine("Title", statusInfo, info.Title, colorize))
	if info.Uploader != "" {
		fmt.Fprintln(w, renderStatusLine("Uploader", statusInfo, info.Uploader, colorize))
	}
	if !info.IsPlaylist {
		return
	}
	fmt.Fprintln(w, renderStatusLine("Playlist", statusInfo, fmt.Sprintf("%d entries", info.Count), colorize))
	rows := make([][]string, 0, len(info.Items))
	for i, item := range info.Items {
		rows = append(rows, []string{fmt.Sprintf("%d", i+1), item.Title, formatDuration(item.Duration), item.Uploader})
	}
	fmt.Fprintln(w, renderTable([]tableColumn{
		{Header: "#", Align: alignRight},
		{Header: "Title", MaxWidth: titleWidth},
		{Header: "Duration", Align: alignRight},
		{Header: "Uploader"},
	}, rows))
}

func formatDuration(seconds *float64) string {
	if seconds == nil || *seconds <= 0 {
		return "-"
	}
	total := int(*seconds)
	h, m, s := total/3600, total%3600/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
