package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"mediagrab/internal/engine"
	"mediagrab/internal/jobs"
	"mediagrab/internal/logging"
	"mediagrab/internal/services"
)

const (
	defaultVideoTitle    = "Video"
	defaultPlaylistTitle = "Playlist"
)

// execute drives a top-level job from queued to the point where only the
// terminal transition remains. A nil error means the job reached done.
func (m *Manager) execute(ctx context.Context, record *jobs.Record, logger *slog.Logger) error {
	if record.CancelRequested() {
		return errCancelled("queued", "cancel requested before start")
	}
	release, err := m.acquireSlot(ctx, record.CancelRequested)
	if err != nil {
		return err
	}
	held := true
	defer func() {
		if held {
			release()
		}
	}()

	job := record.Snapshot()
	if err := m.transition(record, jobs.StatusFetching); err != nil {
		return err
	}
	record.PushProgress()
	logger.Info("resolving metadata",
		logging.String(logging.FieldEventType, "job_fetching"),
		logging.String("url", job.URL),
	)

	info, err := m.engine.Probe(ctx, job.URL, engine.ProbeOptions{Limit: m.settings.expandLimit})
	if err != nil {
		if cancelErr := m.cancelCause(ctx, record.CancelRequested); cancelErr != nil {
			return cancelErr
		}
		return services.Wrap(services.ErrExternalTool, "fetching", "probe", "", err)
	}

	if info.IsPlaylist && job.Playlist {
		held = false
		release()
		return m.expandPlaylist(ctx, record, info, logger)
	}
	if info.IsPlaylist {
		// A watch URL inside a playlist: resolve the single video instead.
		if single, err := m.engine.Probe(ctx, job.URL, engine.ProbeOptions{NoPlaylist: true}); err == nil && !single.IsPlaylist {
			info = single
		}
	}

	title := strings.TrimSpace(job.Title)
	if title == "" {
		title = strings.TrimSpace(info.Title)
	}
	if title == "" {
		title = defaultVideoTitle
	}
	if err := record.Apply(func(j *jobs.Job) { j.Title = title }); err != nil {
		return m.applyError(err)
	}
	record.PushProgress()
	return m.download(ctx, record, logger, record.CancelRequested, job.Playlist)
}

// download runs the engine for record and locates the artifact. The caller
// holds an engine slot.
func (m *Manager) download(ctx context.Context, record *jobs.Record, logger *slog.Logger, cancelled func() bool, playlist bool) error {
	job := record.Snapshot()
	dir := jobs.JobDir(m.settings.downloadRoot, job.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "downloading", "prepare directory", dir, err)
	}

	req := engine.Request{
		URL:         job.URL,
		OutputDir:   dir,
		Type:        job.Type,
		Quality:     job.Quality,
		AudioFormat: job.AudioFormat,
		VideoFormat: job.VideoFormat,
		Playlist:    playlist,
	}
	hook := newProgressHook(record, cancelled)
	logger.Info("download started",
		logging.String(logging.FieldEventType, "download_start"),
		logging.String("type", job.Type),
		logging.String("quality", job.Quality),
	)
	err := m.engine.Download(ctx, req, hook.handle, m.engineMessages(record, logger))
	if errors.Is(err, engine.ErrAborted) {
		return errCancelled("downloading", "download aborted")
	}
	if cancelErr := m.cancelCause(ctx, cancelled); cancelErr != nil {
		return cancelErr
	}
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "downloading", "run engine", "", err)
	}

	path, _, err := jobs.NewestFile(dir)
	if err != nil {
		if errors.Is(err, jobs.ErrNoArtifact) {
			return services.Wrap(services.ErrNotFound, "merging", "locate artifact", dir, services.ErrNoArtifact)
		}
		return services.Wrap(services.ErrTransient, "merging", "locate artifact", dir, err)
	}

	// The engine may skip straight to a finished file without callbacks.
	if record.Status() != jobs.StatusMerging {
		if err := m.transition(record, jobs.StatusMerging); err != nil {
			return err
		}
	}
	err = record.Apply(func(j *jobs.Job) {
		j.Status = jobs.StatusDone
		j.Progress = 100
		j.Filepath = path
		j.Filename = filepath.Base(path)
	})
	if err != nil {
		return m.applyError(err)
	}
	record.AppendLog(jobs.LevelOK, "Ready!")
	logger.Info("download complete",
		logging.String(logging.FieldEventType, "download_complete"),
		logging.String("file", path),
	)
	return nil
}

// transition moves record to status, reporting a deleted record as a
// cancellation.
func (m *Manager) transition(record *jobs.Record, status jobs.Status) error {
	if err := record.Transition(status); err != nil {
		return m.applyError(err)
	}
	return nil
}

func (m *Manager) applyError(err error) error {
	if errors.Is(err, jobs.ErrDeleted) {
		return errCancelled("", "job deleted")
	}
	return services.Wrap(services.ErrValidation, "", "update job", "", err)
}

// cancelCause reports why a failed engine call should count as a
// cancellation, or nil when it should not.
func (m *Manager) cancelCause(ctx context.Context, cancelled func() bool) error {
	if cancelled() {
		return errCancelled("", "cancel requested")
	}
	if ctx.Err() != nil {
		return services.Wrap(services.ErrCancelled, "", "", "daemon shutting down", ctx.Err())
	}
	return nil
}

func errCancelled(stage, message string) error {
	return services.Wrap(services.ErrCancelled, stage, "", message, nil)
}

func (m *Manager) engineMessages(record *jobs.Record, logger *slog.Logger) engine.MessageFunc {
	return func(level engine.MessageLevel, text string) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		switch level {
		case engine.MessageError:
			record.AppendLog(jobs.LevelError, text)
		default:
			record.AppendLog(jobs.LevelWarn, text)
		}
		logger.Debug("engine message", logging.String("level", string(level)), logging.String("text", text))
	}
}

// finish settles the terminal state, removes whatever a deleted job left on
// disk, pushes the final progress snapshot and releases stream subscribers.
func (m *Manager) finish(record *jobs.Record, logger *slog.Logger, err error) {
	if err != nil {
		m.fail(record, logger, err)
	}
	if record.Deleted() {
		// The engine may have recreated the output directory after the
		// store removed it.
		if rmErr := jobs.RemoveArtifacts(m.settings.downloadRoot, record.ID()); rmErr != nil {
			logging.WarnWithContext(logger, "deleted job left artifacts behind", "job_artifacts_remove_failed",
				logging.Error(rmErr),
				logging.String(logging.FieldErrorHint, "check download_dir permissions"),
				logging.String(logging.FieldImpact, "files remain until the next orphan sweep"),
			)
		}
	}
	record.PushProgress()
	record.MarkDone()

	m.mu.Lock()
	m.lastJob = record.ID()
	m.mu.Unlock()

	snap := record.Snapshot()
	logger.Info(fmt.Sprintf("job %s", snap.Status),
		logging.String(logging.FieldEventType, "job_finished"),
		logging.String(logging.FieldStatus, string(snap.Status)),
		logging.Float64("progress", snap.Progress),
	)
}
