package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"mediagrab/internal/engine"
	"mediagrab/internal/jobs"
	"mediagrab/internal/logging"
	"mediagrab/internal/services"
)

// expandPlaylist turns parent into a playlist job and runs one child job
// per entry, strictly one after another. Child failures do not stop the
// loop; cancelling the parent does.
func (m *Manager) expandPlaylist(ctx context.Context, parent *jobs.Record, info *engine.Info, logger *slog.Logger) error {
	title := strings.TrimSpace(info.Title)
	if title == "" {
		title = defaultPlaylistTitle
	}
	err := parent.Apply(func(j *jobs.Job) {
		j.Status = jobs.StatusProcessingPlaylist
		j.Title = title
	})
	if err != nil {
		return m.applyError(err)
	}
	parent.PushProgress()

	params := parent.Snapshot().Params
	entries := m.playlistEntries(ctx, params.URL, info, logger)
	parent.AppendLog(jobs.LevelInfo, fmt.Sprintf("Playlist: %d entries", len(entries)))
	logger.Info("playlist expansion started",
		logging.String(logging.FieldEventType, "playlist_start"),
		logging.Int("entries", len(entries)),
	)

	var (
		completed []jobs.Job
		failed    int
	)
	for _, entry := range entries {
		if parent.CancelRequested() || ctx.Err() != nil {
			return m.cancelCause(ctx, parent.CancelRequested)
		}
		url := entry.CanonicalURL()
		if url == "" {
			continue
		}
		childTitle := strings.TrimSpace(entry.Title)
		if childTitle == "" {
			childTitle = defaultVideoTitle
		}
		child, err := m.store.Create(ctx, jobs.Request{
			URL:         url,
			Type:        params.Type,
			Quality:     params.Quality,
			AudioFormat: params.AudioFormat,
			VideoFormat: params.VideoFormat,
			ParentID:    parent.ID(),
			Title:       childTitle,
		})
		if err != nil {
			logging.WarnWithContext(logger, "playlist entry skipped", "playlist_entry_skipped",
				logging.String("url", url),
				logging.Error(err),
				logging.String(logging.FieldImpact, "entry will not be downloaded"),
			)
			continue
		}
		parent.Emit(jobs.EventChildJob, jobs.ChildJobData{ID: child.ID()})
		m.runChild(ctx, parent, child)

		switch snap := child.Snapshot(); snap.Status {
		case jobs.StatusDone:
			completed = append(completed, snap)
		case jobs.StatusError:
			failed++
		}
	}
	if cancelErr := m.cancelCause(ctx, parent.CancelRequested); cancelErr != nil {
		return cancelErr
	}

	var archivePath string
	if m.settings.archive && len(completed) > 0 {
		path, err := writeArchive(m.settings.downloadRoot, parent.ID(), completed)
		if err != nil {
			parent.AppendLog(jobs.LevelWarn, "Archive failed: "+err.Error())
			logging.WarnWithContext(logger, "playlist archive failed", "playlist_archive_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check free space in the download directory"),
				logging.String(logging.FieldImpact, "children remain downloadable one by one"),
			)
		} else {
			archivePath = path
		}
	}

	err = parent.Apply(func(j *jobs.Job) {
		j.Status = jobs.StatusDone
		j.Progress = 100
		if archivePath != "" {
			j.Filepath = archivePath
			j.Filename = archiveName(j.Title, parent.ID())
		}
	})
	if err != nil {
		return m.applyError(err)
	}
	if failed > 0 {
		parent.AppendLog(jobs.LevelWarn, fmt.Sprintf("%d of %d entries failed", failed, len(entries)))
	}
	parent.AppendLog(jobs.LevelOK, "Playlist complete")
	logger.Info("playlist expansion complete",
		logging.String(logging.FieldEventType, "playlist_complete"),
		logging.Int("completed", len(completed)),
		logging.Int("failed", failed),
	)
	return nil
}

// runChild executes one playlist entry to a terminal state on the caller's
// goroutine.
func (m *Manager) runChild(ctx context.Context, parent, child *jobs.Record) {
	ctx = services.WithParentJobID(services.WithJobID(ctx, child.ID()), parent.ID())
	logger := m.jobLogger(ctx)
	cancelled := func() bool {
		return child.CancelRequested() || parent.CancelRequested()
	}
	err := m.executeChild(ctx, child, logger, cancelled)
	m.finish(child, logger, err)
}

func (m *Manager) executeChild(ctx context.Context, child *jobs.Record, logger *slog.Logger, cancelled func() bool) error {
	if cancelled() {
		return errCancelled("queued", "cancel requested before start")
	}
	release, err := m.acquireSlot(ctx, cancelled)
	if err != nil {
		return err
	}
	defer release()

	if err := m.transition(child, jobs.StatusFetching); err != nil {
		return err
	}
	child.PushProgress()
	return m.download(ctx, child, logger, cancelled, false)
}

// playlistEntries returns the entries to expand. The flat probe already
// carries them; a dedicated lister is consulted first when configured.
func (m *Manager) playlistEntries(ctx context.Context, url string, info *engine.Info, logger *slog.Logger) []engine.Entry {
	entries := info.Entries
	if _, probeOnly := m.lister.(engine.ProbeLister); !probeOnly && m.lister != nil {
		listed, err := m.lister.ListEntries(ctx, url, m.settings.expandLimit)
		switch {
		case err != nil:
			logging.WarnWithContext(logger, "playlist enumeration failed, using probe entries", "playlist_enumeration_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "entries come from the engine probe"),
			)
		case len(listed) > 0:
			entries = listed
		}
	}
	if limit := m.settings.expandLimit; limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
