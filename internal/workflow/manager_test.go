package workflow_test

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mediagrab/internal/config"
	"mediagrab/internal/engine"
	"mediagrab/internal/jobs"
	"mediagrab/internal/logging"
	"mediagrab/internal/testsupport"
	"mediagrab/internal/workflow"
)

type harness struct {
	cfg     *config.Config
	store   *jobs.MemoryStore
	engine  *testsupport.FakeEngine
	manager *workflow.Manager
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.NewMemoryStore(cfg)
	eng := testsupport.NewFakeEngine()
	mgr := workflow.NewManager(cfg, store, eng, logging.NewNop(), workflow.WithSlotPollInterval(5*time.Millisecond))
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)
	return &harness{cfg: cfg, store: store, engine: eng, manager: mgr}
}

func (h *harness) submit(t *testing.T, req jobs.Request) *jobs.Record {
	t.Helper()
	record, err := h.manager.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return record
}

func waitDone(t *testing.T, record *jobs.Record) jobs.Job {
	t.Helper()
	select {
	case <-record.DoneCh():
	case <-time.After(5 * time.Second):
		t.Fatalf("job %s did not finish; status %s", record.ID(), record.Status())
	}
	return record.Snapshot()
}

func collectEvents(t *testing.T, record *jobs.Record) []jobs.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cursor := record.Events().Cursor()
	var out []jobs.Event
	for {
		batch, closed, err := cursor.Next(ctx)
		if err != nil {
			t.Fatalf("cursor: %v", err)
		}
		out = append(out, batch...)
		if closed {
			return out
		}
	}
}

func progressEvents(events []jobs.Event) []jobs.ProgressData {
	var out []jobs.ProgressData
	for _, event := range events {
		if data, ok := event.Data.(jobs.ProgressData); ok && event.Type == jobs.EventProgress {
			out = append(out, data)
		}
	}
	return out
}

func statusRank(status jobs.Status) int {
	switch status {
	case jobs.StatusQueued:
		return 0
	case jobs.StatusFetching:
		return 1
	case jobs.StatusProcessingPlaylist, jobs.StatusDownloading:
		return 2
	case jobs.StatusMerging:
		return 3
	default:
		return 4
	}
}

func assertMonotonic(t *testing.T, updates []jobs.ProgressData) {
	t.Helper()
	for i := 1; i < len(updates); i++ {
		prev, next := updates[i-1], updates[i]
		if statusRank(next.Status) < statusRank(prev.Status) {
			t.Fatalf("status regressed %s -> %s at %d", prev.Status, next.Status, i)
		}
		if next.Progress < prev.Progress {
			t.Fatalf("progress regressed %.1f -> %.1f at %d", prev.Progress, next.Progress, i)
		}
		if next.Progress >= 100 && next.Status != jobs.StatusDone {
			t.Fatalf("progress 100 reported while %s", next.Status)
		}
	}
}

func hasLog(job jobs.Job, level jobs.LogLevel, fragment string) bool {
	for _, entry := range job.Log {
		if entry.Level == level && strings.Contains(entry.Message, fragment) {
			return true
		}
	}
	return false
}

func TestSingleVideoDownload(t *testing.T) {
	h := newHarness(t)
	url := "https://www.youtube.com/watch?v=abc"
	h.engine.SetInfo(url, &engine.Info{Entry: engine.Entry{ID: "abc", Title: "Clip"}})
	h.engine.SetScript(url, testsupport.DownloadScript{
		Steps: []engine.Progress{
			{Status: engine.ProgressDownloading, DownloadedBytes: 0, TotalBytes: 1000, BytesPerSecond: 2 * 1024 * 1024, ETA: 3 * time.Second, Filename: "/x/Clip.f136.mp4"},
			{Status: engine.ProgressDownloading, DownloadedBytes: 333, TotalBytes: 1000, Filename: "/x/Clip.f136.mp4"},
			{Status: engine.ProgressDownloading, DownloadedBytes: 1000, TotalBytes: 1000, Filename: "/x/Clip.f136.mp4"},
			{Status: engine.ProgressFinished, DownloadedBytes: 1000, TotalBytes: 1000, Filename: "/x/Clip.f136.mp4"},
		},
		Files: map[string]int64{"Clip.mp4": 64},
	})

	record := h.submit(t, jobs.Request{URL: url, Quality: "720p"})
	events := collectEvents(t, record)
	job := waitDone(t, record)

	if job.Status != jobs.StatusDone || job.Progress != 100 {
		t.Fatalf("expected done at 100, got %s %.1f", job.Status, job.Progress)
	}
	if job.Filename != "Clip.mp4" || job.Filepath != filepath.Join(h.cfg.Paths.DownloadDir, job.ID, "Clip.mp4") {
		t.Fatalf("unexpected artifact %q %q", job.Filename, job.Filepath)
	}
	if job.Title != "Clip" || job.FinishedAt == nil {
		t.Fatalf("unexpected job %#v", job)
	}
	if !hasLog(job, jobs.LevelOK, "Downloaded: Clip.f136.mp4") || !hasLog(job, jobs.LevelOK, "Ready!") {
		t.Fatalf("expected download and ready log entries, got %#v", job.Log)
	}

	downloads := h.engine.Downloads()
	if len(downloads) != 1 || downloads[0].Quality != "720p" || downloads[0].VideoFormat != "mp4" {
		t.Fatalf("unexpected engine requests %#v", downloads)
	}

	updates := progressEvents(events)
	assertMonotonic(t, updates)
	seen := map[jobs.Status]bool{}
	for _, update := range updates {
		seen[update.Status] = true
	}
	for _, status := range []jobs.Status{jobs.StatusFetching, jobs.StatusDownloading, jobs.StatusMerging, jobs.StatusDone} {
		if !seen[status] {
			t.Fatalf("status %s never published; got %#v", status, updates)
		}
	}
	var sawSpeed bool
	for _, update := range updates {
		if update.Speed == "2.0 MB/s" && update.ETA == "3s" && update.Progress == 0 {
			sawSpeed = true
		}
		if update.Status == jobs.StatusDownloading && update.Progress == 33.3 && update.Filename != "Clip.f136.mp4" {
			t.Fatalf("unexpected filename %q", update.Filename)
		}
	}
	if !sawSpeed {
		t.Fatalf("speed and eta not published: %#v", updates)
	}
}

func TestMergedFormatDoesNotRegressFromMerging(t *testing.T) {
	h := newHarness(t)
	url := "https://example.com/merged"
	h.engine.SetScript(url, testsupport.DownloadScript{
		Steps: []engine.Progress{
			{Status: engine.ProgressDownloading, DownloadedBytes: 50, TotalBytes: 100, Filename: "v.f1.mp4"},
			{Status: engine.ProgressFinished, Filename: "v.f1.mp4"},
			{Status: engine.ProgressDownloading, DownloadedBytes: 10, TotalBytes: 100, Filename: "v.f2.m4a"},
			{Status: engine.ProgressFinished, Filename: "v.f2.m4a"},
		},
		Files: map[string]int64{"v.mp4": 8},
	})

	record := h.submit(t, jobs.Request{URL: url})
	updates := progressEvents(collectEvents(t, record))
	assertMonotonic(t, updates)

	var afterMerge bool
	for _, update := range updates {
		if update.Status == jobs.StatusMerging {
			afterMerge = true
		}
		if afterMerge && update.Status == jobs.StatusDownloading {
			t.Fatalf("status returned to downloading after merging: %#v", updates)
		}
		if afterMerge && update.Filename == "v.f2.m4a" && update.Progress != 99 {
			t.Fatalf("progress not pinned at 99 during second stream: %#v", update)
		}
	}
	if job := waitDone(t, record); job.Status != jobs.StatusDone {
		t.Fatalf("expected done, got %s", job.Status)
	}
}

func TestDeleteBeforeDoneCancelsAndRemovesFiles(t *testing.T) {
	h := newHarness(t)
	url := "https://example.com/long"
	h.engine.SetScript(url, testsupport.DownloadScript{HoldUntilAbort: true})

	record := h.submit(t, jobs.Request{URL: url})
	select {
	case <-h.engine.Started():
	case <-time.After(5 * time.Second):
		t.Fatal("download never started")
	}
	jobDir := jobs.JobDir(h.cfg.Paths.DownloadDir, record.ID())
	if _, err := os.Stat(jobDir); err != nil {
		t.Fatalf("expected job dir before delete: %v", err)
	}

	if err := h.store.Delete(record.ID()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	waitDone(t, record)

	if _, ok := h.store.Get(record.ID()); ok {
		t.Fatal("record still present after delete")
	}
	if _, err := os.Stat(jobDir); !os.IsNotExist(err) {
		t.Fatalf("expected job dir removed, got %v", err)
	}
	if err := h.store.Delete(record.ID()); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestDeleteDuringSilentPhaseRemovesRecreatedDir(t *testing.T) {
	h := newHarness(t)
	url := "https://example.com/postprocess"
	release := make(chan struct{})
	h.engine.SetScript(url, testsupport.DownloadScript{
		Release: release,
		Files:   map[string]int64{"late.mp4": 8},
	})

	record := h.submit(t, jobs.Request{URL: url})
	select {
	case <-h.engine.Started():
	case <-time.After(5 * time.Second):
		t.Fatal("download never started")
	}
	if err := h.store.Delete(record.ID()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	jobDir := jobs.JobDir(h.cfg.Paths.DownloadDir, record.ID())
	if _, err := os.Stat(jobDir); !os.IsNotExist(err) {
		t.Fatalf("expected job dir removed by delete, got %v", err)
	}

	// The engine writes into the output directory without reporting progress.
	close(release)
	waitDone(t, record)

	if _, err := os.Stat(jobDir); !os.IsNotExist(err) {
		entries, _ := os.ReadDir(jobDir)
		t.Fatalf("deleted job left %s behind with %d entries", jobDir, len(entries))
	}
}

func TestPlaylistExpandsChildrenSequentially(t *testing.T) {
	h := newHarness(t)
	url := "https://www.youtube.com/playlist?list=PL1"
	h.engine.SetInfo(url, &engine.Info{
		Entry:      engine.Entry{ID: "PL1", Title: "Mix"},
		IsPlaylist: true,
		Entries: []engine.Entry{
			{ID: "a", Title: "First", URL: "https://example.com/a"},
			{ID: "b", Title: ""},
			{ID: "c", Title: "Third", URL: "https://example.com/c"},
		},
	})
	for _, child := range []string{"https://example.com/a", engine.WatchURL + "b", "https://example.com/c"} {
		h.engine.SetScript(child, testsupport.DownloadScript{
			Steps:     []engine.Progress{{Status: engine.ProgressDownloading, DownloadedBytes: 1, TotalBytes: 2}, {Status: engine.ProgressFinished, Filename: "f.mp4"}},
			StepDelay: 5 * time.Millisecond,
			Files:     map[string]int64{"f.mp4": 4},
		})
	}

	parent := h.submit(t, jobs.Request{URL: url, Playlist: true, Type: "audio"})
	events := collectEvents(t, parent)
	job := waitDone(t, parent)

	if job.Status != jobs.StatusDone || job.Progress != 100 || job.Title != "Mix" {
		t.Fatalf("unexpected parent %#v", job)
	}

	var childIDs []string
	for _, event := range events {
		if event.Type == jobs.EventChildJob {
			childIDs = append(childIDs, event.Data.(jobs.ChildJobData).ID)
		}
	}
	if len(childIDs) != 3 {
		t.Fatalf("expected 3 child_job events, got %d", len(childIDs))
	}

	var prevFinished time.Time
	wantTitles := []string{"First", "Video", "Third"}
	for i, id := range childIDs {
		child, ok := h.store.Get(id)
		if !ok {
			t.Fatalf("child %s missing", id)
		}
		snap := child.Snapshot()
		if snap.Status != jobs.StatusDone || snap.ParentID != parent.ID() || snap.Title != wantTitles[i] {
			t.Fatalf("unexpected child %d %#v", i, snap)
		}
		if snap.Type != "audio" || snap.Playlist {
			t.Fatalf("child did not inherit parameters: %#v", snap.Params)
		}
		if i > 0 && snap.CreatedAt.Before(prevFinished) {
			t.Fatalf("child %d created before previous child finished", i)
		}
		prevFinished = *snap.FinishedAt
	}
	if h.engine.MaxActive() != 1 {
		t.Fatalf("children overlapped: max active %d", h.engine.MaxActive())
	}
	downloads := h.engine.Downloads()
	if len(downloads) != 3 || downloads[1].URL != engine.WatchURL+"b" {
		t.Fatalf("unexpected child downloads %#v", downloads)
	}
	if job.FinishedAt.Before(prevFinished) {
		t.Fatal("parent finished before its last child")
	}
}

func TestPlaylistChildFailureDoesNotStopSiblings(t *testing.T) {
	h := newHarness(t, testsupport.WithPlaylistArchive())
	url := "https://example.com/list"
	h.engine.SetInfo(url, &engine.Info{
		Entry:      engine.Entry{Title: "Set"},
		IsPlaylist: true,
		Entries: []engine.Entry{
			{URL: "https://example.com/1", Title: "One"},
			{URL: "https://example.com/2", Title: "Two"},
			{URL: "https://example.com/3", Title: "Three"},
		},
	})
	h.engine.SetScript("https://example.com/1", testsupport.DownloadScript{Files: map[string]int64{"one.mp4": 4}})
	h.engine.SetScript("https://example.com/2", testsupport.DownloadScript{Err: errors.New("ERROR: [generic] Unsupported URL: https://example.com/2")})
	h.engine.SetScript("https://example.com/3", testsupport.DownloadScript{Files: map[string]int64{"three.mp4": 4}})

	parent := h.submit(t, jobs.Request{URL: url, Playlist: true})
	job := waitDone(t, parent)
	if job.Status != jobs.StatusDone {
		t.Fatalf("expected parent done, got %s", job.Status)
	}
	if !hasLog(job, jobs.LevelWarn, "1 of 3 entries failed") {
		t.Fatalf("expected failure summary, got %#v", job.Log)
	}

	var failed int
	for _, record := range h.store.List() {
		snap := record.Snapshot()
		if snap.ParentID != parent.ID() {
			continue
		}
		if snap.Status == jobs.StatusError {
			failed++
			if snap.Error != "Unsupported or invalid URL" {
				t.Fatalf("unexpected child error %q", snap.Error)
			}
		}
	}
	if failed != 1 {
		t.Fatalf("expected one failed child, got %d", failed)
	}

	if job.Filepath != jobs.ArchivePath(h.cfg.Paths.DownloadDir, parent.ID()) || job.Filename != "Set.zip" {
		t.Fatalf("unexpected archive %q %q", job.Filepath, job.Filename)
	}
	reader, err := zip.OpenReader(job.Filepath)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer reader.Close()
	if len(reader.File) != 2 {
		t.Fatalf("expected 2 archive entries, got %d", len(reader.File))
	}
}

func TestProbeFailureIsNormalized(t *testing.T) {
	h := newHarness(t)
	url := "https://www.youtube.com/watch?v=gone"
	h.engine.SetProbeError(url, errors.New("ERROR: [youtube] gone: Video unavailable. This video is private"))

	record := h.submit(t, jobs.Request{URL: url})
	job := waitDone(t, record)
	if job.Status != jobs.StatusError || job.Error != "Video is unavailable" {
		t.Fatalf("unexpected job %s %q", job.Status, job.Error)
	}
	if !hasLog(job, jobs.LevelError, "Video is unavailable") {
		t.Fatalf("expected error log entry, got %#v", job.Log)
	}
	if len(h.engine.Downloads()) != 0 {
		t.Fatal("download attempted after failed probe")
	}
}

func TestMissingArtifactFailsJob(t *testing.T) {
	h := newHarness(t)
	url := "https://example.com/empty"
	h.engine.SetScript(url, testsupport.DownloadScript{})

	job := waitDone(t, h.submit(t, jobs.Request{URL: url}))
	if job.Status != jobs.StatusError || job.Error != "No file found after download" {
		t.Fatalf("unexpected job %s %q", job.Status, job.Error)
	}
}

func TestEngineMessagesReachJobLog(t *testing.T) {
	h := newHarness(t)
	url := "https://example.com/noisy"
	h.engine.SetScript(url, testsupport.DownloadScript{
		Messages: []testsupport.EngineMessage{{Level: engine.MessageWarning, Text: "falling back to generic extractor"}},
		Files:    map[string]int64{"n.mp4": 1},
	})

	job := waitDone(t, h.submit(t, jobs.Request{URL: url}))
	if !hasLog(job, jobs.LevelWarn, "falling back to generic extractor") {
		t.Fatalf("expected warn entry, got %#v", job.Log)
	}
}

func TestMaxConcurrentKeepsWaitingJobsQueued(t *testing.T) {
	h := newHarness(t, testsupport.WithMaxConcurrent(1))
	release := make(chan struct{})
	first := "https://example.com/first"
	h.engine.SetScript(first, testsupport.DownloadScript{Release: release, Files: map[string]int64{"a.mp4": 1}})

	a := h.submit(t, jobs.Request{URL: first})
	select {
	case <-h.engine.Started():
	case <-time.After(5 * time.Second):
		t.Fatal("first download never started")
	}
	b := h.submit(t, jobs.Request{URL: "https://example.com/second"})
	c := h.submit(t, jobs.Request{URL: "https://example.com/third"})

	deadline := time.Now().Add(time.Second)
	for h.manager.Status().Waiting < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if b.Status() != jobs.StatusQueued || c.Status() != jobs.StatusQueued {
		t.Fatalf("waiting jobs left queued state: %s %s", b.Status(), c.Status())
	}

	c.RequestCancel()
	if job := waitDone(t, c); job.Status != jobs.StatusCancelled {
		t.Fatalf("expected cancelled while waiting, got %s", job.Status)
	}

	close(release)
	waitDone(t, a)
	if job := waitDone(t, b); job.Status != jobs.StatusDone {
		t.Fatalf("expected second job done, got %s", job.Status)
	}
	if h.engine.MaxActive() != 1 {
		t.Fatalf("expected at most one engine call, saw %d", h.engine.MaxActive())
	}
}

func TestSubmitRequiresRunningManager(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	mgr := workflow.NewManager(cfg, testsupport.NewMemoryStore(cfg), testsupport.NewFakeEngine(), logging.NewNop())
	if _, err := mgr.Submit(context.Background(), jobs.Request{URL: "https://example.com"}); !errors.Is(err, workflow.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := mgr.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}
	mgr.Stop()
	if mgr.Status().Running {
		t.Fatal("expected manager stopped")
	}
}

func TestStopCancelsRunningJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.NewMemoryStore(cfg)
	eng := testsupport.NewFakeEngine()
	mgr := workflow.NewManager(cfg, store, eng, logging.NewNop())
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	url := "https://example.com/stuck"
	eng.SetScript(url, testsupport.DownloadScript{Release: make(chan struct{})})
	record, err := mgr.Submit(context.Background(), jobs.Request{URL: url})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-eng.Started()

	mgr.Stop()
	job := record.Snapshot()
	if job.Status != jobs.StatusCancelled || !record.Done() {
		t.Fatalf("expected cancelled and done after Stop, got %s", job.Status)
	}
}
