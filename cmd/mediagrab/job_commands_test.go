package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediagrab/internal/engine"
	"mediagrab/internal/jobs"
	"mediagrab/internal/testsupport"
)

func queuedID(t *testing.T, out string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if id, ok := strings.CutPrefix(line, "Queued job "); ok {
			return strings.TrimSpace(id)
		}
	}
	t.Fatalf("no job id in %q", out)
	return ""
}

func TestDownloadFollowThenInspect(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "download", "--follow", "--type", "audio", "https://example.com/watch?v=abc")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	id := queuedID(t, out)
	requireContains(t, out, "Job "+id+" done: video.mp4")

	out, err = env.run(t, "jobs")
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	requireContains(t, out, id)
	requireContains(t, out, "100.0%")

	out, err = env.run(t, "job", id, "--log")
	if err != nil {
		t.Fatalf("job: %v", err)
	}
	requireContains(t, out, "[OK] "+id+" done")
	requireContains(t, out, "audio")

	out, err = env.run(t, "job", id, "--json")
	if err != nil {
		t.Fatalf("job --json: %v", err)
	}
	var job jobs.Job
	if err := json.Unmarshal([]byte(out), &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.ID != id || job.Status != jobs.StatusDone || job.Type != jobs.TypeAudio {
		t.Fatalf("unexpected job %#v", job)
	}

	out, err = env.run(t, "files")
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	requireContains(t, out, "video.mp4")
	requireContains(t, out, id)
}

func TestDownloadFollowReportsFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	url := "https://example.com/broken"
	env.engine.SetScript(url, testsupport.DownloadScript{Err: errors.New("HTTP Error 403: Forbidden")})

	out, err := env.run(t, "download", "-f", url)
	if !errors.Is(err, errJobFailed) {
		t.Fatalf("expected errJobFailed, got %v", err)
	}
	requireContains(t, out, "error")
}

func TestDownloadRejectsBadType(t *testing.T) {
	env := setupCLITestEnv(t)
	_, err := env.run(t, "download", "--type", "gif", "https://example.com/x")
	if err == nil || !strings.Contains(err.Error(), "unsupported type") {
		t.Fatalf("expected unsupported type error, got %v", err)
	}
}

func TestJobsEmptyAndUnknownJob(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "jobs")
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	requireContains(t, out, "No jobs")

	if _, err := env.run(t, "job", "deadbeef"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := env.run(t, "cancel", "deadbeef"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCancelRemovesJob(t *testing.T) {
	env := setupCLITestEnv(t)
	url := "https://example.com/slow"
	env.engine.SetScript(url, testsupport.DownloadScript{HoldUntilAbort: true})

	out, err := env.run(t, "download", url)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	id := queuedID(t, out)

	out, err = env.run(t, "cancel", id)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	requireContains(t, out, "Removed job "+id)
	if _, ok := env.daemon.Store().Get(id); ok {
		t.Fatal("job still present after cancel")
	}
}

func TestInfoRendersPlaylist(t *testing.T) {
	env := setupCLITestEnv(t)
	url := "https://example.com/playlist?list=PL1"
	env.engine.SetInfo(url, &engine.Info{
		Entry:      engine.Entry{ID: "PL1", Title: "Road Trip", Uploader: "Chan"},
		IsPlaylist: true,
		Entries: []engine.Entry{
			{ID: "a", Title: "First Stop", Duration: 65},
			{ID: "b", Title: "Second Stop", Duration: 3725},
		},
	})

	out, err := env.run(t, "info", url)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	requireContains(t, out, "Road Trip")
	requireContains(t, out, "2 entries")
	requireContains(t, out, "First Stop")
	requireContains(t, out, "1:05")
	requireContains(t, out, "1:02:05")
}

func TestCleanRequiresConfirmation(t *testing.T) {
	env := setupCLITestEnv(t)
	stray := filepath.Join(env.cfg.Paths.DownloadDir, "abcd1234", "old.mp4")
	testsupport.WriteFile(t, stray, 8)

	if _, err := env.run(t, "clean"); err == nil {
		t.Fatal("expected clean without --yes to fail")
	}
	if _, err := os.Stat(stray); err != nil {
		t.Fatalf("file removed without confirmation: %v", err)
	}

	out, err := env.run(t, "clean", "--yes")
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	requireContains(t, out, "All jobs and files cleared.")
	if _, err := os.Stat(stray); !os.IsNotExist(err) {
		t.Fatalf("expected stray file removed, stat err = %v", err)
	}
}
