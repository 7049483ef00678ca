package jobs_test

import (
	"testing"

	"mediagrab/internal/jobs"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to jobs.Status
		want     bool
	}{
		{jobs.StatusQueued, jobs.StatusFetching, true},
		{jobs.StatusQueued, jobs.StatusDone, false},
		{jobs.StatusQueued, jobs.StatusDownloading, false},
		{jobs.StatusQueued, jobs.StatusCancelled, true},
		{jobs.StatusFetching, jobs.StatusDownloading, true},
		{jobs.StatusFetching, jobs.StatusProcessingPlaylist, true},
		{jobs.StatusFetching, jobs.StatusMerging, true},
		{jobs.StatusFetching, jobs.StatusQueued, false},
		{jobs.StatusFetching, jobs.StatusDone, false},
		{jobs.StatusDownloading, jobs.StatusMerging, true},
		{jobs.StatusDownloading, jobs.StatusError, true},
		{jobs.StatusMerging, jobs.StatusDownloading, false},
		{jobs.StatusMerging, jobs.StatusDone, true},
		{jobs.StatusProcessingPlaylist, jobs.StatusDone, true},
		{jobs.StatusProcessingPlaylist, jobs.StatusDownloading, false},
		{jobs.StatusDone, jobs.StatusError, false},
		{jobs.StatusError, jobs.StatusCancelled, false},
		{jobs.StatusCancelled, jobs.StatusFetching, false},
		{jobs.StatusDownloading, jobs.StatusDownloading, false},
	}
	for _, tc := range cases {
		if got := jobs.CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestNothingReentersQueued(t *testing.T) {
	for _, from := range jobs.AllStatuses() {
		if jobs.CanTransition(from, jobs.StatusQueued) {
			t.Fatalf("%s must not transition back to queued", from)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := jobs.ParseStatus(" Merging "); !ok || status != jobs.StatusMerging {
		t.Fatalf("unexpected parse result %q %v", status, ok)
	}
	if _, ok := jobs.ParseStatus("paused"); ok {
		t.Fatal("expected unknown status to fail")
	}
}
