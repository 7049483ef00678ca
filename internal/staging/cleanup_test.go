package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediagrab/internal/jobs"
	"mediagrab/internal/logging"
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func newStore(t *testing.T, clock *fixedClock) (*jobs.MemoryStore, string) {
	t.Helper()
	root := t.TempDir()
	return jobs.NewMemoryStore(root, jobs.WithClock(clock.Now)), root
}

func TestSweepExpiredUsesFinishedThenCreated(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &fixedClock{now: start}
	store, root := newStore(t, clock)
	ctx := context.Background()

	// Created long ago, finished recently: kept.
	recentFinish, err := store.Create(ctx, jobs.Request{URL: "https://example.com/a"})
	require.NoError(t, err)
	// Created long ago, still running: expired by created_at.
	stuck, err := store.Create(ctx, jobs.Request{URL: "https://example.com/b"})
	require.NoError(t, err)
	// Finished long ago: expired.
	oldFinish, err := store.Create(ctx, jobs.Request{URL: "https://example.com/c"})
	require.NoError(t, err)
	writeFile(t, filepath.Join(root, oldFinish.ID(), "c.mp4"), 8)
	writeFile(t, jobs.ArchivePath(root, oldFinish.ID()), 8)

	clock.now = start.Add(time.Hour)
	oldFinish.MarkDone()
	clock.now = start.Add(7 * time.Hour)
	recentFinish.MarkDone()

	result := SweepExpired(ctx, store, 6*time.Hour, start.Add(7*time.Hour+30*time.Minute), logging.NewNop())
	assert.ElementsMatch(t, []string{stuck.ID(), oldFinish.ID()}, result.Removed)
	assert.Empty(t, result.Errors)

	_, ok := store.Get(recentFinish.ID())
	assert.True(t, ok, "recently finished job should survive")
	assert.True(t, stuck.CancelRequested(), "swept running job should be cancelled")
	assert.NoDirExists(t, filepath.Join(root, oldFinish.ID()))
	assert.NoFileExists(t, jobs.ArchivePath(root, oldFinish.ID()))
}

func TestSweepExpiredDisabledWithoutRetention(t *testing.T) {
	clock := &fixedClock{now: time.Now()}
	store, _ := newStore(t, clock)
	_, err := store.Create(context.Background(), jobs.Request{URL: "https://example.com"})
	require.NoError(t, err)

	result := SweepExpired(context.Background(), store, 0, clock.now.Add(1000*time.Hour), logging.NewNop())
	assert.Empty(t, result.Removed)
	assert.Equal(t, 1, store.Len())
}

func TestCleanOrphanedSkipsKnownAndRecent(t *testing.T) {
	clock := &fixedClock{now: time.Now()}
	store, root := newStore(t, clock)
	known, err := store.Create(context.Background(), jobs.Request{URL: "https://example.com"})
	require.NoError(t, err)

	old := time.Now().Add(-10 * time.Hour)
	paths := map[string]string{
		"known":       filepath.Join(root, known.ID()),
		"orphanDir":   filepath.Join(root, "deadbeef"),
		"orphanZip":   filepath.Join(root, "cafef00d.zip"),
		"recentDir":   filepath.Join(root, "0badf00d"),
		"strangeFile": filepath.Join(root, "notes.txt"),
	}
	writeFile(t, filepath.Join(paths["known"], "k.mp4"), 1)
	writeFile(t, filepath.Join(paths["orphanDir"], "o.mp4"), 1)
	writeFile(t, paths["orphanZip"], 1)
	writeFile(t, filepath.Join(paths["recentDir"], "r.mp4"), 1)
	writeFile(t, paths["strangeFile"], 1)
	for _, key := range []string{"known", "orphanDir", "orphanZip", "strangeFile"} {
		require.NoError(t, os.Chtimes(paths[key], old, old))
	}

	result := CleanOrphaned(context.Background(), root, store, 6*time.Hour, time.Now(), logging.NewNop())
	assert.ElementsMatch(t, []string{paths["orphanDir"], paths["orphanZip"]}, result.Orphans)
	assert.DirExists(t, paths["known"])
	assert.DirExists(t, paths["recentDir"])
	assert.FileExists(t, paths["strangeFile"])
}

func TestSweepLeavesForeignDirectories(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fixedClock{now: start}
	store, root := newStore(t, clock)

	old := start.Add(-48 * time.Hour)
	foreign := []string{
		filepath.Join(root, "Photos"),
		filepath.Join(root, "DEADBEEF"),
		filepath.Join(root, "a1b2c3d4-old"),
	}
	for _, dir := range foreign {
		writeFile(t, filepath.Join(dir, "wedding.jpg"), 1)
		require.NoError(t, os.Chtimes(dir, old, old))
	}
	backup := filepath.Join(root, "backup.zip")
	writeFile(t, backup, 1)
	require.NoError(t, os.Chtimes(backup, old, old))
	orphan := filepath.Join(root, "deadbeef")
	writeFile(t, filepath.Join(orphan, "o.mp4"), 1)
	require.NoError(t, os.Chtimes(orphan, old, old))

	sweeper := NewSweeper(store, SweeperOptions{
		Root:         root,
		Retention:    time.Hour,
		Interval:     time.Hour,
		SweepOrphans: true,
		Clock:        func() time.Time { return start },
	}, logging.NewNop())
	result := sweeper.SweepOnce(context.Background())

	assert.Equal(t, []string{orphan}, result.Orphans)
	assert.NoDirExists(t, orphan)
	for _, dir := range foreign {
		assert.FileExists(t, filepath.Join(dir, "wedding.jpg"))
	}
	assert.FileExists(t, backup)
}

func TestCleanAllEmptiesRootAndStore(t *testing.T) {
	clock := &fixedClock{now: time.Now()}
	store, root := newStore(t, clock)
	record, err := store.Create(context.Background(), jobs.Request{URL: "https://example.com"})
	require.NoError(t, err)
	writeFile(t, filepath.Join(root, record.ID(), "v.mp4"), 32)
	writeFile(t, filepath.Join(root, "stray.zip"), 32)

	cleared, err := CleanAll(store, root, logging.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)
	assert.Equal(t, 0, store.Len())
	assert.True(t, record.CancelRequested())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.DirExists(t, root)
}

func TestListLocalFiles(t *testing.T) {
	root := t.TempDir()
	older := time.Now().Add(-time.Hour)
	writeFile(t, filepath.Join(root, "aaaa1111", "first.mp4"), 10)
	require.NoError(t, os.Chtimes(filepath.Join(root, "aaaa1111", "first.mp4"), older, older))
	writeFile(t, filepath.Join(root, "bbbb2222.zip"), 20)
	writeFile(t, filepath.Join(root, "aaaa1111", "nested", "deep.mp4"), 5)
	writeFile(t, filepath.Join(root, "readme.txt"), 1)

	files, err := ListLocalFiles(root)
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, "bbbb2222.zip", files[0].Name)
	assert.Equal(t, "bbbb2222", files[0].JobID)
	assert.Equal(t, "bbbb2222.zip", files[0].Path)
	assert.Equal(t, int64(20), files[0].Size)

	assert.Equal(t, "first.mp4", files[1].Name)
	assert.Equal(t, "aaaa1111/first.mp4", files[1].Path)
	assert.Equal(t, "aaaa1111", files[1].JobID)
	assert.InDelta(t, float64(older.Unix()), files[1].MTime, 1)

	missing, err := ListLocalFiles(filepath.Join(root, "absent"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestDiskUsageCountsDownloads(t *testing.T) {
	root := filepath.Join(t.TempDir(), "downloads")
	usage, err := DiskUsage(root)
	require.NoError(t, err)
	assert.Zero(t, usage.DownloadsSize)
	assert.Greater(t, usage.Total, uint64(0))

	writeFile(t, filepath.Join(root, "j1", "a.bin"), 100)
	writeFile(t, filepath.Join(root, "j2.zip"), 50)
	usage, err = DiskUsage(root)
	require.NoError(t, err)
	assert.Equal(t, int64(150), usage.DownloadsSize)
}

func TestSweeperSweepOnce(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fixedClock{now: start}
	store, root := newStore(t, clock)
	record, err := store.Create(context.Background(), jobs.Request{URL: "https://example.com"})
	require.NoError(t, err)
	record.MarkDone()

	sweeper := NewSweeper(store, SweeperOptions{
		Root:         root,
		Retention:    time.Hour,
		Interval:     time.Hour,
		SweepOrphans: true,
		Clock:        func() time.Time { return start.Add(30 * time.Minute) },
	}, logging.NewNop())
	assert.Empty(t, sweeper.SweepOnce(context.Background()).Removed)

	sweeper.opts.Clock = func() time.Time { return start.Add(2 * time.Hour) }
	result := sweeper.SweepOnce(context.Background())
	assert.Equal(t, []string{record.ID()}, result.Removed)
	assert.Equal(t, 0, store.Len())
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	store := jobs.NewMemoryStore(t.TempDir())
	sweeper := NewSweeper(store, SweeperOptions{Retention: time.Hour, Interval: time.Millisecond}, logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
