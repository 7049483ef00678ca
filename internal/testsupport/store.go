package testsupport

import (
	"testing"

	"mediagrab/internal/config"
	"mediagrab/internal/jobs"
	"mediagrab/internal/journal"
)

// MustOpenJournal opens the job journal for tests and registers cleanup.
func MustOpenJournal(t testing.TB, cfg *config.Config) *journal.Store {
	t.Helper()

	store, err := journal.Open(cfg.JournalPath())
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// NewMemoryStore returns an empty job store rooted at the config's download
// directory.
func NewMemoryStore(cfg *config.Config, opts ...jobs.Option) *jobs.MemoryStore {
	return jobs.NewMemoryStore(cfg.Paths.DownloadDir, opts...)
}
