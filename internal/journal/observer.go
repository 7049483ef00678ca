package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mediagrab/internal/jobs"
	"mediagrab/internal/logging"
)

const writeTimeout = 5 * time.Second

type persisted struct {
	status   jobs.Status
	logLen   int
	title    string
	filepath string
	finished bool
}

// Observer mirrors job store mutations into the journal. Progress ticks that
// change nothing but counters are not written; status, title, log, artifact
// and completion changes are.
type Observer struct {
	store  *Store
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]persisted
}

// NewObserver returns a jobs.Observer writing to store.
func NewObserver(store *Store, logger *slog.Logger) *Observer {
	return &Observer{
		store:  store,
		logger: logging.NewComponentLogger(logger, "journal"),
		seen:   make(map[string]persisted),
	}
}

// OnCreate persists a new record.
func (o *Observer) OnCreate(job jobs.Job) {
	o.save(job, true)
}

// OnUpdate persists significant changes to a record.
func (o *Observer) OnUpdate(job jobs.Job) {
	o.save(job, false)
}

// OnDelete removes the record from the journal.
func (o *Observer) OnDelete(id string) {
	o.mu.Lock()
	delete(o.seen, id)
	o.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := o.store.Remove(ctx, id); err != nil {
		logging.WarnWithContext(o.logger, "journal remove failed", "journal_remove_failed",
			logging.String(logging.FieldJobID, id),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state_dir permissions and free space"),
			logging.String(logging.FieldImpact, "deleted job may reappear after restart"),
		)
	}
}

func (o *Observer) save(job jobs.Job, force bool) {
	state := persisted{
		status:   job.Status,
		logLen:   len(job.Log),
		title:    job.Title,
		filepath: job.Filepath,
		finished: job.FinishedAt != nil,
	}
	o.mu.Lock()
	prev, ok := o.seen[job.ID]
	if !force && ok && prev == state {
		o.mu.Unlock()
		return
	}
	o.seen[job.ID] = state
	o.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := o.store.Save(ctx, job); err != nil {
		logging.WarnWithContext(o.logger, "journal write failed", "journal_write_failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.String(logging.FieldStatus, string(job.Status)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state_dir permissions and free space"),
			logging.String(logging.FieldImpact, "job state may be stale after restart"),
		)
	}
}
