package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mediagrab/internal/jobs"
	"mediagrab/internal/logging"
)

// InterruptedMessage is stored on jobs that were still running when the
// previous daemon exited.
const InterruptedMessage = "Interrupted by daemon restart"

// RecoverResult summarizes a journal reload.
type RecoverResult struct {
	Restored    int
	Interrupted int
}

// Recover loads every journaled job into store. Jobs found in a non-terminal
// state are failed with InterruptedMessage and written back.
func (s *Store) Recover(ctx context.Context, store *jobs.MemoryStore, logger *slog.Logger) (RecoverResult, error) {
	logger = logging.NewComponentLogger(logger, "journal")
	var result RecoverResult

	list, err := s.List(ctx)
	if err != nil {
		return result, err
	}
	for _, job := range list {
		if !job.Status.IsTerminal() {
			now := time.Now()
			job.Status = jobs.StatusError
			job.Error = InterruptedMessage
			job.Speed, job.ETA = "", ""
			if job.FinishedAt == nil {
				job.FinishedAt = &now
			}
			job.Log = append(job.Log, jobs.LogEntry{
				Time:    now.Format("15:04:05"),
				Message: InterruptedMessage,
				Level:   jobs.LevelError,
			})
			if err := s.Save(ctx, job); err != nil {
				return result, fmt.Errorf("mark interrupted: %w", err)
			}
			result.Interrupted++
			logger.Info("job interrupted by restart",
				logging.String(logging.FieldJobID, job.ID),
				logging.String(logging.FieldEventType, "job_interrupted"),
			)
		}
		if _, err := store.Restore(job); err != nil {
			logging.WarnWithContext(logger, "journal restore skipped job", "journal_restore_skipped",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "job will not be listed"),
			)
			continue
		}
		result.Restored++
	}
	return result, nil
}
