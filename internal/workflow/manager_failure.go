package workflow

import (
	"errors"
	"log/slog"

	"mediagrab/internal/jobs"
	"mediagrab/internal/logging"
	"mediagrab/internal/services"
)

// fail records err on the job as a cancellation or an error. Deleted jobs
// are left alone.
func (m *Manager) fail(record *jobs.Record, logger *slog.Logger, err error) {
	if record.Deleted() {
		logger.Debug("job deleted while running", logging.Error(err))
		return
	}

	status := services.FailureStatus(err)
	if status == jobs.StatusCancelled {
		if applyErr := record.Transition(jobs.StatusCancelled); applyErr != nil {
			m.logApplyFailure(logger, applyErr)
			return
		}
		record.AppendLog(jobs.LevelInfo, "Cancelled")
		logger.Info("job cancelled",
			logging.String(logging.FieldEventType, "job_cancelled"),
			logging.String("reason", err.Error()),
		)
		return
	}

	message := services.UserMessage(err)
	applyErr := record.Apply(func(j *jobs.Job) {
		j.Status = jobs.StatusError
		j.Error = message
	})
	if applyErr != nil {
		m.logApplyFailure(logger, applyErr)
		return
	}
	record.AppendLog(jobs.LevelError, "Error: "+message)
	logging.ErrorWithContext(logger, "job failed", "job_failed",
		logging.String("error_message", message),
		logging.String(logging.FieldErrorHint, failureHint(err)),
		logging.Error(err),
	)
}

func (m *Manager) logApplyFailure(logger *slog.Logger, err error) {
	if errors.Is(err, jobs.ErrDeleted) {
		return
	}
	logging.WarnWithContext(logger, "failed to record job failure", "job_update_failed",
		logging.Error(err),
		logging.String(logging.FieldImpact, "job status may be stale"),
	)
}

func failureHint(err error) string {
	switch {
	case errors.Is(err, services.ErrNoArtifact):
		return "check the download directory and engine output template"
	case errors.Is(err, services.ErrExternalTool):
		return "check the URL and run the engine by hand with the same options"
	case errors.Is(err, services.ErrTransient):
		return "check disk space and permissions on the download directory"
	default:
		return "check logs for details"
	}
}

func (m *Manager) setLastError(id string, err error) {
	m.mu.Lock()
	m.lastErr = err
	m.lastJob = id
	m.mu.Unlock()
}
