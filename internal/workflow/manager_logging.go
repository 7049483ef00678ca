package workflow

import (
	"context"
	"log/slog"

	"mediagrab/internal/logging"
)

// jobLogger tags the manager logger with the job and parent ids carried by ctx.
func (m *Manager) jobLogger(ctx context.Context) *slog.Logger {
	return logging.WithContext(ctx, m.logger)
}
