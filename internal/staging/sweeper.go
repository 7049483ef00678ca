package staging

import (
	"context"
	"log/slog"
	"time"

	"mediagrab/internal/jobs"
	"mediagrab/internal/logging"
)

// SweeperOptions configures a Sweeper.
type SweeperOptions struct {
	Root         string
	Retention    time.Duration
	Interval     time.Duration
	SweepOrphans bool
	// Clock overrides time.Now.
	Clock func() time.Time
}

// Sweeper periodically deletes expired jobs and orphaned downloads.
type Sweeper struct {
	store  jobs.Store
	opts   SweeperOptions
	logger *slog.Logger
}

// NewSweeper constructs a sweeper over store.
func NewSweeper(store jobs.Store, opts SweeperOptions, logger *slog.Logger) *Sweeper {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Sweeper{
		store:  store,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "sweeper"),
	}
}

// Run sweeps immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	if s.opts.Interval <= 0 || s.opts.Retention <= 0 {
		s.logger.Info("cleanup sweeper disabled",
			logging.Duration("interval", s.opts.Interval),
			logging.Duration("retention", s.opts.Retention),
		)
		return
	}
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	for {
		s.SweepOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SweepOnce runs one pass and returns its combined result.
func (s *Sweeper) SweepOnce(ctx context.Context) CleanupResult {
	now := s.opts.Clock()
	result := SweepExpired(ctx, s.store, s.opts.Retention, now, s.logger)
	if s.opts.SweepOrphans {
		orphans := CleanOrphaned(ctx, s.opts.Root, s.store, s.opts.Retention, now, s.logger)
		result.Orphans = append(result.Orphans, orphans.Orphans...)
		result.Errors = append(result.Errors, orphans.Errors...)
	}
	if len(result.Removed) > 0 || len(result.Orphans) > 0 || len(result.Errors) > 0 {
		s.logger.Info("cleanup sweep complete",
			logging.Int("removed_jobs", len(result.Removed)),
			logging.Int("removed_orphans", len(result.Orphans)),
			logging.Int("errors", len(result.Errors)),
			logging.String(logging.FieldEventType, "cleanup_sweep"),
		)
	}
	return result
}
