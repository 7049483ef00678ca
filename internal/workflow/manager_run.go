package workflow

import (
	"context"
	"errors"
	"time"

	"mediagrab/internal/jobs"
	"mediagrab/internal/logging"
	"mediagrab/internal/services"
)

// ErrNotRunning is returned by Submit when the manager is stopped.
var ErrNotRunning = errors.New("workflow not running")

// Start enables job submission. Jobs run under a context derived from ctx.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}
	m.runCtx, m.cancel = context.WithCancel(ctx)
	m.running = true
	m.logger.Info("workflow started",
		logging.String(logging.FieldEventType, "workflow_start"),
		logging.Int("max_concurrent", m.settings.maxConcurrent),
		logging.String("enumerator", m.settings.enumerator),
	)
	return nil
}

// Stop cancels running jobs and waits for their goroutines to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped", logging.String(logging.FieldEventType, "workflow_stop"))
}

// Submit creates a queued job for req and starts its worker goroutine. It
// returns as soon as the job is registered.
func (m *Manager) Submit(ctx context.Context, req jobs.Request) (*jobs.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.running {
		return nil, ErrNotRunning
	}
	record, err := m.store.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	m.wg.Add(1)
	go m.runJob(m.runCtx, record)
	return record, nil
}

// Wait blocks until every submitted job has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) runJob(ctx context.Context, record *jobs.Record) {
	defer m.wg.Done()
	m.active.Add(1)
	defer m.active.Add(-1)

	ctx = services.WithJobID(ctx, record.ID())
	logger := m.jobLogger(ctx)
	start := time.Now()
	err := m.execute(ctx, record, logger)
	m.finish(record, logger, err)
	if err != nil && !errors.Is(err, services.ErrCancelled) {
		m.setLastError(record.ID(), err)
	}
	logger.Debug("job goroutine exiting", logging.Duration("elapsed", time.Since(start)))
}

// acquireSlot blocks until an engine slot is free. The job stays queued
// while it waits; the cancel flag and ctx are checked every poll interval.
func (m *Manager) acquireSlot(ctx context.Context, cancelled func() bool) (func(), error) {
	if m.slots == nil {
		return func() {}, nil
	}
	m.waiting.Add(1)
	defer m.waiting.Add(-1)

	ticker := time.NewTicker(m.slotPoll)
	defer ticker.Stop()
	for {
		if cancelled() {
			return nil, services.Wrap(services.ErrCancelled, "queued", "acquire slot", "cancelled while waiting", nil)
		}
		select {
		case m.slots <- struct{}{}:
			return func() { <-m.slots }, nil
		case <-ctx.Done():
			return nil, services.Wrap(services.ErrCancelled, "queued", "acquire slot", "daemon shutting down", ctx.Err())
		case <-ticker.C:
		}
	}
}
