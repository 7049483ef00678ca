package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mediagrab/internal/jobs"
	"mediagrab/internal/logging"
)

const defaultSendTimeout = 10 * time.Second

// ObserverOptions selects which terminal states produce alerts.
type ObserverOptions struct {
	OnDone  bool
	OnError bool
	// Timeout bounds each send. Zero uses a 10s default.
	Timeout time.Duration
}

// Observer turns job store updates into notifications.
type Observer struct {
	svc    Service
	opts   ObserverOptions
	logger *slog.Logger

	mu   sync.Mutex
	sent map[string]struct{}
	wg   sync.WaitGroup
}

// NewObserver returns a jobs.Observer that notifies svc.
func NewObserver(svc Service, opts ObserverOptions, logger *slog.Logger) *Observer {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultSendTimeout
	}
	return &Observer{
		svc:    svc,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "notifications"),
		sent:   make(map[string]struct{}),
	}
}

// OnCreate implements jobs.Observer.
func (o *Observer) OnCreate(jobs.Job) {}

// OnUpdate implements jobs.Observer.
func (o *Observer) OnUpdate(job jobs.Job) {
	var send func(context.Context, jobs.Job) error
	switch {
	case job.Status == jobs.StatusDone && o.opts.OnDone:
		send = o.svc.NotifyJobCompleted
	case job.Status == jobs.StatusError && o.opts.OnError:
		send = o.svc.NotifyJobFailed
	default:
		return
	}

	o.mu.Lock()
	if _, ok := o.sent[job.ID]; ok {
		o.mu.Unlock()
		return
	}
	o.sent[job.ID] = struct{}{}
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), o.opts.Timeout)
		defer cancel()
		if err := send(ctx, job); err != nil {
			logging.WarnWithContext(o.logger, "notification failed", "notification_failed",
				logging.String(logging.FieldJobID, job.ID),
				logging.String("status", string(job.Status)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
				logging.String(logging.FieldImpact, "no alert delivered for this job"),
			)
		}
	}()
}

// OnDelete implements jobs.Observer.
func (o *Observer) OnDelete(id string) {
	o.mu.Lock()
	delete(o.sent, id)
	o.mu.Unlock()
}

// Wait blocks until in-flight sends finish.
func (o *Observer) Wait() {
	o.wg.Wait()
}
