package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"mediagrab/internal/config"
	"mediagrab/internal/deps"
	"mediagrab/internal/engine"
	"mediagrab/internal/jobs"
	"mediagrab/internal/journal"
	"mediagrab/internal/logging"
	"mediagrab/internal/metrics"
	"mediagrab/internal/notifications"
	"mediagrab/internal/preflight"
	"mediagrab/internal/staging"
	"mediagrab/internal/workflow"
)

// Daemon wires the job store, workflow manager, sweeper and HTTP API into a
// single lifecycle and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *jobs.MemoryStore
	journal  *journal.Store
	metrics  *metrics.Metrics
	engine   engine.Engine
	deps     deps.Report
	workflow *workflow.Manager
	sweeper  *staging.Sweeper
	api      *apiServer
	notifier *notifications.Observer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	JobCount     int
	JournalPath  string
	LockFilePath string
	Workflow     workflow.StatusSummary
	Dependencies []deps.Status
}

// Option customizes a Daemon.
type Option func(*options)

type options struct {
	engine      engine.Engine
	report      *deps.Report
	managerOpts []workflow.ManagerOption
	notifier    notifications.Service
}

// WithEngine replaces the yt-dlp adapter.
func WithEngine(eng engine.Engine) Option {
	return func(o *options) {
		o.engine = eng
	}
}

// WithDependencyReport skips binary discovery and uses report instead.
func WithDependencyReport(report deps.Report) Option {
	return func(o *options) {
		o.report = &report
	}
}

// WithManagerOptions forwards options to the workflow manager.
func WithManagerOptions(opts ...workflow.ManagerOption) Option {
	return func(o *options) {
		o.managerOpts = append(o.managerOpts, opts...)
	}
}

// WithNotifier sends job alerts through svc regardless of the configured topic.
func WithNotifier(svc notifications.Service) Option {
	return func(o *options) {
		o.notifier = svc
	}
}

// New constructs a daemon. When the journal is enabled, previously recorded
// jobs are reloaded before New returns.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}

	var observers []jobs.Option
	if cfg.Metrics.Enabled {
		d.metrics = metrics.New()
		observers = append(observers, jobs.WithObserver(d.metrics))
	}
	if cfg.Journal.Enabled {
		db, err := journal.Open(cfg.JournalPath())
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		d.journal = db
		observers = append(observers, jobs.WithObserver(journal.NewObserver(db, logger)))
	}
	notifier := o.notifier
	if notifier == nil && cfg.Notifications.NtfyTopic != "" {
		notifier = notifications.NewService(cfg)
	}
	if notifier != nil {
		d.notifier = notifications.NewObserver(notifier, notifications.ObserverOptions{
			OnDone:  cfg.Notifications.OnDone,
			OnError: cfg.Notifications.OnError,
			Timeout: cfg.NotifyTimeout(),
		}, logger)
		observers = append(observers, jobs.WithObserver(d.notifier))
	}
	d.store = jobs.NewMemoryStore(cfg.Paths.DownloadDir, observers...)

	if d.journal != nil {
		result, err := d.journal.Recover(context.Background(), d.store, logger)
		if err != nil {
			_ = d.journal.Close()
			return nil, fmt.Errorf("recover journal: %w", err)
		}
		if d.metrics != nil {
			for _, record := range d.store.List() {
				d.metrics.Restore(record.Snapshot())
			}
		}
		d.logger.Info("journal loaded",
			logging.String(logging.FieldEventType, "journal_loaded"),
			logging.String("path", d.journal.Path()),
			logging.Int("restored", result.Restored),
			logging.Int("interrupted", result.Interrupted),
		)
	}

	if o.report != nil {
		d.deps = *o.report
	} else {
		d.deps = deps.Inspect(deps.Options{
			YtdlpBinary:  cfg.Engine.YtdlpBinary,
			FFmpegBinary: cfg.Engine.FFmpegBinary,
			JSRuntime:    cfg.Engine.JSRuntime,
		})
	}
	d.engine = o.engine
	if d.engine == nil {
		d.engine = engine.NewYtdlp(engine.YtdlpOptions{
			Binary:             cfg.Engine.YtdlpBinary,
			FFmpegLocation:     d.deps.FFmpegLocation,
			JSRuntime:          d.deps.JSRuntime.Name,
			AudioQuality:       cfg.Engine.AudioQuality,
			NoCheckCertificate: cfg.Engine.NoCheckCertificate,
			ProbeTimeout:       cfg.InfoTimeout(),
		})
	}

	d.workflow = workflow.NewManager(cfg, d.store, d.engine, logger, o.managerOpts...)
	d.sweeper = staging.NewSweeper(d.store, staging.SweeperOptions{
		Root:         cfg.Paths.DownloadDir,
		Retention:    cfg.RetentionWindow(),
		Interval:     cfg.SweepInterval(),
		SweepOrphans: cfg.Cleanup.SweepOrphans,
	}, logger)
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, then launches the workflow manager, the
// cleanup sweeper and the HTTP listener.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another mediagrab daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		cancel()
		d.workflow.Stop()
		_ = d.lock.Unlock()
		return err
	}
	d.cancel = cancel

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.sweeper.Run(runCtx)
	}()

	d.running.Store(true)
	d.logDependencies()
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.logPreflight(runCtx)
	}()
	d.logger.Info("mediagrab daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
		logging.String("download_dir", d.cfg.Paths.DownloadDir),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.workflow.Stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "a stale lock file may remain"),
		)
	}
	d.running.Store(false)
	d.logger.Info("mediagrab daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.notifier != nil {
		d.notifier.Wait()
	}
	if d.journal != nil {
		return d.journal.Close()
	}
	return nil
}

// Addr returns the address the API listens on, or "" before Start.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Store returns the live job store.
func (d *Daemon) Store() jobs.Store {
	return d.store
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		JobCount:     d.store.Len(),
		LockFilePath: d.lockPath,
		Workflow:     d.workflow.Status(),
		Dependencies: d.deps.Dependencies,
	}
	if d.journal != nil {
		status.JournalPath = d.journal.Path()
	}
	return status
}

func (d *Daemon) logDependencies() {
	for _, dep := range d.deps.Dependencies {
		if dep.Available {
			d.logger.Debug("dependency available",
				logging.String("dependency", dep.Name),
				logging.String("path", dep.Path),
			)
			continue
		}
		impact := "downloads will fail"
		if dep.Optional {
			impact = "some sites may fail to extract"
		}
		logging.WarnWithContext(d.logger, "dependency unavailable", "dependency_missing",
			logging.String("dependency", dep.Name),
			logging.String("detail", dep.Detail),
			logging.String(logging.FieldErrorHint, "install it or set its path in the [engine] config section"),
			logging.String(logging.FieldImpact, impact),
		)
	}
}

func (d *Daemon) logPreflight(ctx context.Context) {
	for _, result := range preflight.Failed(preflight.RunAll(ctx, d.cfg)) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run mediagrab status for details"),
		)
	}
}
