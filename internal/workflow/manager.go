package workflow

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mediagrab/internal/config"
	"mediagrab/internal/engine"
	"mediagrab/internal/jobs"
	"mediagrab/internal/logging"
)

// Manager coordinates job execution against the extraction engine.
type Manager struct {
	settings settings
	store    jobs.Store
	engine   engine.Engine
	lister   engine.Lister
	logger   *slog.Logger
	slots    chan struct{}
	slotPoll time.Duration

	active  atomic.Int64
	waiting atomic.Int64

	mu      sync.RWMutex
	running bool
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastJob string
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithLister overrides the playlist enumerator chosen from configuration.
func WithLister(lister engine.Lister) ManagerOption {
	return func(m *Manager) {
		if lister != nil {
			m.lister = lister
		}
	}
}

// WithSlotPollInterval sets how often a job waiting for an engine slot
// checks its cancel flag.
func WithSlotPollInterval(interval time.Duration) ManagerOption {
	return func(m *Manager) {
		if interval > 0 {
			m.slotPoll = interval
		}
	}
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, store jobs.Store, eng engine.Engine, logger *slog.Logger, opts ...ManagerOption) *Manager {
	s := settingsFromConfig(cfg)
	m := &Manager{
		settings: s,
		store:    store,
		engine:   eng,
		lister:   listerFor(s, eng),
		logger:   logging.NewComponentLogger(logger, "workflow"),
		slotPoll: defaultSlotPoll,
	}
	if s.maxConcurrent > 0 {
		m.slots = make(chan struct{}, s.maxConcurrent)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}
