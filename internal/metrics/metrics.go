// Package metrics exposes job lifecycle metrics in the Prometheus format.
//
// Metrics implements jobs.Observer so it follows the job store without the
// store knowing about it. Collectors live in a private registry served by
// Handler, which keeps tests isolated from the global default registry.
package metrics

import (
	"net/http"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mediagrab/internal/jobs"
)

const namespace = "mediagrab"

type trackedJob struct {
	status   jobs.Status
	finished bool
}

// Metrics tracks job counts, states and durations.
type Metrics struct {
	registry *prometheus.Registry

	mu      sync.Mutex
	tracked map[string]trackedJob

	jobsCreated   *prometheus.CounterVec
	jobsFinished  *prometheus.CounterVec
	jobsDeleted   prometheus.Counter
	jobsByStatus  *prometheus.GaugeVec
	jobDuration   *prometheus.HistogramVec
	artifactBytes prometheus.Histogram
}

// New creates the collectors and registers them, plus the Go runtime and
// process collectors, in a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tracked:  make(map[string]trackedJob),
	}

	m.jobsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_created_total",
			Help:      "Jobs accepted, by download type and role.",
		},
		[]string{"type", "role"},
	)
	m.jobsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Jobs that reached a terminal state, by status.",
		},
		[]string{"status"},
	)
	m.jobsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_deleted_total",
		Help:      "Jobs removed by clients or the cleanup sweeper.",
	})
	m.jobsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs",
			Help:      "Jobs currently held in the store, by status.",
		},
		[]string{"status"},
	)
	m.jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Time from job creation to its terminal state.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"status"},
	)
	m.artifactBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "artifact_size_bytes",
		Help:      "Size of finished download artifacts.",
		Buckets: []float64{
			1 << 20,   // 1MB
			10 << 20,  // 10MB
			100 << 20, // 100MB
			1 << 30,   // 1GB
			4 << 30,   // 4GB
		},
	})

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.jobsCreated,
		m.jobsFinished,
		m.jobsDeleted,
		m.jobsByStatus,
		m.jobDuration,
		m.artifactBytes,
	)
	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Restore accounts for a job loaded from the journal without counting it
// as newly created.
func (m *Metrics) Restore(job jobs.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracked[job.ID] = trackedJob{status: job.Status, finished: job.FinishedAt != nil}
	m.jobsByStatus.WithLabelValues(string(job.Status)).Inc()
}

// OnCreate implements jobs.Observer.
func (m *Metrics) OnCreate(job jobs.Job) {
	role := "single"
	switch {
	case job.ParentID != "":
		role = "child"
	case job.Playlist:
		role = "playlist"
	}
	m.jobsCreated.WithLabelValues(job.Type, role).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracked[job.ID] = trackedJob{status: job.Status}
	m.jobsByStatus.WithLabelValues(string(job.Status)).Inc()
}

// OnUpdate implements jobs.Observer.
func (m *Metrics) OnUpdate(job jobs.Job) {
	m.mu.Lock()
	prev, ok := m.tracked[job.ID]
	if !ok {
		m.mu.Unlock()
		return
	}
	if prev.status != job.Status {
		m.jobsByStatus.WithLabelValues(string(prev.status)).Dec()
		m.jobsByStatus.WithLabelValues(string(job.Status)).Inc()
		prev.status = job.Status
	}
	finishedNow := !prev.finished && job.FinishedAt != nil
	if finishedNow {
		prev.finished = true
	}
	m.tracked[job.ID] = prev
	m.mu.Unlock()

	if !finishedNow {
		return
	}
	m.jobsFinished.WithLabelValues(string(job.Status)).Inc()
	if elapsed := job.FinishedAt.Sub(job.CreatedAt).Seconds(); elapsed >= 0 {
		m.jobDuration.WithLabelValues(string(job.Status)).Observe(elapsed)
	}
	if job.Status == jobs.StatusDone && job.Filepath != "" {
		if info, err := os.Stat(job.Filepath); err == nil && info.Mode().IsRegular() {
			m.artifactBytes.Observe(float64(info.Size()))
		}
	}
}

// OnDelete implements jobs.Observer.
func (m *Metrics) OnDelete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.tracked[id]
	if !ok {
		return
	}
	delete(m.tracked, id)
	m.jobsByStatus.WithLabelValues(string(prev.status)).Dec()
	m.jobsDeleted.Inc()
}
