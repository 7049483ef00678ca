package jobs

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Request defaults applied when the client omits a field.
const (
	DefaultType        = "video"
	DefaultQuality     = "1080p"
	DefaultAudioFormat = "mp3"
	DefaultVideoFormat = "mp4"
)

// Request kinds.
const (
	TypeVideo = "video"
	TypeAudio = "audio"
)

// MaxActiveProgress caps progress for any job that has not reached done.
const MaxActiveProgress = 99.9

var (
	// ErrMissingURL is returned when a request carries no URL.
	ErrMissingURL = errors.New("url is required")
	// ErrDeleted is returned when a mutation targets a record that was removed.
	ErrDeleted = errors.New("job deleted")
)

// LogLevel classifies a job log entry.
type LogLevel string

const (
	LevelInfo  LogLevel = "info"
	LevelOK    LogLevel = "ok"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// LogEntry is one line of a job's human-readable log.
type LogEntry struct {
	Time    string   `json:"time"`
	Message string   `json:"msg"`
	Level   LogLevel `json:"level"`
}

// Request describes a download submitted by a client.
type Request struct {
	URL         string
	Type        string
	Quality     string
	AudioFormat string
	VideoFormat string
	Playlist    bool
	// ParentID and Title are set by the playlist expander for child jobs.
	ParentID string
	Title    string
}

// WithDefaults fills blank fields with the request defaults.
func (r Request) WithDefaults() Request {
	r.URL = strings.TrimSpace(r.URL)
	r.Type = strings.ToLower(strings.TrimSpace(r.Type))
	if r.Type == "" {
		r.Type = DefaultType
	}
	if r.Quality = strings.TrimSpace(r.Quality); r.Quality == "" {
		r.Quality = DefaultQuality
	}
	if r.AudioFormat = strings.TrimSpace(r.AudioFormat); r.AudioFormat == "" {
		r.AudioFormat = DefaultAudioFormat
	}
	if r.VideoFormat = strings.TrimSpace(r.VideoFormat); r.VideoFormat == "" {
		r.VideoFormat = DefaultVideoFormat
	}
	return r
}

// Validate reports request errors that prevent a job from being created.
func (r Request) Validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return ErrMissingURL
	}
	switch r.Type {
	case "", TypeVideo, TypeAudio:
		return nil
	default:
		return fmt.Errorf("unsupported type %q", r.Type)
	}
}

// Params holds the immutable request parameters of a job.
type Params struct {
	URL         string `json:"url"`
	Type        string `json:"type"`
	Quality     string `json:"quality"`
	AudioFormat string `json:"audio_fmt"`
	VideoFormat string `json:"video_fmt"`
	Playlist    bool   `json:"playlist"`
	ParentID    string `json:"parent_id,omitempty"`
}

// Job is the serializable state of a record.
type Job struct {
	ID       string  `json:"id"`
	Status   Status  `json:"status"`
	Progress float64 `json:"progress"`
	Speed    string  `json:"speed"`
	ETA      string  `json:"eta"`
	Filename string  `json:"filename"`
	Filepath string  `json:"filepath"`
	Title    string  `json:"title"`
	Params
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Error      string     `json:"error"`
	Log        []LogEntry `json:"log"`
}

// ReferenceTime returns FinishedAt when set, otherwise CreatedAt.
func (j Job) ReferenceTime() time.Time {
	if j.FinishedAt != nil {
		return *j.FinishedAt
	}
	return j.CreatedAt
}

// ProgressData returns the progress event payload for the job.
func (j Job) ProgressData() ProgressData {
	return ProgressData{
		Status:   j.Status,
		Progress: j.Progress,
		Speed:    j.Speed,
		ETA:      j.ETA,
		Filename: j.Filename,
		Title:    j.Title,
	}
}

func (j Job) clone() Job {
	if j.Log != nil {
		entries := make([]LogEntry, len(j.Log))
		copy(entries, j.Log)
		j.Log = entries
	}
	if j.FinishedAt != nil {
		finished := *j.FinishedAt
		j.FinishedAt = &finished
	}
	return j
}

// Record is a live job: its state, its event log, a cancel flag and a done
// sentinel. All state changes go through Apply so readers never observe torn
// fields and the lifecycle invariants hold.
type Record struct {
	id       string
	mu       sync.RWMutex
	job      Job
	events   *EventLog
	cancel   atomic.Bool
	done     bool
	deleted  bool
	doneCh   chan struct{}
	notify   func(Job)
	clock    func() time.Time
	doneOnce sync.Once
}

func newRecord(job Job, clock func() time.Time) *Record {
	if clock == nil {
		clock = time.Now
	}
	if job.Log == nil {
		job.Log = []LogEntry{}
	}
	return &Record{
		id:     job.ID,
		job:    job,
		events: NewEventLog(),
		doneCh: make(chan struct{}),
		clock:  clock,
	}
}

// ID returns the immutable job identifier.
func (r *Record) ID() string {
	return r.id
}

// Snapshot returns a copy of the current job state.
func (r *Record) Snapshot() Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.job.clone()
}

// Status returns the current status.
func (r *Record) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.job.Status
}

// Events returns the record's event log.
func (r *Record) Events() *EventLog {
	return r.events
}

// RequestCancel sets the cooperative cancel flag.
func (r *Record) RequestCancel() {
	r.cancel.Store(true)
}

// CancelRequested reports whether cancellation was requested.
func (r *Record) CancelRequested() bool {
	return r.cancel.Load()
}

// Done reports whether the worker has finished with the record.
func (r *Record) Done() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.done
}

// DoneCh is closed once MarkDone runs.
func (r *Record) DoneCh() <-chan struct{} {
	return r.doneCh
}

// Deleted reports whether the record was removed from its store.
func (r *Record) Deleted() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.deleted
}

// Apply mutates the job under the record lock. Identity, request parameters
// and creation time are restored after fn runs; progress never decreases and
// stays below 100 until done; the log never shrinks; FinishedAt is set once.
// A status change that CanTransition rejects leaves the record untouched.
func (r *Record) Apply(fn func(*Job)) error {
	r.mu.Lock()
	if r.deleted {
		r.mu.Unlock()
		return ErrDeleted
	}
	prev := r.job
	next := prev.clone()
	fn(&next)

	if next.Status != prev.Status && !CanTransition(prev.Status, next.Status) {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev.Status, next.Status)
	}
	next.ID = prev.ID
	next.Params = prev.Params
	next.CreatedAt = prev.CreatedAt
	if prev.FinishedAt != nil {
		next.FinishedAt = prev.FinishedAt
	}
	if len(next.Log) < len(prev.Log) {
		next.Log = prev.Log
	}
	if next.Progress < prev.Progress {
		next.Progress = prev.Progress
	}
	if next.Status != StatusDone && next.Progress > MaxActiveProgress {
		next.Progress = MaxActiveProgress
	}
	if next.Progress > 100 {
		next.Progress = 100
	}
	if prev.Status == StatusDownloading && next.Status != StatusDownloading {
		next.Speed = ""
		next.ETA = ""
	}
	r.job = next
	snapshot := next.clone()
	notify := r.notify
	r.mu.Unlock()

	if notify != nil {
		notify(snapshot)
	}
	return nil
}

// Transition moves the job to status. Moving to the current status is a no-op.
func (r *Record) Transition(status Status) error {
	if r.Status() == status {
		return nil
	}
	return r.Apply(func(j *Job) { j.Status = status })
}

// Emit appends an event to the record's log.
func (r *Record) Emit(eventType EventType, data any) {
	r.events.Append(Event{Type: eventType, Data: data})
}

// PushProgress emits a progress event built from the current state.
func (r *Record) PushProgress() {
	r.Emit(EventProgress, r.Snapshot().ProgressData())
}

// AppendLog records a log line on the job and emits it as a log event.
func (r *Record) AppendLog(level LogLevel, message string) {
	entry := LogEntry{Time: r.clock().Format("15:04:05"), Message: message, Level: level}
	if err := r.Apply(func(j *Job) { j.Log = append(j.Log, entry) }); err != nil {
		return
	}
	r.Emit(EventLogLine, entry)
}

// MarkDone stamps FinishedAt, sets the done sentinel and closes the event log.
// Only the first call has an effect.
func (r *Record) MarkDone() {
	r.doneOnce.Do(func() {
		now := r.clock()
		r.mu.Lock()
		if !r.deleted && r.job.FinishedAt == nil {
			r.job.FinishedAt = &now
		}
		r.done = true
		deleted := r.deleted
		snapshot := r.job.clone()
		notify := r.notify
		r.mu.Unlock()

		r.events.Close()
		close(r.doneCh)
		if notify != nil && !deleted {
			notify(snapshot)
		}
	})
}

func (r *Record) markDeleted() {
	r.cancel.Store(true)
	r.mu.Lock()
	r.deleted = true
	r.notify = nil
	r.mu.Unlock()
	r.events.Close()
}
