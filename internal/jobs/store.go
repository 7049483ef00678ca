package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no record exists for an id.
var ErrNotFound = errors.New("job not found")

// idLength is the number of characters kept from a generated UUID.
const idLength = 8

// Store holds live job records.
type Store interface {
	Create(ctx context.Context, req Request) (*Record, error)
	Get(id string) (*Record, bool)
	List() []*Record
	Delete(id string) error
	Clear() int
	Update(id string, fn func(*Job)) error
}

// Observer follows store mutations. Callbacks run synchronously on the
// mutating goroutine and must not call back into the store.
type Observer interface {
	OnCreate(job Job)
	OnUpdate(job Job)
	OnDelete(id string)
}

// Option customizes a MemoryStore.
type Option func(*MemoryStore)

// WithObserver registers an observer for store mutations.
func WithObserver(observer Observer) Option {
	return func(s *MemoryStore) {
		if observer != nil {
			s.observers = append(s.observers, observer)
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *MemoryStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator overrides job id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *MemoryStore) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// MemoryStore is a Store backed by a lock-guarded map. Deleting a record also
// removes its artifacts under root.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[string]*Record
	root      string
	observers []Observer
	clock     func() time.Time
	newID     func() string
}

// NewMemoryStore constructs an empty store whose artifacts live under root.
func NewMemoryStore(root string, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		records: make(map[string]*Record),
		root:    root,
		clock:   time.Now,
		newID:   func() string { return uuid.NewString()[:idLength] },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the download root.
func (s *MemoryStore) Root() string {
	return s.root
}

// Create registers a queued record for req.
func (s *MemoryStore) Create(ctx context.Context, req Request) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	id := s.newID()
	for attempts := 0; s.records[id] != nil; attempts++ {
		if attempts > 16 {
			s.mu.Unlock()
			return nil, fmt.Errorf("allocate job id: collision on %s", id)
		}
		id = s.newID()
	}
	job := Job{
		ID:     id,
		Status: StatusQueued,
		Title:  req.Title,
		Params: Params{
			URL:         req.URL,
			Type:        req.Type,
			Quality:     req.Quality,
			AudioFormat: req.AudioFormat,
			VideoFormat: req.VideoFormat,
			Playlist:    req.Playlist,
			ParentID:    req.ParentID,
		},
		CreatedAt: s.clock(),
	}
	record := newRecord(job, s.clock)
	record.notify = s.notifyUpdate
	s.records[id] = record
	s.mu.Unlock()

	for _, o := range s.observers {
		o.OnCreate(job.clone())
	}
	return record, nil
}

// Restore inserts a finished record loaded from persistent storage. The
// record is marked done and its event log is closed.
func (s *MemoryStore) Restore(job Job) (*Record, error) {
	if !ValidID(job.ID) {
		return nil, fmt.Errorf("restore job: invalid id %q", job.ID)
	}
	record := newRecord(job.clone(), s.clock)
	s.mu.Lock()
	if _, exists := s.records[job.ID]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("restore job %s: already present", job.ID)
	}
	s.records[job.ID] = record
	s.mu.Unlock()

	record.MarkDone()
	record.mu.Lock()
	record.notify = s.notifyUpdate
	record.mu.Unlock()
	return record, nil
}

// Get returns the record for id.
func (s *MemoryStore) Get(id string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	return record, ok
}

// List returns all records ordered by creation time, newest first.
func (s *MemoryStore) List() []*Record {
	s.mu.RLock()
	out := make([]*Record, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, record)
	}
	s.mu.RUnlock()

	created := make(map[*Record]time.Time, len(out))
	for _, record := range out {
		created[record] = record.Snapshot().CreatedAt
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := created[out[i]], created[out[j]]
		if ti.Equal(tj) {
			return out[i].ID() < out[j].ID()
		}
		return ti.After(tj)
	})
	return out
}

// Len returns the number of records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Delete cancels the record, removes its artifacts and drops it from the
// store. The record is removed even when artifact removal fails; that error
// is returned.
func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	record, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.records, id)
	s.mu.Unlock()

	record.markDeleted()
	for _, o := range s.observers {
		o.OnDelete(id)
	}
	if err := RemoveArtifacts(s.root, id); err != nil {
		return fmt.Errorf("remove artifacts for %s: %w", id, err)
	}
	return nil
}

// Clear cancels and drops every record without touching the filesystem and
// returns how many were removed.
func (s *MemoryStore) Clear() int {
	s.mu.Lock()
	removed := s.records
	s.records = make(map[string]*Record)
	s.mu.Unlock()

	for id, record := range removed {
		record.markDeleted()
		for _, o := range s.observers {
			o.OnDelete(id)
		}
	}
	return len(removed)
}

// Update applies fn to the record for id.
func (s *MemoryStore) Update(id string, fn func(*Job)) error {
	record, ok := s.Get(id)
	if !ok {
		return ErrNotFound
	}
	return record.Apply(fn)
}

func (s *MemoryStore) notifyUpdate(job Job) {
	for _, o := range s.observers {
		o.OnUpdate(job)
	}
}
