package jobs

import (
	"context"
	"sync"
)

// EventType names an entry in a job's event log.
type EventType string

const (
	EventProgress EventType = "progress"
	EventLogLine  EventType = "log"
	EventChildJob EventType = "child_job"
	// EventDone is synthesized by stream consumers once the log is closed.
	EventDone EventType = "done"
)

// Event is one entry in a job's event log. It marshals to the
// {"event": ..., "data": ...} frame clients expect.
type Event struct {
	Type EventType `json:"event"`
	Data any       `json:"data"`
}

// ProgressData is the payload of a progress event.
type ProgressData struct {
	Status   Status  `json:"status"`
	Progress float64 `json:"progress"`
	Speed    string  `json:"speed"`
	ETA      string  `json:"eta"`
	Filename string  `json:"filename"`
	Title    string  `json:"title"`
}

// ChildJobData announces a playlist child on its parent's log.
type ChildJobData struct {
	ID string `json:"id"`
}

// DoneData is the payload of the final event on a stream.
type DoneData struct {
	Status   Status `json:"status"`
	Filename string `json:"filename"`
}

// EventLog is an append-only event sequence with independent read cursors.
// Readers block on a condition variable until new events arrive or the log
// is closed.
type EventLog struct {
	mu     sync.Mutex
	cond   *sync.Cond
	events []Event
	closed bool
}

// NewEventLog returns an empty, open event log.
func NewEventLog() *EventLog {
	l := &EventLog{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Append adds an event and wakes waiting cursors. Events appended after
// Close are dropped and Append reports false.
func (l *EventLog) Append(event Event) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.events = append(l.events, event)
	l.cond.Broadcast()
	return true
}

// Close marks the log complete. It is safe to call more than once.
func (l *EventLog) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	l.cond.Broadcast()
}

// Closed reports whether Close has been called.
func (l *EventLog) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Len returns the number of events appended so far.
func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Snapshot returns a copy of every event appended so far.
func (l *EventLog) Snapshot() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Cursor returns a reader positioned at the first event.
func (l *EventLog) Cursor() *Cursor {
	return &Cursor{log: l}
}

// Cursor reads an EventLog in order. A cursor is owned by a single reader.
type Cursor struct {
	log  *EventLog
	next int
}

// Next blocks until at least one unread event exists, the log is closed, or
// ctx is done. It returns the unread events in append order and reports
// whether the log is closed with nothing left to read.
func (c *Cursor) Next(ctx context.Context) ([]Event, bool, error) {
	l := c.log
	stop := context.AfterFunc(ctx, func() {
		l.mu.Lock()
		l.cond.Broadcast()
		l.mu.Unlock()
	})
	defer stop()

	l.mu.Lock()
	defer l.mu.Unlock()
	for c.next >= len(l.events) && !l.closed {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		l.cond.Wait()
	}
	if c.next >= len(l.events) {
		return nil, true, nil
	}
	batch := make([]Event, len(l.events)-c.next)
	copy(batch, l.events[c.next:])
	c.next = len(l.events)
	return batch, false, nil
}

// Position returns the index of the next unread event.
func (c *Cursor) Position() int {
	return c.next
}
