package jobs_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mediagrab/internal/jobs"
)

func drain(t *testing.T, cursor *jobs.Cursor) []jobs.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var out []jobs.Event
	for {
		batch, closed, err := cursor.Next(ctx)
		if err != nil {
			t.Fatalf("cursor next: %v", err)
		}
		if closed {
			return out
		}
		out = append(out, batch...)
	}
}

func TestCursorsReadEveryEventOnceInOrder(t *testing.T) {
	log := jobs.NewEventLog()
	early := log.Cursor()

	const total = 200
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			log.Append(jobs.Event{Type: jobs.EventProgress, Data: i})
		}
		log.Close()
	}()

	got := drain(t, early)
	wg.Wait()

	late := log.Cursor()
	replay := drain(t, late)

	for name, events := range map[string][]jobs.Event{"early": got, "late": replay} {
		if len(events) != total {
			t.Fatalf("%s cursor read %d events, want %d", name, len(events), total)
		}
		for i, event := range events {
			if event.Data.(int) != i {
				t.Fatalf("%s cursor event %d carried %v", name, i, event.Data)
			}
		}
	}
}

func TestCursorBlocksUntilAppend(t *testing.T) {
	log := jobs.NewEventLog()
	cursor := log.Cursor()

	result := make(chan []jobs.Event, 1)
	go func() {
		batch, _, _ := cursor.Next(context.Background())
		result <- batch
	}()

	select {
	case <-result:
		t.Fatal("Next returned before any event was appended")
	case <-time.After(50 * time.Millisecond):
	}

	log.Append(jobs.Event{Type: jobs.EventLogLine, Data: "hello"})
	select {
	case batch := <-result:
		if len(batch) != 1 || batch[0].Data != "hello" {
			t.Fatalf("unexpected batch %#v", batch)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not wake after append")
	}
}

func TestCursorHonorsContext(t *testing.T) {
	log := jobs.NewEventLog()
	cursor := log.Cursor()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, _, err := cursor.Next(ctx)
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Next ignored context cancellation")
	}
}

func TestAppendAfterCloseIsDropped(t *testing.T) {
	log := jobs.NewEventLog()
	log.Append(jobs.Event{Type: jobs.EventLogLine, Data: 1})
	log.Close()
	if log.Append(jobs.Event{Type: jobs.EventLogLine, Data: 2}) {
		t.Fatal("expected append after close to be rejected")
	}
	if log.Len() != 1 {
		t.Fatalf("expected 1 event, got %d", log.Len())
	}
}
