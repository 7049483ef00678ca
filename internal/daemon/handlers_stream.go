package daemon

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"mediagrab/internal/jobs"
	"mediagrab/internal/logging"
)

// handleProgress streams a job's events as server-sent events: a progress
// snapshot, every logged event in order, then a synthetic done frame.
func (s *apiServer) handleProgress(w http.ResponseWriter, r *http.Request) {
	record, ok := s.daemon.store.Get(mux.Vars(r)["job_id"])
	if !ok {
		s.writeError(w, http.StatusNotFound, jobNotFound)
		return
	}

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	logger := logging.WithContext(ctx, s.logger)
	send := func(event jobs.Event) bool {
		if err := writeEvent(w, event); err != nil {
			logger.Debug("progress stream write failed", logging.Error(err))
			return false
		}
		_ = rc.Flush()
		return true
	}

	if !send(jobs.Event{Type: jobs.EventProgress, Data: record.Snapshot().ProgressData()}) {
		return
	}

	cursor := record.Events().Cursor()
	for {
		events, closed, err := cursor.Next(ctx)
		if err != nil {
			return
		}
		for _, event := range events {
			if !send(event) {
				return
			}
		}
		if closed {
			break
		}
	}

	var done jobs.DoneData
	if record.Deleted() {
		done = jobs.DoneData{Status: jobs.StatusCancelled, Filename: record.Snapshot().Filename}
	} else {
		select {
		case <-record.DoneCh():
		case <-ctx.Done():
			return
		}
		snap := record.Snapshot()
		done = jobs.DoneData{Status: snap.Status, Filename: snap.Filename}
	}
	send(jobs.Event{Type: jobs.EventDone, Data: done})
}

func writeEvent(w io.Writer, event jobs.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
