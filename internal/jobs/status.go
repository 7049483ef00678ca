package jobs

import (
	"errors"
	"strings"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusQueued             Status = "queued"
	StatusFetching           Status = "fetching"
	StatusProcessingPlaylist Status = "processing_playlist"
	StatusDownloading        Status = "downloading"
	StatusMerging            Status = "merging"
	StatusDone               Status = "done"
	StatusError              Status = "error"
	StatusCancelled          Status = "cancelled"
)

// ErrInvalidTransition is returned when a status change is not permitted.
var ErrInvalidTransition = errors.New("invalid status transition")

var allStatuses = []Status{
	StatusQueued,
	StatusFetching,
	StatusProcessingPlaylist,
	StatusDownloading,
	StatusMerging,
	StatusDone,
	StatusError,
	StatusCancelled,
}

var terminalStatuses = map[Status]struct{}{
	StatusDone:      {},
	StatusError:     {},
	StatusCancelled: {},
}

// Forward edges only. error and cancelled are reachable from every
// non-terminal state and are handled in CanTransition.
var forwardTransitions = map[Status][]Status{
	StatusQueued:             {StatusFetching},
	StatusFetching:           {StatusProcessingPlaylist, StatusDownloading, StatusMerging},
	StatusProcessingPlaylist: {StatusDone},
	StatusDownloading:        {StatusMerging},
	StatusMerging:            {StatusDone},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// CanTransition reports whether a job may move from one status to another.
// Staying in the same status is not a transition and returns false.
func CanTransition(from, to Status) bool {
	if from == to || from.IsTerminal() {
		return false
	}
	if to == StatusError || to == StatusCancelled {
		return true
	}
	for _, next := range forwardTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
