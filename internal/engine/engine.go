package engine

import (
	"context"
	"errors"
	"time"
)

// ErrAborted is returned by Download when the hook asked the engine to stop.
var ErrAborted = errors.New("download aborted")

// ProgressStatus is the phase reported by a progress callback.
type ProgressStatus string

const (
	ProgressDownloading ProgressStatus = "downloading"
	ProgressFinished    ProgressStatus = "finished"
)

// Progress is one engine progress callback.
type Progress struct {
	Status          ProgressStatus
	DownloadedBytes int64
	TotalBytes      int64
	// BytesPerSecond is zero when the engine has no estimate yet.
	BytesPerSecond float64
	ETA            time.Duration
	Filename       string
}

// HookResult tells the engine whether to keep going.
type HookResult int

const (
	Continue HookResult = iota
	Abort
)

// Hook receives progress callbacks during Download.
type Hook func(Progress) HookResult

// MessageLevel classifies diagnostic output from the engine.
type MessageLevel string

const (
	MessageWarning MessageLevel = "warning"
	MessageError   MessageLevel = "error"
)

// MessageFunc receives warnings and errors printed by the engine.
type MessageFunc func(level MessageLevel, text string)

// Entry is one item of a playlist, or the media itself for single URLs.
type Entry struct {
	ID        string
	Title     string
	URL       string
	Thumbnail string
	Uploader  string
	// Duration in seconds, zero when unknown.
	Duration float64
}

// Info is the metadata resolved for a URL without downloading it.
type Info struct {
	Entry
	IsPlaylist bool
	Entries    []Entry
}

// ProbeOptions bounds a metadata probe.
type ProbeOptions struct {
	// Limit caps the number of playlist entries resolved. Zero means no cap.
	Limit int
	// NoPlaylist resolves only the video when the URL also names a playlist.
	NoPlaylist bool
}

// Request describes a single download.
type Request struct {
	URL         string
	OutputDir   string
	Type        string
	Quality     string
	AudioFormat string
	VideoFormat string
	Playlist    bool
}

// Engine resolves metadata and downloads media.
type Engine interface {
	Probe(ctx context.Context, url string, opts ProbeOptions) (*Info, error)
	Download(ctx context.Context, req Request, hook Hook, messages MessageFunc) error
}

// Lister enumerates playlist entries.
type Lister interface {
	ListEntries(ctx context.Context, url string, limit int) ([]Entry, error)
}

// ProbeLister adapts an Engine's flat probe to the Lister contract.
type ProbeLister struct {
	Engine Engine
}

// ListEntries probes url and returns its entries. A non-playlist URL yields
// no entries.
func (p ProbeLister) ListEntries(ctx context.Context, url string, limit int) ([]Entry, error) {
	info, err := p.Engine.Probe(ctx, url, ProbeOptions{Limit: limit})
	if err != nil {
		return nil, err
	}
	if !info.IsPlaylist {
		return nil, nil
	}
	return info.Entries, nil
}

// WatchURL is the canonical URL synthesized for entries that carry only an id.
const WatchURL = "https://www.youtube.com/watch?v="

// CanonicalURL returns the entry URL, falling back to the watch URL for its
// id. It returns "" when neither is known.
func (e Entry) CanonicalURL() string {
	if e.URL != "" {
		return e.URL
	}
	if e.ID != "" {
		return WatchURL + e.ID
	}
	return ""
}
