package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mediagrab/internal/engine"
)

// DownloadScript describes how FakeEngine behaves for one URL.
type DownloadScript struct {
	// Steps are delivered to the hook in order.
	Steps []engine.Progress
	// StepDelay pauses between steps.
	StepDelay time.Duration
	// Files are written into the output directory after the steps, name to size.
	Files map[string]int64
	// Err is returned after the files are written.
	Err error
	// HoldUntilAbort keeps sending downloading callbacks until the hook aborts
	// or the context ends, before any Steps run.
	HoldUntilAbort bool
	// Release, when set, blocks the download until it is closed.
	Release <-chan struct{}
	// Messages are forwarded to the message callback before the steps.
	Messages []EngineMessage
}

// EngineMessage is a scripted warning or error line.
type EngineMessage struct {
	Level engine.MessageLevel
	Text  string
}

// FakeEngine is a scripted engine.Engine for tests.
type FakeEngine struct {
	mu        sync.Mutex
	infos     map[string]*engine.Info
	probeErrs map[string]error
	scripts   map[string]DownloadScript
	fallback  DownloadScript
	probes    []string
	downloads []engine.Request
	started   chan string
	active    int
	maxActive int
}

// NewFakeEngine returns an engine whose unscripted downloads succeed with a
// single small file.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{
		infos:     make(map[string]*engine.Info),
		probeErrs: make(map[string]error),
		scripts:   make(map[string]DownloadScript),
		fallback:  DownloadScript{Files: map[string]int64{"video.mp4": 16}},
		started:   make(chan string, 64),
	}
}

// SetInfo scripts the probe result for url.
func (f *FakeEngine) SetInfo(url string, info *engine.Info) {
	f.mu.Lock()
	f.infos[url] = info
	f.mu.Unlock()
}

// SetProbeError scripts a probe failure for url.
func (f *FakeEngine) SetProbeError(url string, err error) {
	f.mu.Lock()
	f.probeErrs[url] = err
	f.mu.Unlock()
}

// SetScript scripts the download of url.
func (f *FakeEngine) SetScript(url string, script DownloadScript) {
	f.mu.Lock()
	f.scripts[url] = script
	f.mu.Unlock()
}

// Started delivers the URL of every download as it begins.
func (f *FakeEngine) Started() <-chan string {
	return f.started
}

// Probes returns the URLs probed so far.
func (f *FakeEngine) Probes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.probes...)
}

// Downloads returns the download requests received so far.
func (f *FakeEngine) Downloads() []engine.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.Request(nil), f.downloads...)
}

// MaxActive reports the highest number of overlapping downloads observed.
func (f *FakeEngine) MaxActive() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}

// Probe implements engine.Engine. Unscripted URLs resolve to a single video
// titled after the URL.
func (f *FakeEngine) Probe(ctx context.Context, url string, opts engine.ProbeOptions) (*engine.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes = append(f.probes, url)
	if err := f.probeErrs[url]; err != nil {
		return nil, err
	}
	info, ok := f.infos[url]
	if !ok {
		return &engine.Info{Entry: engine.Entry{ID: filepath.Base(url), Title: "Video " + filepath.Base(url), URL: url}}, nil
	}
	out := *info
	if opts.NoPlaylist && out.IsPlaylist {
		out.IsPlaylist = false
		out.Entries = nil
	}
	if opts.Limit > 0 && len(out.Entries) > opts.Limit {
		out.Entries = out.Entries[:opts.Limit]
	}
	return &out, nil
}

// Download implements engine.Engine.
func (f *FakeEngine) Download(ctx context.Context, req engine.Request, hook engine.Hook, messages engine.MessageFunc) error {
	f.mu.Lock()
	script, ok := f.scripts[req.URL]
	if !ok {
		script = f.fallback
	}
	f.downloads = append(f.downloads, req)
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	select {
	case f.started <- req.URL:
	default:
	}

	if script.Release != nil {
		select {
		case <-script.Release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for _, msg := range script.Messages {
		if messages != nil {
			messages(msg.Level, msg.Text)
		}
	}
	if script.HoldUntilAbort {
		var sent int64
		for {
			sent++
			if hook(engine.Progress{Status: engine.ProgressDownloading, DownloadedBytes: sent, TotalBytes: 1 << 30}) == engine.Abort {
				return engine.ErrAborted
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(2 * time.Millisecond):
			}
		}
	}
	for _, step := range script.Steps {
		if hook(step) == engine.Abort {
			return engine.ErrAborted
		}
		if script.StepDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(script.StepDelay):
			}
		}
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return err
	}
	for name, size := range script.Files {
		path := filepath.Join(req.OutputDir, name)
		if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
			return err
		}
	}
	return script.Err
}
