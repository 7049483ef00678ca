package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lrstanley/go-ytdlp"
)

const progressInterval = 250 * time.Millisecond

// YtdlpOptions configures the yt-dlp adapter.
type YtdlpOptions struct {
	// Binary is the yt-dlp executable. Empty uses the one on PATH.
	Binary string
	// FFmpegLocation is passed as --ffmpeg-location when set (binary or directory).
	FFmpegLocation string
	// JSRuntime names the runtime passed as --js-runtimes (node, deno, bun).
	JSRuntime          string
	AudioQuality       string
	NoCheckCertificate bool
	// ProbeTimeout bounds metadata probes. Zero means no timeout.
	ProbeTimeout time.Duration
}

// Ytdlp drives the yt-dlp binary through go-ytdlp.
type Ytdlp struct {
	opts YtdlpOptions
}

// NewYtdlp constructs the adapter.
func NewYtdlp(opts YtdlpOptions) *Ytdlp {
	if strings.TrimSpace(opts.AudioQuality) == "" {
		opts.AudioQuality = "192"
	}
	return &Ytdlp{opts: opts}
}

func (y *Ytdlp) command() *ytdlp.Command {
	cmd := ytdlp.New()
	if y.opts.Binary != "" {
		cmd.SetExecutable(y.opts.Binary)
	}
	if y.opts.NoCheckCertificate {
		cmd.NoCheckCertificates()
	}
	return cmd
}

// extraArgs are flags passed through verbatim ahead of the URL.
func (y *Ytdlp) extraArgs() []string {
	var args []string
	if y.opts.FFmpegLocation != "" {
		args = append(args, "--ffmpeg-location", y.opts.FFmpegLocation)
	}
	if y.opts.JSRuntime != "" {
		args = append(args, "--js-runtimes", y.opts.JSRuntime)
	}
	return args
}

// Probe resolves metadata for url using a flat playlist dump.
func (y *Ytdlp) Probe(ctx context.Context, url string, opts ProbeOptions) (*Info, error) {
	if y.opts.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, y.opts.ProbeTimeout)
		defer cancel()
	}

	cmd := y.command().FlatPlaylist().DumpSingleJSON()
	if opts.Limit > 0 {
		cmd.PlaylistItems(fmt.Sprintf("1-%d", opts.Limit))
	}
	if opts.NoPlaylist {
		cmd.NoPlaylist()
	}
	result, err := cmd.Run(ctx, append(y.extraArgs(), url)...)
	if err != nil {
		return nil, runError(err, result)
	}
	info, err := parseProbe([]byte(result.Stdout))
	if err != nil {
		return nil, err
	}
	if opts.Limit > 0 && len(info.Entries) > opts.Limit {
		info.Entries = info.Entries[:opts.Limit]
	}
	return info, nil
}

// Download fetches req into req.OutputDir, reporting progress to hook. When
// hook returns Abort the run is cancelled and ErrAborted is returned.
func (y *Ytdlp) Download(ctx context.Context, req Request, hook Hook, messages MessageFunc) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sel := Select(req)
	cmd := y.command().
		Format(sel.Format).
		Output(filepath.Join(req.OutputDir, "%(title)s.%(ext)s"))
	if sel.ExtractAudio {
		cmd.ExtractAudio().AudioFormat(sel.AudioFormat).AudioQuality(y.opts.AudioQuality)
	}
	if sel.MergeFormat != "" {
		cmd.MergeOutputFormat(sel.MergeFormat)
	}
	if req.Playlist {
		cmd.YesPlaylist()
	} else {
		cmd.NoPlaylist()
	}

	var aborted atomic.Bool
	cmd.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
		if aborted.Load() || hook == nil {
			return
		}
		progress, ok := convertProgress(update)
		if !ok {
			return
		}
		if hook(progress) == Abort {
			aborted.Store(true)
			cancel()
		}
	})

	result, err := cmd.Run(runCtx, append(y.extraArgs(), req.URL)...)
	if aborted.Load() {
		return ErrAborted
	}
	if result != nil && messages != nil {
		forwardMessages(result.Stderr, messages)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		return runError(err, result)
	}
	return nil
}

func convertProgress(update ytdlp.ProgressUpdate) (Progress, bool) {
	var status ProgressStatus
	switch update.Status {
	case ytdlp.ProgressStatusDownloading:
		status = ProgressDownloading
	case ytdlp.ProgressStatusFinished:
		status = ProgressFinished
	default:
		return Progress{}, false
	}
	progress := Progress{
		Status:          status,
		DownloadedBytes: int64(update.DownloadedBytes),
		TotalBytes:      int64(update.TotalBytes),
		Filename:        update.Filename,
	}
	if !update.Started.IsZero() {
		if elapsed := time.Since(update.Started).Seconds(); elapsed > 0 {
			progress.BytesPerSecond = float64(update.DownloadedBytes) / elapsed
		}
	}
	if eta := update.ETA(); eta > 0 {
		progress.ETA = eta
	}
	return progress, true
}

// forwardMessages relays WARNING and ERROR lines from the engine's stderr.
func forwardMessages(stderr string, messages MessageFunc) {
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "WARNING:"):
			messages(MessageWarning, strings.TrimSpace(strings.TrimPrefix(line, "WARNING:")))
		case strings.HasPrefix(line, "ERROR:"):
			messages(MessageError, strings.TrimSpace(strings.TrimPrefix(line, "ERROR:")))
		}
	}
}

// runError prefers the engine's own ERROR line over the generic exit error.
func runError(err error, result *ytdlp.Result) error {
	if result != nil {
		for _, line := range strings.Split(result.Stderr, "\n") {
			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, "ERROR:") {
				return fmt.Errorf("%s: %w", line, err)
			}
		}
	}
	if err == nil {
		return errors.New("yt-dlp failed without output")
	}
	return err
}

type probeJSON struct {
	Type       string      `json:"_type"`
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	URL        string      `json:"url"`
	WebpageURL string      `json:"webpage_url"`
	Thumbnail  string      `json:"thumbnail"`
	Uploader   string      `json:"uploader"`
	Duration   float64     `json:"duration"`
	Entries    []probeJSON `json:"entries"`
}

func (p probeJSON) entry() Entry {
	return Entry{
		ID:        p.ID,
		Title:     p.Title,
		URL:       p.URL,
		Thumbnail: p.Thumbnail,
		Uploader:  p.Uploader,
		Duration:  p.Duration,
	}
}

func parseProbe(data []byte) (*Info, error) {
	var raw probeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode yt-dlp metadata: %w", err)
	}
	if raw.ID == "" && raw.Title == "" && len(raw.Entries) == 0 {
		return nil, errors.New("could not extract video information, check the URL")
	}
	info := &Info{Entry: raw.entry(), IsPlaylist: raw.Type == "playlist"}
	if info.URL == "" {
		info.URL = raw.WebpageURL
	}
	if info.IsPlaylist {
		info.Entries = make([]Entry, 0, len(raw.Entries))
		for _, e := range raw.Entries {
			if e.ID == "" && e.URL == "" {
				continue
			}
			info.Entries = append(info.Entries, e.entry())
		}
	}
	return info, nil
}
