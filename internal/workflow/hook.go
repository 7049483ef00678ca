package workflow

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"mediagrab/internal/engine"
	"mediagrab/internal/jobs"
)

// progressHook adapts engine progress callbacks to record updates. It is
// the only place a running download observes its cancel flag.
type progressHook struct {
	record    *jobs.Record
	cancelled func() bool
}

func newProgressHook(record *jobs.Record, cancelled func() bool) *progressHook {
	if cancelled == nil {
		cancelled = record.CancelRequested
	}
	return &progressHook{record: record, cancelled: cancelled}
}

func (h *progressHook) handle(p engine.Progress) engine.HookResult {
	if h.cancelled() {
		return engine.Abort
	}
	var err error
	switch p.Status {
	case engine.ProgressDownloading:
		err = h.downloading(p)
	case engine.ProgressFinished:
		err = h.finished(p)
	default:
		return engine.Continue
	}
	if errors.Is(err, jobs.ErrDeleted) {
		return engine.Abort
	}
	return engine.Continue
}

func (h *progressHook) downloading(p engine.Progress) error {
	err := h.record.Apply(func(j *jobs.Job) {
		// A second stream of a merged format keeps the job in merging.
		if j.Status == jobs.StatusFetching {
			j.Status = jobs.StatusDownloading
		}
		if p.TotalBytes > 0 {
			j.Progress = percent(p.DownloadedBytes, p.TotalBytes)
		}
		j.Speed = formatSpeed(p.BytesPerSecond)
		j.ETA = formatETA(p.ETA)
		if p.Filename != "" {
			j.Filename = filepath.Base(p.Filename)
		}
	})
	if err != nil {
		return err
	}
	h.record.PushProgress()
	return nil
}

func (h *progressHook) finished(p engine.Progress) error {
	var name string
	if p.Filename != "" {
		name = filepath.Base(p.Filename)
	}
	err := h.record.Apply(func(j *jobs.Job) {
		if j.Status == jobs.StatusFetching || j.Status == jobs.StatusDownloading {
			j.Status = jobs.StatusMerging
		}
		j.Progress = 99
		if name != "" {
			j.Filename = name
		}
	})
	if err != nil {
		return err
	}
	h.record.AppendLog(jobs.LevelOK, "Downloaded: "+name)
	h.record.PushProgress()
	return nil
}

func percent(downloaded, total int64) float64 {
	return math.Round(float64(downloaded)/float64(total)*1000) / 10
}

func formatSpeed(bytesPerSecond float64) string {
	if bytesPerSecond <= 0 {
		return ""
	}
	return fmt.Sprintf("%.1f MB/s", bytesPerSecond/1024/1024)
}

func formatETA(eta time.Duration) string {
	seconds := int64(eta / time.Second)
	if seconds <= 0 {
		return ""
	}
	return fmt.Sprintf("%ds", seconds)
}
