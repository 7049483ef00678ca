package api

import (
	"sort"

	"mediagrab/internal/deps"
	"mediagrab/internal/engine"
	"mediagrab/internal/jobs"
	"mediagrab/internal/staging"
	"mediagrab/internal/workflow"
)

// FromInfo converts probe metadata into the preview payload. Items are
// capped at maxEntries when it is positive; Count reports every entry.
func FromInfo(info *engine.Info, maxEntries int) InfoResponse {
	if info == nil {
		return InfoResponse{OK: true, Items: []InfoItem{}}
	}
	entries := []engine.Entry{info.Entry}
	if info.IsPlaylist && len(info.Entries) > 0 {
		entries = info.Entries
	}

	limit := len(entries)
	if maxEntries > 0 && limit > maxEntries {
		limit = maxEntries
	}
	items := make([]InfoItem, 0, limit)
	for _, entry := range entries[:limit] {
		items = append(items, fromEntry(entry))
	}

	return InfoResponse{
		OK:         true,
		IsPlaylist: info.IsPlaylist,
		Title:      titleOrID(info.Entry),
		Count:      len(entries),
		Thumbnail:  info.Thumbnail,
		Uploader:   info.Uploader,
		Items:      items,
	}
}

func fromEntry(entry engine.Entry) InfoItem {
	item := InfoItem{
		Title:     titleOrID(entry),
		Thumbnail: entry.Thumbnail,
		Uploader:  entry.Uploader,
	}
	if entry.Duration > 0 {
		d := entry.Duration
		item.Duration = &d
	}
	return item
}

func titleOrID(entry engine.Entry) string {
	if entry.Title != "" {
		return entry.Title
	}
	return entry.ID
}

// FromRecords snapshots records ordered by creation time, newest first.
func FromRecords(records []*jobs.Record) JobsResponse {
	out := make([]jobs.Job, 0, len(records))
	for _, record := range records {
		out = append(out, record.Snapshot())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return JobsResponse{Jobs: out}
}

// FromStatusSummary converts workflow diagnostics.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	return WorkflowStatus{
		Running:       summary.Running,
		Active:        summary.Active,
		Waiting:       summary.Waiting,
		MaxConcurrent: summary.MaxConcurrent,
		LastError:     summary.LastError,
		LastJobID:     summary.LastJobID,
	}
}

// FromDependencies converts dependency checks.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, DependencyStatus{
			Name:        s.Name,
			Command:     s.Command,
			Description: s.Description,
			Optional:    s.Optional,
			Available:   s.Available,
			Path:        s.Path,
			Detail:      s.Detail,
		})
	}
	return out
}

// FromUsage converts disk usage. A non-nil err yields zeroed figures with
// the error message attached.
func FromUsage(usage staging.Usage, jobCount int, err error) StorageResponse {
	if err != nil {
		return StorageResponse{JobCount: jobCount, Error: err.Error()}
	}
	return StorageResponse{
		Total:         usage.Total,
		Used:          usage.Used,
		Free:          usage.Free,
		DownloadsSize: usage.DownloadsSize,
		JobCount:      jobCount,
	}
}
