package api

import (
	"strings"

	"mediagrab/internal/jobs"
	"mediagrab/internal/staging"
)

// InfoRequest asks for metadata about a URL without downloading it.
type InfoRequest struct {
	URL string `json:"url"`
}

// InfoItem is one previewed entry of a URL.
type InfoItem struct {
	Title     string   `json:"title"`
	Duration  *float64 `json:"duration"`
	Thumbnail string   `json:"thumbnail"`
	Uploader  string   `json:"uploader"`
}

// InfoResponse is the preview returned by /api/info.
type InfoResponse struct {
	OK         bool       `json:"ok"`
	IsPlaylist bool       `json:"is_playlist"`
	Title      string     `json:"title"`
	Count      int        `json:"count"`
	Thumbnail  string     `json:"thumbnail"`
	Uploader   string     `json:"uploader"`
	Items      []InfoItem `json:"items"`
}

// DownloadRequest submits a download. audio_format and video_format are
// accepted as aliases of audio_fmt and video_fmt.
type DownloadRequest struct {
	URL              string `json:"url"`
	Type             string `json:"type,omitempty"`
	Quality          string `json:"quality,omitempty"`
	AudioFormat      string `json:"audio_fmt,omitempty"`
	VideoFormat      string `json:"video_fmt,omitempty"`
	AudioFormatAlias string `json:"audio_format,omitempty"`
	VideoFormatAlias string `json:"video_format,omitempty"`
	Playlist         bool   `json:"playlist"`
}

// JobRequest converts the payload into a store request with defaults applied.
func (r DownloadRequest) JobRequest() jobs.Request {
	audio := strings.TrimSpace(r.AudioFormat)
	if audio == "" {
		audio = r.AudioFormatAlias
	}
	video := strings.TrimSpace(r.VideoFormat)
	if video == "" {
		video = r.VideoFormatAlias
	}
	return jobs.Request{
		URL:         r.URL,
		Type:        r.Type,
		Quality:     r.Quality,
		AudioFormat: audio,
		VideoFormat: video,
		Playlist:    r.Playlist,
	}.WithDefaults()
}

// DownloadResponse identifies the job created for a download.
type DownloadResponse struct {
	OK    bool   `json:"ok"`
	JobID string `json:"job_id"`
}

// JobsResponse lists every job, newest first.
type JobsResponse struct {
	Jobs []jobs.Job `json:"jobs"`
}

// OKResponse acknowledges a mutation.
type OKResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Path        string `json:"path,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// WorkflowStatus summarizes worker execution state.
type WorkflowStatus struct {
	Running       bool   `json:"running"`
	Active        int    `json:"active"`
	Waiting       int    `json:"waiting"`
	MaxConcurrent int    `json:"max_concurrent"`
	LastError     string `json:"last_error,omitempty"`
	LastJobID     string `json:"last_job_id,omitempty"`
}

// HealthResponse reports engine availability and daemon state.
type HealthResponse struct {
	OK           bool               `json:"ok"`
	YtDlp        bool               `json:"yt_dlp"`
	FFmpeg       bool               `json:"ffmpeg"`
	JSRuntime    string             `json:"js_runtime"`
	PID          int                `json:"pid"`
	JobCount     int                `json:"job_count"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// StorageResponse reports disk usage for the download root. Error is set
// when the figures could not be read; the numbers are then zero.
type StorageResponse struct {
	Total         uint64 `json:"total"`
	Used          uint64 `json:"used"`
	Free          uint64 `json:"free"`
	DownloadsSize int64  `json:"downloads_size"`
	JobCount      int    `json:"job_count"`
	Error         string `json:"error,omitempty"`
}

// LocalFilesResponse lists artifacts present in the download root.
type LocalFilesResponse struct {
	Files []staging.LocalFile `json:"files"`
}
