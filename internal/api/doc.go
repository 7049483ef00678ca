// Package api defines the wire-format payloads of the HTTP API and a small
// client used by the CLI.
//
// # Key Types
//
// InfoResponse: URL preview with playlist detection and capped item list.
//
// DownloadRequest/DownloadResponse: job submission. JobRequest applies the
// request defaults and resolves the audio_format/video_format aliases.
//
// JobsResponse: every job snapshot, newest first.
//
// HealthResponse/StorageResponse/LocalFilesResponse: daemon diagnostics.
//
// ErrorResponse: the {"detail": ...} body of every error reply.
//
// # Converters
//
// FromInfo: engine.Info -> InfoResponse.
//
// FromRecords: live records -> JobsResponse.
//
// FromStatusSummary, FromDependencies, FromUsage: diagnostics.
//
// # Design Notes
//
// Payloads use snake_case JSON tags because existing browser clients expect
// them. Job snapshots are served as jobs.Job directly so the record shape is
// defined in one place.
package api
