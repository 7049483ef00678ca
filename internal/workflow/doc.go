// Package workflow runs download jobs through the job state machine.
//
// The Manager spawns one goroutine per accepted job. A job is probed for
// metadata, then either downloaded directly or, for playlists in playlist
// mode, expanded into child jobs that run one after another on the parent's
// goroutine. Engine invocations can be bounded with workflow.max_concurrent;
// a job waiting for a slot stays queued and can still be cancelled.
//
// Cancellation is cooperative: deleting a job sets its cancel flag and the
// progress hook answers the engine's next callback with engine.Abort.
package workflow
