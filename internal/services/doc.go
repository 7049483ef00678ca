// Package services defines shared utilities consumed by the workflow and the
// HTTP layer.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, playlist parents, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent terminal statuses (error vs cancelled).
//   - UserMessage, which collapses raw engine output into the short phrases
//     stored on failed jobs.
package services
