// Package notifications delivers job completion alerts via ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers never branch on whether notifications are enabled. Observer adapts
// the Service to the job store's observer hooks and sends each alert at most
// once per job on a background goroutine.
package notifications
