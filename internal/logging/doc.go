// Package logging assembles structured slog loggers and formatting helpers used
// across mediagrab.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so workers can tag log lines with job IDs,
// playlist parents, and correlation IDs. The console handler colours level
// labels only when writing straight to a terminal.
//
// The package also provides a no-op logger for tests and wiring code that
// cannot fail, plus retention pruning for the per-run log files the daemon
// leaves behind.
package logging
