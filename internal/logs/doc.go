// Package logs tails daemon log files for the CLI.
//
// Tail prints the last N lines of a file and can keep following it. The
// daemon re-points mediagrab.log at a new file on every start, so following
// re-opens the path whenever the file underneath is replaced or truncated.
package logs
