// Package journal persists job records in SQLite (modernc.org/sqlite) so the
// job list survives daemon restarts.
//
// The Observer follows the in-memory job store and writes significant
// changes; Recover reloads the journal at startup and fails any job that was
// still running when the previous process exited.
package journal
