// Package jobs models download jobs and keeps them in memory.
//
// A Record couples the serializable Job state with an append-only EventLog,
// a cooperative cancel flag and a done sentinel. Every mutation goes through
// Record.Apply, which enforces the status state machine (CanTransition),
// non-decreasing progress, and the append-only job log. MemoryStore is the
// Store implementation used by the daemon; observers such as the journal and
// the metrics collectors follow its mutations.
package jobs
