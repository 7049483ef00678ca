// Package daemon coordinates the long-running mediagrab process.
//
// It wires configuration, the in-memory job store, the SQLite journal, the
// workflow manager, the cleanup sweeper and Prometheus metrics into a single
// lifecycle with flock-based locking to prevent multiple instances. The HTTP
// API (gorilla/mux behind an allow-all CORS layer) exposes job submission,
// progress streaming, artifact download and maintenance endpoints.
//
// Start also runs the preflight checks in the background and logs failures,
// and an ntfy observer is attached to the store when a topic is configured.
//
// Keep orchestration logic here: job execution lives in workflow, retention
// in staging, and payload shapes in api. The daemon focuses on startup,
// shutdown, and request handling.
package daemon
