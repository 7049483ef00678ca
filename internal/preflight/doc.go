// Package preflight provides readiness checks for the filesystem paths and
// external tools mediagrab depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs every failure as a warning.
//     Startup continues so the API can still report health.
//   - The CLI "mediagrab status" command renders each result as a status line.
package preflight
