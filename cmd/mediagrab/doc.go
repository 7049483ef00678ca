// Command mediagrab runs the download daemon and talks to it over HTTP.
//
// "mediagrab serve" starts the daemon in the foreground. The remaining
// commands (status, jobs, download, cancel and friends) are thin clients of
// the daemon's JSON API and render its replies as tables or status lines.
package main
