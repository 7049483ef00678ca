// Package deps locates the external binaries the daemon drives: yt-dlp,
// ffmpeg (from config, a bundled directory, next to yt-dlp, or PATH) and an
// optional JavaScript runtime used by yt-dlp for YouTube signature solving.
package deps
