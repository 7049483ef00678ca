// Package engine defines the extraction engine contract and its yt-dlp
// implementation.
//
// Ytdlp drives the yt-dlp binary through github.com/lrstanley/go-ytdlp: Probe
// performs a flat metadata dump and Download runs a transfer, converting
// progress updates into Progress callbacks. A Hook returning Abort cancels the
// run and Download reports ErrAborted. NativeLister enumerates YouTube
// playlists in-process through github.com/ytget/ytdlp/v2.
package engine
