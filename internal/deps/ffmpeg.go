package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// FFmpegResult describes the resolved ffmpeg binary. Location is the value
// to hand to the engine's --ffmpeg-location flag: a bundled directory or
// the binary path, empty when ffmpeg comes from PATH.
type FFmpegResult struct {
	Status
	Location string
}

// ResolveFFmpeg locates ffmpeg. configured may name a binary, a path to a
// binary, or a directory holding a bundled ffmpeg. When it cannot be
// resolved, an ffmpeg sitting next to the yt-dlp binary is preferred over
// PATH.
func ResolveFFmpeg(configured, ytdlpPath string) FFmpegResult {
	result := FFmpegResult{Status: Status{
		Name:        "ffmpeg",
		Description: "Merging and audio extraction",
	}}
	name := executableName("ffmpeg")
	configured = strings.TrimSpace(configured)

	if configured != "" {
		if info, err := os.Stat(configured); err == nil {
			if info.IsDir() {
				candidate := filepath.Join(configured, name)
				if isExecutableFile(candidate) {
					return available(result, candidate, configured)
				}
			} else if isExecutable(info) {
				return available(result, configured, configured)
			}
		}
	}

	if ytdlpPath != "" {
		candidate := filepath.Join(filepath.Dir(ytdlpPath), name)
		if isExecutableFile(candidate) {
			return available(result, candidate, filepath.Dir(candidate))
		}
	}

	lookup := configured
	if lookup == "" || strings.ContainsRune(lookup, os.PathSeparator) {
		lookup = "ffmpeg"
	}
	if resolved, err := exec.LookPath(lookup); err == nil {
		result.Command = lookup
		result.Available = true
		result.Path = resolved
		return result
	}

	result.Command = lookup
	result.Detail = fmt.Sprintf("binary %q not found", lookup)
	return result
}

func available(result FFmpegResult, binary, location string) FFmpegResult {
	result.Command = binary
	result.Path = binary
	result.Available = true
	result.Location = location
	return result
}

func executableName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return isExecutable(info)
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
