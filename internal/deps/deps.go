package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external binary mediagrab relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Path        string `json:"path,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = resolved
		results = append(results, status)
	}
	return results
}

// Options names the binaries to inspect.
type Options struct {
	YtdlpBinary  string
	FFmpegBinary string
	// JSRuntime is "", a runtime name (node, deno, bun) or "none".
	JSRuntime string
}

// Report is the resolved dependency picture used by the engine and health
// endpoint.
type Report struct {
	Ytdlp          Status
	FFmpeg         Status
	FFmpegLocation string
	JSRuntime      JSRuntime
	Dependencies   []Status
}

// Inspect resolves every binary the daemon uses.
func Inspect(opts Options) Report {
	ytdlpStatus := CheckBinaries([]Requirement{{
		Name:        "yt-dlp",
		Command:     opts.YtdlpBinary,
		Description: "Extraction engine",
	}})[0]

	ffmpeg := ResolveFFmpeg(opts.FFmpegBinary, ytdlpStatus.Path)
	var searchDirs []string
	if ffmpeg.Location != "" {
		searchDirs = append(searchDirs, ffmpeg.Location)
	}
	runtime, _ := ResolveJSRuntime(opts.JSRuntime, searchDirs...)

	jsStatus := Status{
		Name:        "JS runtime",
		Command:     runtime.Name,
		Description: "Signature solving for YouTube",
		Optional:    true,
		Available:   runtime.Name != "",
		Path:        runtime.Path,
	}
	if !jsStatus.Available {
		jsStatus.Detail = "no node, deno or bun found"
	}

	return Report{
		Ytdlp:          ytdlpStatus,
		FFmpeg:         ffmpeg.Status,
		FFmpegLocation: ffmpeg.Location,
		JSRuntime:      runtime,
		Dependencies:   []Status{ytdlpStatus, ffmpeg.Status, jsStatus},
	}
}
