package engine

import (
	"fmt"
	"strings"
)

// Selection is the engine invocation derived from a request.
type Selection struct {
	Format       string
	MergeFormat  string
	ExtractAudio bool
	AudioFormat  string
}

// Select chooses the format expression for req.
func Select(req Request) Selection {
	if strings.EqualFold(req.Type, "audio") {
		return Selection{
			Format:       "bestaudio/best",
			ExtractAudio: true,
			AudioFormat:  req.AudioFormat,
		}
	}

	vf := req.VideoFormat
	quality := strings.ToLower(strings.TrimSpace(req.Quality))
	if quality == "best" || quality == "" {
		return Selection{
			Format:      fmt.Sprintf("bestvideo[ext=%s]+bestaudio/bestvideo+bestaudio/best", vf),
			MergeFormat: vf,
		}
	}
	height := strings.TrimSuffix(quality, "p")
	return Selection{
		Format: fmt.Sprintf(
			"bestvideo[height<=%s][ext=%s]+bestaudio/bestvideo[height<=%s]+bestaudio/bestvideo+bestaudio/best",
			height, vf, height,
		),
		MergeFormat: vf,
	}
}
