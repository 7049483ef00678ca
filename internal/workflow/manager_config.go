package workflow

import (
	"time"

	"mediagrab/internal/config"
	"mediagrab/internal/engine"
)

const defaultSlotPoll = 250 * time.Millisecond

type settings struct {
	downloadRoot  string
	maxConcurrent int
	expandLimit   int
	archive       bool
	enumerator    string
}

func settingsFromConfig(cfg *config.Config) settings {
	if cfg == nil {
		defaults := config.Default()
		cfg = &defaults
	}
	return settings{
		downloadRoot:  cfg.Paths.DownloadDir,
		maxConcurrent: cfg.Workflow.MaxConcurrent,
		expandLimit:   cfg.Playlist.ExpandLimit,
		archive:       cfg.Playlist.Archive,
		enumerator:    cfg.Playlist.Enumerator,
	}
}

// listerFor picks the playlist enumerator. The native lister only serves
// URLs with a list= id, so the engine probe stays as fallback.
func listerFor(s settings, eng engine.Engine) engine.Lister {
	probe := engine.ProbeLister{Engine: eng}
	if s.enumerator == config.EnumeratorNative {
		return engine.FallbackLister{Primary: engine.NativeLister{}, Secondary: probe}
	}
	return probe
}
