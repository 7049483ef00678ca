package deps

import (
	"os/exec"
	"path/filepath"
	"strings"
)

// JSRuntimeNone disables JS runtime discovery.
const JSRuntimeNone = "none"

var jsRuntimeOrder = []string{"node", "deno", "bun"}

// JSRuntime is a resolved JavaScript runtime.
type JSRuntime struct {
	Name string
	Path string
}

// String renders the runtime the way the health endpoint reports it.
func (r JSRuntime) String() string {
	if r.Name == "" {
		return JSRuntimeNone
	}
	return r.Name + ": " + r.Path
}

// ResolveJSRuntime finds a JS runtime. preference restricts the search to
// one runtime; empty searches node, deno and bun in that order. Bundled
// directories are checked before PATH.
func ResolveJSRuntime(preference string, bundledDirs ...string) (JSRuntime, bool) {
	preference = strings.ToLower(strings.TrimSpace(preference))
	if preference == JSRuntimeNone {
		return JSRuntime{}, false
	}
	candidates := jsRuntimeOrder
	if preference != "" {
		candidates = []string{preference}
	}
	for _, name := range candidates {
		for _, dir := range bundledDirs {
			path := filepath.Join(dir, executableName(name))
			if isExecutableFile(path) {
				if abs, err := filepath.Abs(path); err == nil {
					path = abs
				}
				return JSRuntime{Name: name, Path: path}, true
			}
		}
		if path, err := exec.LookPath(name); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
			return JSRuntime{Name: name, Path: path}, true
		}
	}
	return JSRuntime{}, false
}
