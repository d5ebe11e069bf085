package buildconfig

import (
	"runtime"
	"runtime/debug"
	"sync"
)

// Set with -ldflags "-X github.com/Harshitk-cp/vidocq/internal/buildconfig.version=v1.2.0".
var (
	version = "dev"
	commit  = ""
)

// Info identifies the running binary in /health and the startup log.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
}

var (
	once    sync.Once
	current Info
)

// Current returns the build info. A commit not injected through ldflags is
// taken from the VCS stamp embedded by the go command.
func Current() Info {
	once.Do(func() {
		current = Info{Version: version, Commit: commit, GoVersion: runtime.Version()}
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				switch s.Key {
				case "vcs.revision":
					if current.Commit == "" {
						current.Commit = s.Value
					}
				case "vcs.modified":
					current.Modified = s.Value == "true"
				}
			}
		}
		if current.Commit == "" {
			current.Commit = "unknown"
		}
	})
	return current
}
