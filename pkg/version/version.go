// Package version exposes build metadata for the replayer binary.
package version

import (
	"fmt"
	"runtime/debug"
)

// Build metadata, overridden with -ldflags "-X".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// InitBinaryVersion fills Version and Commit from the embedded module build
// info when they were not injected at link time.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if Commit == "none" {
				Commit = setting.Value
			}
		case "vcs.time":
			if Date == "unknown" {
				Date = setting.Value
			}
		}
	}
}

// String returns the one-line version banner.
func String() string {
	return fmt.Sprintf("replayer %s (commit: %s, built: %s)", Version, Commit, Date)
}
