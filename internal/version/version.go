// Package version reports which build of autohttps is running.
package version

import (
	"fmt"
	"runtime/debug"
)

// Set at build time via ldflags. Builds from `go install` leave them unset
// and fall back to the VCS stamp recorded by the toolchain.
var (
	Commit    = "unknown"
	BuildTime = "unknown"
)

var readBuildInfo = debug.ReadBuildInfo

// String returns the version string (commit-hash based, no semver).
func String() string {
	commit, built, dirty := resolve()
	s := fmt.Sprintf("autohttps dev (commit: %s, built: %s)", shortCommit(commit), built)
	if dirty {
		s += " +dirty"
	}
	return s
}

func resolve() (commit, built string, dirty bool) {
	commit, built = Commit, BuildTime
	if commit != "unknown" {
		return commit, built, false
	}
	info, ok := readBuildInfo()
	if !ok {
		return commit, built, false
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			commit = setting.Value
		case "vcs.time":
			if built == "unknown" {
				built = setting.Value
			}
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return commit, built, dirty
}

func shortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}
