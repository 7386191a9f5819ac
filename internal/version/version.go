// Package version reports the build identity of the glint binary.
package version

import (
	"runtime/debug"
	"time"
)

var (
	// Version is the release version (set via -ldflags).
	Version = ""
	// Commit is the git commit hash (set via -ldflags).
	Commit = ""
	// BuildTime is the build timestamp (set via -ldflags).
	BuildTime = ""
)

type Info struct {
	Version   string
	Commit    string
	BuildTime string
	GoVersion string
	Modified  bool
}

// Resolve fills unset ldflags values from the module build info. A build
// with no version at all reports its build time, or "devel".
func Resolve() Info {
	return resolve(Version, Commit, BuildTime, readBuildInfo)
}

func resolve(ver, commit, built string, read func() (*debug.BuildInfo, bool)) Info {
	info := Info{Version: ver, Commit: commit, BuildTime: built}

	if bi, ok := read(); ok {
		info.GoVersion = bi.GoVersion
		if info.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.Commit == "" {
					info.Commit = s.Value
				}
			case "vcs.time":
				if info.BuildTime == "" {
					info.BuildTime = s.Value
				}
			case "vcs.modified":
				info.Modified = s.Value == "true"
			}
		}
	}

	if info.Version == "" {
		if t, err := time.Parse(time.RFC3339, info.BuildTime); err == nil {
			info.Version = t.UTC().Format("20060102T150405Z")
		} else if info.BuildTime != "" {
			info.Version = info.BuildTime
		} else {
			info.Version = "devel"
		}
	}
	return info
}

func readBuildInfo() (*debug.BuildInfo, bool) {
	return debug.ReadBuildInfo()
}

func String() string {
	return Resolve().String()
}

func (i Info) String() string {
	s := i.Version
	if i.Commit != "" {
		s += " (" + shortCommit(i.Commit)
		if i.Modified {
			s += "-dirty"
		}
		s += ")"
	}
	return s
}

func shortCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}
