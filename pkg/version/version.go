// Package version reports how the archivist binary was built.
//
// Release builds stamp the variables below with ldflags, e.g.
//
//	-X github.com/Aman-CERP/archivist/pkg/version.Version=v0.3.0
//
// Plain `go build` leaves them unset, in which case the commit and date are
// taken from the VCS stamp the toolchain embeds, when there is one.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	Date      = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo is the JSON shape of `archivist version --json`.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	Modified  bool   `json:"modified,omitempty"`
}

func String() string {
	info := GetInfo()
	s := fmt.Sprintf("archivist %s (commit: %s, built: %s, go: %s)", info.Version, info.Commit, info.Date, info.GoVersion)
	if info.Modified {
		s += " +dirty"
	}
	return s
}

func Short() string { return Version }

// GetInfo merges the ldflags values with the embedded VCS stamp.
func GetInfo() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" && s.Value != "" {
				info.Commit = shortRevision(s.Value)
			}
		case "vcs.time":
			if info.Date == "unknown" && s.Value != "" {
				info.Date = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

func shortRevision(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}
