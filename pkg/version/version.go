// Package version reports build information for codesnip.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set via ldflags at build time:
//
//	-X github.com/Aman-CERP/codesnip/pkg/version.Version=v0.3.0
//	-X github.com/Aman-CERP/codesnip/pkg/version.Commit=abc1234
//	-X github.com/Aman-CERP/codesnip/pkg/version.Date=2026-01-02T15:04:05Z
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// BuildInfo is structured version information for JSON output.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetInfo returns structured version information. Without ldflags, commit
// and date fall back to the VCS stamp embedded by the go command.
func GetInfo() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		applyVCS(&info, bi.Settings)
	}
	return info
}

func applyVCS(info *BuildInfo, settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" && s.Value != "" {
				info.Commit = s.Value[:min(len(s.Value), 7)]
			}
		case "vcs.time":
			if info.Date == "unknown" && s.Value != "" {
				info.Date = s.Value
			}
		}
	}
}

// String returns a one-line version string with all build info.
func String() string {
	info := GetInfo()
	return fmt.Sprintf("codesnip %s (commit: %s, built: %s, go: %s, %s/%s)",
		info.Version, info.Commit, info.Date, info.GoVersion, info.OS, info.Arch)
}

// Short returns just the version string.
func Short() string {
	return Version
}
