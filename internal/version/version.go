// Package version provides build information for gpumon.
// Values are injected at link time, e.g.
//
//	-ldflags "-X github.com/shepherd-project/gpumon/internal/version.Version=0.2.0"
package version

import (
	"fmt"
	"runtime"
)

// Name is the product name reported by the CLI and /api/info.
const Name = "gpumon"

var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// VersionInfo contains complete version information
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// GetVersionInfo returns complete version information
func GetVersionInfo() *VersionInfo {
	return &VersionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns the version, with the short commit when known.
func (v *VersionInfo) String() string {
	if v.GitCommit == "unknown" || v.GitCommit == "" {
		return v.Version
	}
	commit := v.GitCommit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("%s (%s)", v.Version, commit)
}

// FullString is the --version output.
func (v *VersionInfo) FullString() string {
	return fmt.Sprintf("%s %s\nbuilt %s with %s for %s",
		Name, v.String(), v.BuildDate, v.GoVersion, v.Platform)
}
