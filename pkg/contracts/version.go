package contracts

import (
	"runtime"
	"runtime/debug"
)

// Version of the service and the CLIs. BuildTime and GitCommit are
// stamped with -ldflags "-X pricinglab/pkg/contracts.GitCommit=...".
const (
	Version = "1.0.0"

	// APIVersion is the version of the /api surface.
	APIVersion = "v1"

	// ResultFormatVersion changes whenever the analysis result JSON changes
	// shape.
	ResultFormatVersion = "1"
)

var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// VersionInfo describes the running binary.
type VersionInfo struct {
	Version      string `json:"version"`
	APIVersion   string `json:"api_version"`
	ResultFormat string `json:"result_format"`
	BuildTime    string `json:"build_time"`
	GitCommit    string `json:"git_commit"`
	GoVersion    string `json:"go_version"`
	Platform     string `json:"platform"`
}

// GetVersionInfo falls back to the VCS stamp the Go toolchain embeds when
// the ldflags were not set.
func GetVersionInfo() VersionInfo {
	info := VersionInfo{
		Version:      Version,
		APIVersion:   APIVersion,
		ResultFormat: ResultFormatVersion,
		BuildTime:    BuildTime,
		GitCommit:    GitCommit,
		GoVersion:    runtime.Version(),
		Platform:     runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch {
			case s.Key == "vcs.revision" && info.GitCommit == "unknown":
				info.GitCommit = s.Value
			case s.Key == "vcs.time" && info.BuildTime == "unknown":
				info.BuildTime = s.Value
			}
		}
	}
	return info
}
