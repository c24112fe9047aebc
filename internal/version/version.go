// Package version reports how the livepen binary was built.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Set at build time with -ldflags "-X github.com/conneroisu/livepen/internal/version.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit"`
	BuildTime time.Time `json:"build_time,omitempty"`
	GoVersion string    `json:"go_version"`
	Platform  string    `json:"platform"`
	Dirty     bool      `json:"dirty,omitempty"`
}

// GetBuildInfo collects the build information, falling back to the VCS
// stamp embedded by the Go toolchain when ldflags were not set.
func GetBuildInfo() *BuildInfo {
	settings := vcsSettings()

	info := &BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: parseBuildTime(BuildTime),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Dirty:     settings["vcs.modified"] == "true",
	}

	if info.GitCommit == "" || info.GitCommit == "unknown" {
		if rev, ok := settings["vcs.revision"]; ok {
			info.GitCommit = rev
		}
	}
	if info.BuildTime.IsZero() {
		info.BuildTime = parseBuildTime(settings["vcs.time"])
	}
	if info.Version == "" || info.Version == "dev" {
		info.Version = moduleVersion()
		if info.Version == "dev" && len(info.GitCommit) >= 7 && info.GitCommit != "unknown" {
			info.Version = "dev-" + info.GitCommit[:7]
		}
	}
	return info
}

// GetShortVersion returns "version (commit)" for display.
func GetShortVersion() string {
	info := GetBuildInfo()
	if strings.HasPrefix(info.Version, "dev-") || len(info.GitCommit) < 7 || info.GitCommit == "unknown" {
		return info.Version
	}
	return fmt.Sprintf("%s (%s)", info.Version, info.GitCommit[:7])
}

// GetDetailedVersion returns one line per build property.
func GetDetailedVersion() string {
	info := GetBuildInfo()

	lines := []string{"Version: " + info.Version}
	if info.GitCommit != "unknown" {
		commit := info.GitCommit
		if info.Dirty {
			commit += " (dirty)"
		}
		lines = append(lines, "Commit: "+commit)
	}
	if !info.BuildTime.IsZero() {
		lines = append(lines, "Built: "+info.BuildTime.Format(time.RFC3339))
	}
	lines = append(lines, "Go: "+info.GoVersion, "Platform: "+info.Platform)
	return strings.Join(lines, "\n")
}

// IsRelease reports whether this is a tagged build.
func IsRelease() bool {
	v := GetBuildInfo().Version
	return v != "dev" && !strings.HasPrefix(v, "dev-")
}

func moduleVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return "dev"
}

func vcsSettings() map[string]string {
	settings := make(map[string]string)
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if strings.HasPrefix(s.Key, "vcs.") {
				settings[s.Key] = s.Value
			}
		}
	}
	return settings
}

func parseBuildTime(s string) time.Time {
	if s == "" || s == "unknown" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
