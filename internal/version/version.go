// Package version reports the build version of the multicontroller binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// These variables can be set at build time via ldflags:
//
//	go build -ldflags="-X github.com/muurk/multicontroller/internal/version.Version=v1.2.3 \
//	                   -X github.com/muurk/multicontroller/internal/version.Commit=abc123"
//
// Unset values are filled from VCS build info, then fall back to "dev".
var (
	// Version is the semantic version of the application
	Version = ""
	// Commit is the git commit hash
	Commit = ""
	// BuildTime is the VCS commit time when known
	BuildTime = ""
)

func init() {
	if Version == "" || Commit == "" {
		populateFromBuildInfo(readBuildSettings())
	}

	if Version == "" {
		Version = fmt.Sprintf("dev-%s", time.Now().Format("20060102-150405"))
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

func readBuildSettings() map[string]string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	settings := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}
	return settings
}

// populateFromBuildInfo fills Commit, Version and BuildTime from vcs.* build
// settings without overriding ldflags values.
func populateFromBuildInfo(settings map[string]string) {
	if rev := settings["vcs.revision"]; Commit == "" && rev != "" {
		if len(rev) > 7 {
			rev = rev[:7]
		}
		Commit = rev
		if settings["vcs.modified"] == "true" {
			Commit += "-dirty"
		}
	}

	if vcsTime := settings["vcs.time"]; vcsTime != "" {
		if t, err := time.Parse(time.RFC3339, vcsTime); err == nil {
			if BuildTime == "" {
				BuildTime = t.UTC().Format(time.RFC3339)
			}
			if Version == "" {
				Version = fmt.Sprintf("dev-%s", t.Format("20060102"))
			}
		}
	}
}

// Info is the machine readable form used by "version --json"
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the current build info
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Full returns the full version string including commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}
