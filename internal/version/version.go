// Package version exposes build metadata injected at link time:
//
//	go build -ldflags "-X github.com/HerbHall/coldguard/internal/version.Version=1.2.0"
package version

import (
	"fmt"
	"runtime"
)

// Set via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Short returns the bare version string.
func Short() string {
	return Version
}

// Info returns a one-line human-readable build description.
func Info() string {
	return fmt.Sprintf("coldguard %s (commit %s, built %s, %s)", Version, GitCommit, BuildDate, runtime.Version())
}

// Map returns build metadata for JSON responses.
func Map() map[string]string {
	return map[string]string{
		"version":    Version,
		"git_commit": GitCommit,
		"build_date": BuildDate,
		"go_version": runtime.Version(),
	}
}
