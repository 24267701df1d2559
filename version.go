package apiclient

import (
	"fmt"
	"runtime"
)

// Build metadata, overridable with -ldflags "-X".
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = runtime.Version()
)

// GetVersion describes the build on one line, for CLI output.
func GetVersion() string {
	return fmt.Sprintf("apiclient %s commit=%s built=%s %s", Version, GitCommit, BuildDate, GoVersion)
}

// GetVersionInfo returns the build metadata as structured log fields.
func GetVersionInfo() map[string]string {
	return map[string]string{
		"version":    Version,
		"commit":     GitCommit,
		"build_date": BuildDate,
		"go_version": GoVersion,
	}
}

// UserAgent is sent with every call.
func UserAgent() string {
	return "apiclient/" + Version
}
