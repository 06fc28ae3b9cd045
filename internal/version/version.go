package version

import "fmt"

var (
	// Version is the gamewarden release, overridden via ldflags at build time.
	Version = "1.0.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns the bare release string. The self-update flow compares it
// against the published manifest to decide whether to replace the binary.
func Short() string {
	return Version
}

// Full returns the human-readable string printed by `gamewarden version`.
func Full() string {
	return fmt.Sprintf("version: %s, commit: %s, built at: %s", Version, Commit, BuildTime)
}
