// Package version carries build metadata stamped in via -ldflags.
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the build metadata as a one-line banner.
func String() string {
	return fmt.Sprintf("pms %s (%s, built %s)", Version, GitSHA, BuildTime)
}
