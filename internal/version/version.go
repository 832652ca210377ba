package version

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// Version is the running build's version. Overridden at build time:
//
//	go build -ldflags "-X github.com/hrygo/loomchat/internal/version.Version=0.95.0"
//
// It carries no leading "v"; SupportsCurrentLogLayout adds one before the
// semver comparison.
var Version = "0.0.0-dev"

// GitCommit is the git commit hash at build time.
var GitCommit = "unknown"

// MinSupportedVersion is the oldest binary version whose on-disk event
// log layout this build can still replay without a migration pass. Bump
// it only alongside a compactor change that can no longer read the old
// layout.
const MinSupportedVersion = "0.1.0"

// SupportsCurrentLogLayout reports whether Version is new enough to read
// logs written by a build no older than MinSupportedVersion. Local dev
// builds (the un-stamped "-dev" default) always pass; the gate exists for
// released binaries pointed at a newer data directory.
func SupportsCurrentLogLayout() bool {
	v := "v" + Version
	if !semver.IsValid(v) || semver.Prerelease(v) == "-dev" {
		return true
	}
	return semver.Compare(v, "v"+MinSupportedVersion) >= 0
}

// String returns the version with a short commit suffix when known.
func String() string {
	if GitCommit == "" || GitCommit == "unknown" {
		return Version
	}
	commit := GitCommit
	if len(commit) > 8 {
		commit = commit[:8]
	}
	return fmt.Sprintf("%s-%s", Version, commit)
}
