// Package version reports build-time version information, set via ldflags.
package version

import (
	"fmt"
	"runtime"
	"time"
)

var (
	// Version is the release tag (e.g. "v0.10.0"), or "dev" outside a tagged build.
	Version = "dev"

	// GitCommit is the commit hash the binary was built from.
	GitCommit = "unknown"

	// GitTag is the exact tag the build was cut from, if any.
	GitTag = ""

	// BuildDate is when the binary was built.
	BuildDate = "unknown"

	// BuildNumber is an auto-incremented CI build counter, "0" outside CI.
	BuildNumber = "0"

	GoVersion = runtime.Version()
	Platform  = fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
)

// GetVersion returns the display version: the tag if built from one, a
// commit-derived dev string otherwise, with the build number appended when set.
func GetVersion() string {
	v := Version
	if v == "dev" {
		if GitTag != "" {
			v = GitTag
		} else if GitCommit != "unknown" && len(GitCommit) >= 7 {
			v = fmt.Sprintf("dev-%s", GitCommit[:7])
		}
	}
	if BuildNumber != "0" {
		return fmt.Sprintf("%s+%s", v, BuildNumber)
	}
	return v
}

// GetFullVersion returns a multi-line block with commit, build date, and
// toolchain details, for a `--version` flag's verbose form.
func GetFullVersion() string {
	return fmt.Sprintf(`Machine Dialect Compiler %s
Build:    #%s
Commit:   %s
Date:     %s
Go:       %s
Platform: %s`,
		GetVersion(), BuildNumber, GitCommit, BuildDate, GoVersion, Platform)
}

func init() {
	if BuildDate == "unknown" {
		BuildDate = time.Now().Format("2006-01-02T15:04:05Z")
	}
}
