package version

import (
	"strings"
	"testing"
)

func TestGetVersionAppendsBuildNumberWhenSet(t *testing.T) {
	orig := Version
	origNum := BuildNumber
	defer func() { Version = orig; BuildNumber = origNum }()

	Version = "v1.2.3"
	BuildNumber = "0"
	if got := GetVersion(); got != "v1.2.3" {
		t.Fatalf("GetVersion() = %q, want \"v1.2.3\" (no build number suffix)", got)
	}

	BuildNumber = "42"
	if got := GetVersion(); got != "v1.2.3+42" {
		t.Fatalf("GetVersion() = %q, want \"v1.2.3+42\"", got)
	}
}

func TestGetVersionFallsBackToCommitWhenDev(t *testing.T) {
	origV, origTag, origCommit, origNum := Version, GitTag, GitCommit, BuildNumber
	defer func() { Version, GitTag, GitCommit, BuildNumber = origV, origTag, origCommit, origNum }()

	Version = "dev"
	GitTag = ""
	GitCommit = "abcdef1234567"
	BuildNumber = "0"
	if got := GetVersion(); got != "dev-abcdef1" {
		t.Fatalf("GetVersion() = %q, want \"dev-abcdef1\"", got)
	}
}

func TestGetFullVersionIncludesCommitAndPlatform(t *testing.T) {
	full := GetFullVersion()
	if !strings.Contains(full, "Commit:") || !strings.Contains(full, Platform) {
		t.Fatalf("GetFullVersion() = %q, missing expected fields", full)
	}
}
