package version

import (
	"strings"
	"testing"
)

func TestGetVersion(t *testing.T) {
	oldVersion, oldBuild, oldCommit := Version, BuildTime, GitCommit
	t.Cleanup(func() { Version, BuildTime, GitCommit = oldVersion, oldBuild, oldCommit })

	Version, BuildTime, GitCommit = "1.2.3", "", ""
	if got := GetVersion(); got != "v1.2.3" {
		t.Errorf("GetVersion() = %q", got)
	}

	BuildTime, GitCommit = "2026-01-02", "0123456789abcdef"
	got := GetVersion()
	if !strings.Contains(got, "built 2026-01-02") || !strings.Contains(got, "commit 01234567") {
		t.Errorf("GetVersion() = %q", got)
	}

	GitCommit = "abc"
	if strings.Contains(GetVersion(), "commit") {
		t.Error("short commit hashes are omitted")
	}
	if GetShortVersion() != "v1.2.3" {
		t.Errorf("GetShortVersion() = %q", GetShortVersion())
	}
}
