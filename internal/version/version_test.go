package version

import (
	"strings"
	"testing"
)

func TestStringIncludesBuildInfo(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = oldVersion, oldCommit })

	Version, Commit = "1.2.3", "abc123"
	got := String()
	if !strings.HasPrefix(got, "breakplan 1.2.3 (commit abc123, go") {
		t.Fatalf("String() = %q", got)
	}
}
