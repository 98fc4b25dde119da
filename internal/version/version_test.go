package version

import (
	"testing"

	"github.com/fatih/color"
)

func TestVersion_DefaultValues(t *testing.T) {
	if Version == "" {
		t.Error("Version should have a default value")
	}
}

func TestColored(t *testing.T) {
	orig := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = orig }()

	if got := Colored("1.2.3-rc.1"); got != "1.2.3-rc.1" {
		t.Errorf("Colored = %q", got)
	}
	if got := Colored("dev"); got != "dev" {
		t.Errorf("Colored(dev) = %q", got)
	}
}

func TestVersion_CanBeOverridden(t *testing.T) {
	origVersion, origCommit := Version, GitCommit
	defer func() { Version, GitCommit = origVersion, origCommit }()

	Version = "1.2.3"
	GitCommit = "abc123def456"
	if Version != "1.2.3" || GitCommit != "abc123def456" {
		t.Errorf("overrides not applied: %q %q", Version, GitCommit)
	}
}
