package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	oldVersion, oldDirty := Version, Dirty
	defer func() { Version, Dirty = oldVersion, oldDirty }()

	Version, Dirty = "1.2.3", "false"
	if got := String(); got != "1.2.3" {
		t.Errorf("String() = %q, want 1.2.3", got)
	}

	Dirty = "true"
	if got := String(); got != "1.2.3-dirty" {
		t.Errorf("String() = %q, want 1.2.3-dirty", got)
	}
	if !Get().Dirty {
		t.Error("expected Get().Dirty")
	}
}

func TestFull(t *testing.T) {
	full := Full()
	if !strings.HasPrefix(full, "accesscheck ") {
		t.Errorf("expected program name prefix, got %q", full)
	}
	for _, want := range []string{"Commit:", "Go version:", "OS/Arch:"} {
		if !strings.Contains(full, want) {
			t.Errorf("expected %q in %q", want, full)
		}
	}
}
