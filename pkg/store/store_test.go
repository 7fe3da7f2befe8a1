package store

import (
	"testing"

	"github.com/google/uuid"
)

func TestSanitizeKey(t *testing.T) {
	tests := map[string]string{
		"docs/guide.md":           "docs_guide.md",
		".cursor/rules/style.mdc": ".cursor_rules_style.mdc",
		`src\win\file.ts`:         "src_win_file.ts",
		`what?<is>"this"|*:`:      "what__is__this____",
		"plain.md":                "plain.md",
	}
	for in, want := range tests {
		if got := SanitizeKey(in); got != want {
			t.Errorf("SanitizeKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if a == b {
		t.Error("run IDs should be unique")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("run ID %q is not a UUID: %v", a, err)
	}
}
