package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveRelativePath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		name    string
		baseDir string
		path    string
		want    string
	}{
		{"absolute path - return as-is", "/home/user/project", "/opt/corpus", "/opt/corpus"},
		{"relative path - resolve to base dir", "/home/user/project", "./docs", "/home/user/project/docs"},
		{"dot directory", "/home/user/project", ".cursor/rules", "/home/user/project/.cursor/rules"},
		{"parent relative path", "/home/user/project", "../shared", "/home/user/shared"},
		{"tilde path - expand to home", "/home/user/project", "~/notes", filepath.Join(home, "notes")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveRelativePath(tt.baseDir, tt.path)
			if err != nil {
				t.Fatalf("ResolveRelativePath() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveRelativePath() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolvePaths(t *testing.T) {
	got, err := ResolvePaths("/project", []string{"src", "/abs/docs", "tests/../specs"})
	if err != nil {
		t.Fatalf("ResolvePaths() error = %v", err)
	}
	want := []string{"/project/src", "/abs/docs", "/project/specs"}
	if !stringSlicesEqual(got, want) {
		t.Errorf("ResolvePaths() = %v, want %v", got, want)
	}
}

func TestWithinRoot(t *testing.T) {
	tests := []struct {
		path string
		root string
		want bool
	}{
		{"/project", "/project", true},
		{"/project/docs", "/project", true},
		{"/project/docs/../src", "/project", true},
		{"/project-other", "/project", false},
		{"/opt/docs", "/project", false},
		{"/project/../etc", "/project", false},
	}
	for _, tt := range tests {
		if got := WithinRoot(tt.path, tt.root); got != tt.want {
			t.Errorf("WithinRoot(%s, %s) = %v, want %v", tt.path, tt.root, got, tt.want)
		}
	}
}
