package config

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"time"
)

// MockFileSystem is an in-memory FileSystem for tests
type MockFileSystem struct {
	Files   map[string][]byte // path -> content
	HomeDir string
	WorkDir string
}

// NewMockFileSystem creates a new mock filesystem
func NewMockFileSystem() *MockFileSystem {
	return &MockFileSystem{
		Files:   make(map[string][]byte),
		HomeDir: "/home/testuser",
		WorkDir: "/home/testuser/project",
	}
}

func (m *MockFileSystem) ReadFile(path string) ([]byte, error) {
	data, ok := m.Files[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", fs.ErrNotExist, path)
	}
	return data, nil
}

func (m *MockFileSystem) Stat(path string) (fs.FileInfo, error) {
	if _, ok := m.Files[path]; !ok {
		return nil, fs.ErrNotExist
	}
	return &mockFileInfo{name: filepath.Base(path), size: int64(len(m.Files[path]))}, nil
}

func (m *MockFileSystem) Abs(path string) (string, error) {
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	return filepath.Join(m.WorkDir, path), nil
}

func (m *MockFileSystem) UserHomeDir() (string, error) {
	return m.HomeDir, nil
}

// AddFile adds a file to the mock filesystem
func (m *MockFileSystem) AddFile(path string, content string) {
	m.Files[path] = []byte(content)
}

type mockFileInfo struct {
	name string
	size int64
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return 0o644 }
func (m *mockFileInfo) ModTime() time.Time { return time.Time{} }
func (m *mockFileInfo) IsDir() bool        { return false }
func (m *mockFileInfo) Sys() any           { return nil }
