package testutil

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"ct-go/internal/ct"
)

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content []byte
	TakenAt time.Time
}

// MockFilesystemManager is an in-memory filesystem for testing.
// Paths are used as given; callers pass clean absolute paths.
type MockFilesystemManager struct {
	files map[string]*MockFile
	dirs  map[string]bool
	fail  map[string]error
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files: make(map[string]*MockFile),
		dirs:  make(map[string]bool),
		fail:  make(map[string]error),
	}
}

// AddFile adds a file to the mock filesystem, creating its parent directories.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.files[path] = &MockFile{Content: content}
	m.AddDirectory(filepath.Dir(path))
}

// AddPhoto adds an image file with an EXIF capture time.
func (m *MockFilesystemManager) AddPhoto(path string, takenAt time.Time) {
	m.AddFile(path, []byte("jpeg"))
	m.files[path].TakenAt = takenAt
}

// AddDirectory adds a directory and its parents to the mock filesystem.
func (m *MockFilesystemManager) AddDirectory(path string) {
	for {
		m.dirs[path] = true
		parent := filepath.Dir(path)
		if parent == path {
			return
		}
		path = parent
	}
}

// FailNext makes the next call of op ("rename", "move" or "scan") return err.
func (m *MockFilesystemManager) FailNext(op string, err error) {
	m.fail[op] = err
}

// Exists reports whether a file exists at path.
func (m *MockFilesystemManager) Exists(path string) bool {
	_, ok := m.files[path]
	return ok
}

// Files returns every file path, sorted.
func (m *MockFilesystemManager) Files() []string {
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (m *MockFilesystemManager) injected(op string) error {
	if err, ok := m.fail[op]; ok {
		delete(m.fail, op)
		return err
	}
	return nil
}

func (m *MockFilesystemManager) Rename(path, newName string) error {
	if err := m.injected("rename"); err != nil {
		return err
	}
	return m.relocate(path, filepath.Join(filepath.Dir(path), newName))
}

func (m *MockFilesystemManager) Move(path, destDir, name string) error {
	if err := m.injected("move"); err != nil {
		return err
	}
	if !m.dirs[destDir] {
		return fmt.Errorf("not a directory: %s", destDir)
	}
	return m.relocate(path, filepath.Join(destDir, name))
}

func (m *MockFilesystemManager) relocate(from, to string) error {
	f, ok := m.files[from]
	if !ok {
		return fmt.Errorf("file not found: %s", from)
	}
	if _, taken := m.files[to]; taken {
		return fmt.Errorf("%s: %w", to, ct.ErrFilenameTaken)
	}
	delete(m.files, from)
	m.files[to] = f
	return nil
}

func (m *MockFilesystemManager) SuffixedName(dir, name string, exclude []string) string {
	excluded := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		excluded[e] = true
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		if _, taken := m.files[filepath.Join(dir, candidate)]; !taken && !excluded[candidate] {
			return candidate
		}
	}
}

func (m *MockFilesystemManager) Scan(dir string, exts []string) ([]string, error) {
	if err := m.injected("scan"); err != nil {
		return nil, err
	}
	if !m.dirs[dir] {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}
	accepted := make(map[string]bool, len(exts))
	for _, e := range exts {
		accepted[strings.ToLower(e)] = true
	}
	prefix := strings.TrimSuffix(dir, string(filepath.Separator)) + string(filepath.Separator)
	var out []string
	for p := range m.files {
		if strings.HasPrefix(p, prefix) && accepted[strings.ToLower(filepath.Ext(p))] {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MockFilesystemManager) CaptureTime(path string) (time.Time, bool) {
	f, ok := m.files[path]
	if !ok || f.TakenAt.IsZero() {
		return time.Time{}, false
	}
	return f.TakenAt, true
}

// Compile-time check
var _ ct.FilesystemManager = (*MockFilesystemManager)(nil)
