package fs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"ct-go/internal/ct"
)

// OSFilesystemManager is the real filesystem implementation of FilesystemManager.
// It never overwrites an existing file.
type OSFilesystemManager struct {
	ignore   []string
	readExif bool
	logger   ct.Logger
}

// NewOSFilesystemManager creates a filesystem manager that operates on the real filesystem.
// ignore holds patterns applied on every scan, in addition to the scanned
// directory's .ctignore file.
func NewOSFilesystemManager(ignore []string, readExif bool, logger ct.Logger) *OSFilesystemManager {
	if logger == nil {
		logger = ct.NewNopLogger()
	}
	return &OSFilesystemManager{ignore: ignore, readExif: readExif, logger: logger}
}

// Rename renames the file at path within its directory.
func (m *OSFilesystemManager) Rename(path, newName string) error {
	if err := checkName(newName); err != nil {
		return err
	}
	target := filepath.Join(filepath.Dir(path), newName)
	if err := ensureFree(path, target); err != nil {
		return err
	}
	if err := os.Rename(path, target); err != nil {
		return fmt.Errorf("renaming file: %w", err)
	}
	m.logger.Debug("file renamed", "from", path, "to", target)
	return nil
}

// Move relocates the file at path to destDir/name. Moves across filesystems
// fall back to copy and remove.
func (m *OSFilesystemManager) Move(path, destDir, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	info, err := os.Stat(destDir)
	if err != nil {
		return fmt.Errorf("stat destination: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("destination is not a directory: %s", destDir)
	}

	target := filepath.Join(destDir, name)
	if err := ensureFree(path, target); err != nil {
		return err
	}

	err = os.Rename(path, target)
	if err != nil && isCrossDevice(err) {
		err = copyAndRemove(path, target)
	}
	if err != nil {
		return fmt.Errorf("moving file: %w", err)
	}
	m.logger.Debug("file moved", "from", path, "to", target)
	return nil
}

// SuffixedName returns the first free "<base> (<n>)<ext>" in dir.
func (m *OSFilesystemManager) SuffixedName(dir, name string, exclude []string) string {
	excluded := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		excluded[e] = true
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		if excluded[candidate] {
			continue
		}
		if _, err := os.Lstat(filepath.Join(dir, candidate)); errors.Is(err, fs.ErrNotExist) {
			return candidate
		}
	}
}

// Scan recursively discovers image files under dir. Ignored directories are
// not descended into. Any walk error aborts the scan.
func (m *OSFilesystemManager) Scan(dir string, exts []string) ([]string, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", root)
	}

	filePatterns, err := ParseIgnoreFile(filepath.Join(root, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	matcher := NewIgnoreMatcher(append(append([]string(nil), m.ignore...), filePatterns...))

	accepted := make(map[string]bool, len(exts))
	for _, e := range exts {
		accepted[strings.ToLower(e)] = true
	}

	var paths []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if matcher.MatchDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || matcher.Match(rel) {
			return nil
		}
		if accepted[strings.ToLower(filepath.Ext(p))] {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	sort.Strings(paths)
	m.logger.Debug("directory scanned", "dir", root, "files", len(paths))
	return paths, nil
}

// CaptureTime returns the EXIF capture time of an image.
func (m *OSFilesystemManager) CaptureTime(path string) (time.Time, bool) {
	if !m.readExif {
		return time.Time{}, false
	}
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, false
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, false
	}
	t, err := x.DateTime()
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		return fmt.Errorf("invalid file name %q", name)
	}
	return nil
}

// ensureFree fails with ct.ErrFilenameTaken if target exists and is not the
// source file itself (a case-only rename on a case-insensitive filesystem).
func ensureFree(source, target string) error {
	targetInfo, err := os.Lstat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat target: %w", err)
	}
	if source != target {
		if sourceInfo, err := os.Lstat(source); err == nil && os.SameFile(sourceInfo, targetInfo) {
			return nil
		}
	}
	return fmt.Errorf("%s: %w", target, ct.ErrFilenameTaken)
}

func copyAndRemove(source, target string) error {
	info, err := os.Stat(source)
	if err != nil {
		return err
	}
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(target)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(target)
		return err
	}
	if err := os.Chtimes(target, info.ModTime(), info.ModTime()); err != nil {
		return err
	}
	return os.Remove(source)
}

// Compile-time check that OSFilesystemManager implements ct.FilesystemManager interface
var _ ct.FilesystemManager = (*OSFilesystemManager)(nil)
