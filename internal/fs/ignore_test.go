package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewIgnoreMatcher(t *testing.T) {
	t.Run("skips blank lines and comments", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"", "  ", "# comment", "*.xmp", "/"})
		if len(m.patterns) != 1 {
			t.Fatalf("expected 1 pattern, got %d", len(m.patterns))
		}
		if m.patterns[0].pattern != "*.xmp" {
			t.Errorf("expected *.xmp, got %s", m.patterns[0].pattern)
		}
	})

	t.Run("classifies pattern kinds", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"*.xmp", "raw/originals", "cache/"})
		if m.patterns[0].matchPath || m.patterns[0].dirOnly {
			t.Error("*.xmp should be a basename file-or-dir pattern")
		}
		if !m.patterns[1].matchPath {
			t.Error("raw/originals should be a path pattern")
		}
		if !m.patterns[2].dirOnly || m.patterns[2].pattern != "cache" {
			t.Errorf("cache/ should be a directory-only pattern, got %+v", m.patterns[2])
		}
	})
}

func TestIgnoreMatcher(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		path     string
		isDir    bool
		want     bool
	}{
		{"basename glob in root", []string{"*.xmp"}, "a.xmp", false, true},
		{"basename glob in subdirectory", []string{"*.xmp"}, filepath.Join("2024", "a.xmp"), false, true},
		{"basename glob other extension", []string{"*.xmp"}, "a.jpg", false, false},
		{"exact basename", []string{".DS_Store"}, filepath.Join("sub", ".DS_Store"), false, true},
		{"path pattern", []string{"raw/originals"}, filepath.Join("raw", "originals"), true, true},
		{"path pattern wrong parent", []string{"raw/originals"}, filepath.Join("edit", "originals"), true, false},
		{"path glob", []string{"raw/*.jpg"}, filepath.Join("raw", "a.jpg"), false, true},
		{"directory pattern skips dir", []string{"thumbs/"}, filepath.Join("2024", "thumbs"), true, true},
		{"directory pattern ignores files", []string{"thumbs/"}, "thumbs", false, false},
		{"plain pattern matches dir", []string{".thumbnails"}, ".thumbnails", true, true},
		{"character class", []string{"*.[jp]pg"}, "a.ppg", false, true},
		{"no patterns", nil, "a.jpg", false, false},
		{"bad pattern is skipped", []string{"[", "*.tmp"}, "x.tmp", false, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewIgnoreMatcher(tt.patterns)
			var got bool
			if tt.isDir {
				got = m.MatchDir(tt.path)
			} else {
				got = m.Match(tt.path)
			}
			if got != tt.want {
				t.Errorf("match(%q, dir=%v) = %v, want %v", tt.path, tt.isDir, got, tt.want)
			}
		})
	}
}

func TestParseIgnoreFile(t *testing.T) {
	t.Run("reads patterns from file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), IgnoreFileName)
		content := "*.xmp\n# sidecars\n\nthumbs/\nraw/originals\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("writing test file: %v", err)
		}

		patterns, err := ParseIgnoreFile(path)
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		// Raw lines are returned as-is; NewIgnoreMatcher does the filtering.
		if len(patterns) != 5 {
			t.Fatalf("expected 5 raw lines, got %d", len(patterns))
		}
		if m := NewIgnoreMatcher(patterns); len(m.patterns) != 3 {
			t.Errorf("expected 3 parsed patterns, got %d", len(m.patterns))
		}
	})

	t.Run("returns nil for missing file", func(t *testing.T) {
		t.Parallel()
		patterns, err := ParseIgnoreFile(filepath.Join(t.TempDir(), IgnoreFileName))
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		if patterns != nil {
			t.Errorf("expected nil patterns, got %v", patterns)
		}
	})
}
