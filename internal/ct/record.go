package ct

import (
	"path/filepath"
	"time"
)

// LogEntry is one committed name change of an image record. Immutable once created.
type LogEntry struct {
	CurrentName string
	OldName     string
	Timestamp   string
}

// ImageRecord is one tracked image file.
//
// CurrentName is always the base name of the file on disk, and decoding it
// yields Tags after every committed rename. OriginalName is the untagged base
// name the record was discovered with; it never changes.
type ImageRecord struct {
	ID           string
	OriginalName string
	CurrentName  string
	Dir          string
	Tags         []string
	TagHistory   [][]string
	Revisions    []LogEntry
	TakenAt      time.Time
}

// NewImageRecord creates a record for the file at path. Tags encoded in the
// file name are not linked here; the service does that against its registry.
func NewImageRecord(id, path string) *ImageRecord {
	name := filepath.Base(path)
	_, base := Decode(name)
	return &ImageRecord{
		ID:           id,
		OriginalName: base,
		CurrentName:  name,
		Dir:          filepath.Dir(path),
	}
}

// Path returns the absolute path of the file on disk.
func (r *ImageRecord) Path() string {
	return filepath.Join(r.Dir, r.CurrentName)
}

// HasTag reports whether the record carries the named tag.
func (r *ImageRecord) HasTag(name string) bool {
	for _, t := range r.Tags {
		if t == name {
			return true
		}
	}
	return false
}

// TagsCopy returns a copy of the record's tag list.
func (r *ImageRecord) TagsCopy() []string {
	return append([]string(nil), r.Tags...)
}
