package ct

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// ImageIndex maps image names to records held in a RecordStore.
//
// A key is the record's CurrentName. When a different file already owns that
// name, the record is keyed by its directory-qualified name instead
// ("parent/name", then "grandparent/parent/name", ...).
type ImageIndex struct {
	store   *RecordStore
	byKey   map[string]string // key -> record ID
	keyOf   map[string]string // record ID -> key
	visited []string
}

// NewImageIndex creates an empty index over store.
func NewImageIndex(store *RecordStore) *ImageIndex {
	return &ImageIndex{
		store: store,
		byKey: make(map[string]string),
		keyOf: make(map[string]string),
	}
}

// AddOrRekey inserts rec under its current name, disambiguating against other
// files that already own the name. If rec is already indexed its old key is
// dropped. Returns the key used.
func (ix *ImageIndex) AddOrRekey(rec *ImageRecord) string {
	if old, ok := ix.keyOf[rec.ID]; ok {
		delete(ix.byKey, old)
	}

	key := rec.CurrentName
	for depth := 1; ; depth++ {
		id, taken := ix.byKey[key]
		if !taken || id == rec.ID {
			break
		}
		if other := ix.store.Get(id); other == nil || other.Path() == rec.Path() {
			// Stale entry or another record for the same file: take it over.
			delete(ix.keyOf, id)
			break
		}
		next := qualifiedKey(rec.Dir, rec.CurrentName, depth)
		if next == key {
			break
		}
		key = next
	}

	ix.byKey[key] = rec.ID
	ix.keyOf[rec.ID] = key
	return key
}

// Rekey removes the entry at oldKey and reinserts the same record under its
// updated current name. It reports whether oldKey was present.
func (ix *ImageIndex) Rekey(oldKey string) bool {
	id, ok := ix.byKey[oldKey]
	if !ok {
		return false
	}
	delete(ix.byKey, oldKey)
	delete(ix.keyOf, id)

	rec := ix.store.Get(id)
	if rec == nil {
		return false
	}
	ix.AddOrRekey(rec)
	return true
}

// Put inserts rec under an exact key, as persisted. Used when restoring state.
func (ix *ImageIndex) Put(key string, rec *ImageRecord) error {
	if id, ok := ix.byKey[key]; ok && id != rec.ID {
		return fmt.Errorf("index key %q already used by record %s", key, id)
	}
	if old, ok := ix.keyOf[rec.ID]; ok {
		delete(ix.byKey, old)
	}
	ix.byKey[key] = rec.ID
	ix.keyOf[rec.ID] = key
	return nil
}

// Remove drops rec from the index.
func (ix *ImageIndex) Remove(rec *ImageRecord) {
	if key, ok := ix.keyOf[rec.ID]; ok {
		delete(ix.byKey, key)
		delete(ix.keyOf, rec.ID)
	}
}

// KeyOf returns the key a record is indexed under.
func (ix *ImageIndex) KeyOf(id string) (string, bool) {
	key, ok := ix.keyOf[id]
	return key, ok
}

// Contains reports whether the record with the given ID is indexed.
func (ix *ImageIndex) Contains(id string) bool {
	_, ok := ix.keyOf[id]
	return ok
}

// LookupByName returns the record indexed under name, or nil.
func (ix *ImageIndex) LookupByName(name string) *ImageRecord {
	id, ok := ix.byKey[name]
	if !ok {
		return nil
	}
	return ix.store.Get(id)
}

// LookupByFile returns the record for the file at path, or nil. It tries the
// file's base name first and falls back to scanning every record, since a
// disambiguated record is not keyed by its raw name.
func (ix *ImageIndex) LookupByFile(path string) *ImageRecord {
	path = filepath.Clean(path)
	if rec := ix.LookupByName(filepath.Base(path)); rec != nil && rec.Path() == path {
		return rec
	}
	for id := range ix.keyOf {
		if rec := ix.store.Get(id); rec != nil && rec.Path() == path {
			return rec
		}
	}
	return nil
}

// Exists reports whether name is a key of the index.
func (ix *ImageIndex) Exists(name string) bool {
	_, ok := ix.byKey[name]
	return ok
}

// ExistsFile reports whether the file at path is indexed.
func (ix *ImageIndex) ExistsFile(path string) bool {
	return ix.LookupByFile(path) != nil
}

// Keys returns all keys, sorted.
func (ix *ImageIndex) Keys() []string {
	keys := make([]string, 0, len(ix.byKey))
	for k := range ix.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Records returns the indexed records ordered by key.
func (ix *ImageIndex) Records() []*ImageRecord {
	keys := ix.Keys()
	out := make([]*ImageRecord, 0, len(keys))
	for _, k := range keys {
		if rec := ix.store.Get(ix.byKey[k]); rec != nil {
			out = append(out, rec)
		}
	}
	return out
}

// Len returns the number of entries.
func (ix *ImageIndex) Len() int { return len(ix.byKey) }

// Clear removes every entry. Visited directories are kept.
func (ix *ImageIndex) Clear() {
	ix.byKey = make(map[string]string)
	ix.keyOf = make(map[string]string)
}

// AddVisited records dir as the most recently visited directory.
func (ix *ImageIndex) AddVisited(dir string) {
	for i, v := range ix.visited {
		if v == dir {
			ix.visited = append(ix.visited[:i], ix.visited[i+1:]...)
			break
		}
	}
	ix.visited = append(ix.visited, dir)
}

// Visited returns visited directories, oldest first.
func (ix *ImageIndex) Visited() []string {
	return append([]string(nil), ix.visited...)
}

// LastVisited returns the most recently visited directory.
func (ix *ImageIndex) LastVisited() (string, bool) {
	if len(ix.visited) == 0 {
		return "", false
	}
	return ix.visited[len(ix.visited)-1], true
}

// qualifiedKey prefixes name with the last depth segments of dir. Once depth
// covers every segment it returns the full path.
func qualifiedKey(dir, name string, depth int) string {
	clean := filepath.ToSlash(filepath.Clean(dir))
	segments := strings.Split(strings.Trim(clean, "/"), "/")
	if depth >= len(segments) {
		return filepath.Join(dir, name)
	}
	parts := append(segments[len(segments)-depth:], name)
	return strings.Join(parts, "/")
}
