package ct

import "sort"

// Tag is a user-defined label. Two tags are the same tag iff their names match.
// A tag keeps the IDs of the records carrying it; it does not own them.
type Tag struct {
	Name   string
	images map[string]struct{}
}

// NewTag creates a tag with no images.
func NewTag(name string) *Tag {
	return &Tag{Name: name, images: make(map[string]struct{})}
}

func (t *Tag) String() string { return t.Name }

// ImageIDs returns the IDs of records carrying this tag, sorted.
func (t *Tag) ImageIDs() []string {
	ids := make([]string, 0, len(t.images))
	for id := range t.images {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ImageCount returns the number of records carrying this tag.
func (t *Tag) ImageCount() int { return len(t.images) }

// HasImage reports whether the record with the given ID carries this tag.
func (t *Tag) HasImage(id string) bool {
	_, ok := t.images[id]
	return ok
}

func (t *Tag) link(id string) {
	if t.images == nil {
		t.images = make(map[string]struct{})
	}
	t.images[id] = struct{}{}
}

func (t *Tag) unlink(id string) { delete(t.images, id) }
