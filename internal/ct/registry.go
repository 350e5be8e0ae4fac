package ct

import (
	"fmt"
	"regexp"
	"strings"
)

// TagRegistry holds every known tag, unique by name, in insertion order.
type TagRegistry struct {
	tags   []*Tag
	byName map[string]*Tag
}

// NewTagRegistry creates an empty registry.
func NewTagRegistry() *TagRegistry {
	return &TagRegistry{byName: make(map[string]*Tag)}
}

// Add registers a tag. Registering a second tag with the same name fails with
// ErrDuplicateTag.
func (r *TagRegistry) Add(tag *Tag) error {
	if _, ok := r.byName[tag.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTag, tag.Name)
	}
	r.tags = append(r.tags, tag)
	r.byName[tag.Name] = tag
	return nil
}

// Find returns the tag with the given name, or nil.
func (r *TagRegistry) Find(name string) *Tag {
	return r.byName[name]
}

// List returns all tags in insertion order.
func (r *TagRegistry) List() []*Tag {
	out := make([]*Tag, len(r.tags))
	copy(out, r.tags)
	return out
}

// Len returns the number of registered tags.
func (r *TagRegistry) Len() int { return len(r.tags) }

// Replace swaps the registry contents wholesale. Used when restoring state.
func (r *TagRegistry) Replace(tags []*Tag) error {
	byName := make(map[string]*Tag, len(tags))
	for _, t := range tags {
		if _, ok := byName[t.Name]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateTag, t.Name)
		}
		byName[t.Name] = t
	}
	r.tags = append([]*Tag(nil), tags...)
	r.byName = byName
	return nil
}

// Remove unregisters the tag with the given name. It reports whether a tag was removed.
func (r *TagRegistry) Remove(name string) bool {
	if _, ok := r.byName[name]; !ok {
		return false
	}
	delete(r.byName, name)
	for i, t := range r.tags {
		if t.Name == name {
			r.tags = append(r.tags[:i], r.tags[i+1:]...)
			break
		}
	}
	return true
}

// Search returns the tags whose lowercased name matches pattern, in insertion
// order. An empty pattern matches every tag.
func (r *TagRegistry) Search(pattern string) ([]*Tag, error) {
	pattern = strings.ToLower(pattern)
	if pattern == "" {
		return r.List(), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling tag pattern: %w", err)
	}
	var out []*Tag
	for _, t := range r.tags {
		if re.MatchString(strings.ToLower(t.Name)) {
			out = append(out, t)
		}
	}
	return out, nil
}
