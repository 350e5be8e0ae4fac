package ct

import (
	"errors"
	"fmt"
)

// Tags returns every registered tag in insertion order.
func (s *CTService) Tags() []*Tag {
	return s.state.Tags.List()
}

// CreateTag registers a new tag with no images.
func (s *CTService) CreateTag(name string) (*Tag, error) {
	if err := ValidateTagName(name); err != nil {
		return nil, err
	}
	if s.state.Tags.Find(name) != nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTag, name)
	}
	tag := NewTag(name)
	if err := s.state.Tags.Add(tag); err != nil {
		return nil, err
	}
	s.modified = true
	s.logger.Info("tag created", "tag", name)
	return tag, nil
}

// DeleteTag removes a tag from every record carrying it, renaming each file,
// and then from the registry. Tags with images need confirmation; declining
// returns ErrCancelled. If any file cannot be renamed the tag stays registered
// and the failures are returned together.
func (s *CTService) DeleteTag(name string) error {
	tag := s.state.Tags.Find(name)
	if tag == nil {
		return fmt.Errorf("%w: %s", ErrTagNotFound, name)
	}

	if n := tag.ImageCount(); n > 0 {
		prompt := fmt.Sprintf("Tag %q is used by %d image(s). Remove it from all of them?", name, n)
		if !s.prompter.ConfirmYesNo(prompt) {
			return ErrCancelled
		}
	}

	var errs []error
	for _, id := range tag.ImageIDs() {
		rec := s.state.Records.Get(id)
		if rec == nil {
			tag.unlink(id)
			continue
		}
		if err := s.CommitRename(rec, without(rec.Tags, name)); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("deleting tag %s: %w", name, errors.Join(errs...))
	}

	s.state.Tags.Remove(name)
	s.modified = true
	s.logger.Info("tag deleted", "tag", name)
	return nil
}

// AddTags appends tags the record does not carry yet and commits the rename.
func (s *CTService) AddTags(rec *ImageRecord, names ...string) error {
	tags := rec.TagsCopy()
	for _, n := range names {
		if !rec.HasTag(n) {
			tags = append(tags, n)
		}
	}
	return s.CommitRename(rec, tags)
}

// RemoveTags drops the named tags from the record and commits the rename.
func (s *CTService) RemoveTags(rec *ImageRecord, names ...string) error {
	tags := rec.TagsCopy()
	for _, n := range names {
		tags = without(tags, n)
	}
	return s.CommitRename(rec, tags)
}

// setRecordTags makes names the record's tag list and updates the reverse
// links, registering unknown tags.
func (s *CTService) setRecordTags(rec *ImageRecord, names []string) {
	names = uniqueTags(names)
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[n] = true
	}
	for _, old := range rec.Tags {
		if keep[old] {
			continue
		}
		if t := s.state.Tags.Find(old); t != nil {
			t.unlink(rec.ID)
		}
	}
	for _, n := range names {
		s.ensureTag(n).link(rec.ID)
	}
	rec.Tags = names
}

func (s *CTService) ensureTag(name string) *Tag {
	if t := s.state.Tags.Find(name); t != nil {
		return t
	}
	t := NewTag(name)
	if err := s.state.Tags.Add(t); err != nil {
		s.logger.Error("registering tag from file name", "tag", name, "error", err)
		if existing := s.state.Tags.Find(name); existing != nil {
			return existing
		}
	}
	s.logger.Debug("tag registered from file name", "tag", name)
	return t
}

func without(tags []string, name string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != name {
			out = append(out, t)
		}
	}
	return out
}
