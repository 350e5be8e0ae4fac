package ct

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// CommitRename renames rec's file so that it carries exactly tags, in order.
//
// On success the previous tag list is appended to the tag history, a revision
// is logged, tag links are re-derived from the new name, and both indices are
// re-keyed. If the target name is taken the prompter is offered a suffixed
// alternative; declining leaves everything unchanged and returns
// ErrFilenameTaken. Any other filesystem failure is reported to the prompter
// and returned without changing state.
//
// Only tags rec does not already carry are validated, so names that arrived
// on disk with unusual tags can still be edited.
func (s *CTService) CommitRename(rec *ImageRecord, tags []string) error {
	tags = uniqueTags(tags)
	if err := validateNewTags(tags, rec.Tags); err != nil {
		s.prompter.ReportError(err.Error())
		return err
	}
	return s.commitName(rec, Encode(tags, rec.OriginalName))
}

// RevertTo renames rec back to the name it had before revision i.
func (s *CTService) RevertTo(rec *ImageRecord, i int) error {
	if i < 0 || i >= len(rec.Revisions) {
		return fmt.Errorf("%w: %d (have %d)", ErrRevisionOutOfRange, i, len(rec.Revisions))
	}
	target := rec.Revisions[i].OldName
	if err := s.commitName(rec, target); err != nil {
		return fmt.Errorf("reverting %s to revision %d: %w", rec.CurrentName, i, err)
	}
	s.logger.Info("image reverted", "image", rec.CurrentName, "revision", i)
	return nil
}

// MoveRecord moves rec's file into destDir, keeping its name unless the name
// is taken there and the prompter accepts a suffixed one.
// The session keeps the record only if destDir lies under the session root.
func (s *CTService) MoveRecord(rec *ImageRecord, destDir string) error {
	destDir = filepath.Clean(destDir)
	if destDir == rec.Dir {
		return nil
	}

	name := rec.CurrentName
	for {
		err := s.fsmgr.Move(rec.Path(), destDir, name)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrFilenameTaken) {
			s.prompter.ReportError(fmt.Sprintf("There was an error moving %s", rec.CurrentName))
			return fmt.Errorf("moving %s to %s: %w", rec.Path(), destDir, err)
		}
		next, ok := s.offerSuffixed(destDir, name, nil)
		if !ok {
			return fmt.Errorf("moving %s to %s: %w", rec.Path(), destDir, ErrFilenameTaken)
		}
		name = next
	}

	durableKey, inDurable := s.state.Durable.KeyOf(rec.ID)
	sessionKey, inSession := s.session.KeyOf(rec.ID)
	oldPath := rec.Path()

	rec.Dir = destDir
	if name != rec.CurrentName {
		s.recordRevision(rec, name)
	}

	if inDurable {
		s.state.Durable.Rekey(durableKey)
	} else {
		s.state.Durable.AddOrRekey(rec)
	}
	intoSession := s.sessionRoot != "" && isWithin(s.sessionRoot, destDir)
	switch {
	case inSession && intoSession:
		s.session.Rekey(sessionKey)
	case inSession:
		s.session.Remove(rec)
	case intoSession:
		s.session.AddOrRekey(rec)
	}

	s.modified = true
	s.logger.Info("image moved", "from", oldPath, "to", rec.Path())
	return nil
}

// commitName renames rec's file to newName and applies the result to state.
func (s *CTService) commitName(rec *ImageRecord, newName string) error {
	if newName == rec.CurrentName {
		return nil
	}

	name := newName
	for {
		err := s.fsmgr.Rename(rec.Path(), name)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrFilenameTaken) {
			s.prompter.ReportError(fmt.Sprintf("There was an error renaming %s", rec.CurrentName))
			return fmt.Errorf("renaming %s to %s: %w", rec.CurrentName, name, err)
		}
		next, ok := s.offerSuffixed(rec.Dir, name, s.state.Durable.Keys())
		if !ok {
			return fmt.Errorf("renaming %s to %s: %w", rec.CurrentName, name, ErrFilenameTaken)
		}
		name = next
	}

	durableKey, inDurable := s.state.Durable.KeyOf(rec.ID)
	sessionKey, inSession := s.session.KeyOf(rec.ID)
	oldName := rec.CurrentName

	s.recordRevision(rec, name)

	if inDurable {
		s.state.Durable.Rekey(durableKey)
	} else {
		s.state.Durable.AddOrRekey(rec)
	}
	if inSession {
		s.session.Rekey(sessionKey)
	}

	s.modified = true
	s.logger.Info("image renamed", "old", oldName, "new", name)
	return nil
}

// recordRevision switches rec to newName: the old tags go to the history, a
// log entry is appended, and the tags are re-derived from newName.
func (s *CTService) recordRevision(rec *ImageRecord, newName string) {
	rec.TagHistory = append(rec.TagHistory, rec.TagsCopy())
	rec.Revisions = append(rec.Revisions, LogEntry{
		CurrentName: newName,
		OldName:     rec.CurrentName,
		Timestamp:   s.clock.Now().UTC().Format(TimestampLayout),
	})
	rec.CurrentName = newName

	tags, _ := Decode(newName)
	s.setRecordTags(rec, tags)
}

// offerSuffixed proposes a free variant of name in dir and returns the name
// the prompter accepted.
func (s *CTService) offerSuffixed(dir, name string, exclude []string) (string, bool) {
	proposed := s.fsmgr.SuffixedName(dir, name, exclude)
	accepted, ok := s.prompter.AcceptSuffixedName(proposed)
	if !ok {
		return "", false
	}
	if accepted == "" || accepted == name || strings.ContainsAny(accepted, `/\`) {
		s.prompter.ReportError(fmt.Sprintf("%q is not a usable file name", accepted))
		return "", false
	}
	typed, _ := Decode(accepted)
	kept, _ := Decode(name)
	if err := validateNewTags(typed, kept); err != nil {
		s.prompter.ReportError(err.Error())
		return "", false
	}
	return accepted, true
}

// validateNewTags checks the tags in tags that are not already in existing.
func validateNewTags(tags, existing []string) error {
	for _, t := range tags {
		if slices.Contains(existing, t) {
			continue
		}
		if err := ValidateTagName(t); err != nil {
			return err
		}
	}
	return nil
}

func isWithin(root, dir string) bool {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func uniqueTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
