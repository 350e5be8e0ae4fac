package ct

import (
	"fmt"
	"strings"
	"unicode"
)

// TagPrefix marks a tag token inside a file name.
const TagPrefix = "@"

// Encode builds the on-disk name for base carrying tags, in order:
//
//	@tag1 @tag2 base.jpg
//
// Tag names are not validated here; see ValidateTagName.
func Encode(tags []string, base string) string {
	if len(tags) == 0 {
		return base
	}
	var b strings.Builder
	for _, t := range tags {
		b.WriteString(TagPrefix)
		b.WriteString(t)
		b.WriteByte(' ')
	}
	b.WriteString(base)
	return b.String()
}

// Decode splits a file name into its tags and base name.
// Tags are the leading run of whitespace-delimited tokens starting with '@'.
// Whatever follows is the base name, kept byte-for-byte. The final token of a
// name is always part of the base, even when it starts with '@'.
// Repeated and empty tags are dropped.
func Decode(name string) (tags []string, base string) {
	rest := name
	consumed := false
	seen := make(map[string]bool)

	for {
		trimmed := strings.TrimLeftFunc(rest, unicode.IsSpace)
		if !strings.HasPrefix(trimmed, TagPrefix) {
			break
		}
		end := strings.IndexFunc(trimmed, unicode.IsSpace)
		if end < 0 {
			break
		}
		tag := trimmed[len(TagPrefix):end]
		rest = trimmed[end:]
		consumed = true
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}

	if !consumed {
		return nil, name
	}
	return tags, strings.TrimLeftFunc(rest, unicode.IsSpace)
}

// ValidateTagName rejects names that would not survive a round trip through
// Encode and Decode, or that cannot appear in a file name.
func ValidateTagName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidTagName)
	}
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			return fmt.Errorf("%w: %q contains whitespace", ErrInvalidTagName, name)
		case r == '@':
			return fmt.Errorf("%w: %q contains '@'", ErrInvalidTagName, name)
		case r == '/' || r == '\\' || r == 0:
			return fmt.Errorf("%w: %q contains a path separator", ErrInvalidTagName, name)
		}
	}
	return nil
}
