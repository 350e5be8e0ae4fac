package ct

import (
	"fmt"
	"regexp"
	"strings"
)

// SearchImages filters the session by name. The query is lowercased and '@'
// characters are dropped. A query wrapped in ^...$ is used as a regular
// expression; anything else must match at the start of a word.
// An empty query returns the whole session.
func (s *CTService) SearchImages(query string) ([]*ImageRecord, error) {
	q := strings.ToLower(strings.ReplaceAll(query, TagPrefix, ""))
	q = strings.TrimSpace(q)
	if q == "" {
		return s.session.Records(), nil
	}

	pattern := `\b` + regexp.QuoteMeta(q)
	if len(q) >= 2 && strings.HasPrefix(q, "^") && strings.HasSuffix(q, "$") {
		pattern = q
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling image query: %w", err)
	}

	var out []*ImageRecord
	for _, rec := range s.session.Records() {
		name := strings.ToLower(strings.ReplaceAll(rec.CurrentName, TagPrefix, ""))
		if re.MatchString(name) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// SearchTags returns the tags whose name matches pattern, ignoring case.
func (s *CTService) SearchTags(pattern string) ([]*Tag, error) {
	return s.state.Tags.Search(pattern)
}
