package ct

import (
	"fmt"
	"path/filepath"
)

// ScanAndIndex opens dir as the new session: it resets the session index,
// records dir as visited, and indexes every accepted image under it. Files
// already known to the durable index reuse their records; new files get new
// records with the tags parsed from their names.
// Returns the number of images indexed.
func (s *CTService) ScanAndIndex(dir string) (int, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("resolving %s: %w", dir, err)
	}

	files, err := s.fsmgr.Scan(dir, s.extensions)
	if err != nil {
		return 0, fmt.Errorf("scanning %s: %w", dir, err)
	}

	s.session.Clear()
	s.sessionRoot = dir
	s.state.Durable.AddVisited(dir)
	s.modified = true

	for _, path := range files {
		rec := s.state.Durable.LookupByFile(path)
		if rec == nil {
			rec = s.newRecord(path)
		}
		s.session.AddOrRekey(rec)
	}

	s.logger.Info("directory indexed", "dir", dir, "images", len(files))
	return len(files), nil
}
