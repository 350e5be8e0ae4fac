package ct

import "sort"

// MasterLogEntry is a revision together with the record it belongs to.
type MasterLogEntry struct {
	RecordID string
	Key      string
	LogEntry
}

// RevisionLog returns a copy of rec's revisions, oldest first.
func (s *CTService) RevisionLog(rec *ImageRecord) []LogEntry {
	return append([]LogEntry(nil), rec.Revisions...)
}

// MasterLog returns every revision of every durable record ordered by time.
func (s *CTService) MasterLog() []MasterLogEntry {
	var out []MasterLogEntry
	for _, rec := range s.state.Durable.Records() {
		key, _ := s.state.Durable.KeyOf(rec.ID)
		for _, e := range rec.Revisions {
			out = append(out, MasterLogEntry{RecordID: rec.ID, Key: key, LogEntry: e})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}
