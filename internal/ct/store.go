package ct

import "sort"

// RecordStore owns every ImageRecord, keyed by its stable ID. Indices and tags
// refer to records by ID only.
type RecordStore struct {
	records map[string]*ImageRecord
}

// NewRecordStore creates an empty store.
func NewRecordStore() *RecordStore {
	return &RecordStore{records: make(map[string]*ImageRecord)}
}

// Get returns the record with the given ID, or nil.
func (s *RecordStore) Get(id string) *ImageRecord {
	return s.records[id]
}

// Put adds or replaces a record.
func (s *RecordStore) Put(rec *ImageRecord) {
	s.records[rec.ID] = rec
}

// Delete removes a record.
func (s *RecordStore) Delete(id string) {
	delete(s.records, id)
}

// Len returns the number of records.
func (s *RecordStore) Len() int { return len(s.records) }

// All returns every record ordered by ID.
func (s *RecordStore) All() []*ImageRecord {
	out := make([]*ImageRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
