package ct

import "fmt"

// State is the durable half of the application: every known tag, every known
// record, and the durable index over them. It is what the StateStore persists.
type State struct {
	Tags    *TagRegistry
	Records *RecordStore
	Durable *ImageIndex

	// Generation increases on every save. Vault uploads are versioned by it.
	Generation int64
}

// NewState creates an empty state.
func NewState() *State {
	store := NewRecordStore()
	return &State{
		Tags:    NewTagRegistry(),
		Records: store,
		Durable: NewImageIndex(store),
	}
}

// StateStore loads and saves State snapshots.
type StateStore interface {
	// Load returns the saved state, or an empty state if none was saved.
	// A snapshot that exists but cannot be restored yields ErrCorruptState.
	Load() (*State, error)

	// Save writes a full snapshot of st.
	Save(st *State) error

	// Path returns where the snapshot lives, or "" for non-file stores.
	Path() string
}

// Relink rebuilds every tag's image set from the records' tag lists.
// It fails if a record refers to a tag that is not registered.
func (st *State) Relink() error {
	for _, t := range st.Tags.List() {
		t.images = make(map[string]struct{})
	}
	for _, rec := range st.Records.All() {
		for _, name := range rec.Tags {
			t := st.Tags.Find(name)
			if t == nil {
				return fmt.Errorf("record %s refers to unknown tag %q", rec.ID, name)
			}
			t.link(rec.ID)
		}
	}
	return nil
}
