package database

import "ct-go/internal/ct"

// MemoryStateStore keeps the state in memory only. Nothing survives the
// process; it backs tests and the "memory" state type.
type MemoryStateStore struct {
	state *ct.State
	saves int
}

// NewMemoryStateStore creates an empty in-memory store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{}
}

func (m *MemoryStateStore) Load() (*ct.State, error) {
	if m.state == nil {
		return ct.NewState(), nil
	}
	return m.state, nil
}

func (m *MemoryStateStore) Save(st *ct.State) error {
	st.Generation++
	m.state = st
	m.saves++
	return nil
}

func (m *MemoryStateStore) Path() string { return "" }

// Saves returns how many times Save was called.
func (m *MemoryStateStore) Saves() int { return m.saves }
