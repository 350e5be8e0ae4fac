package vault

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"ct-go/internal/ct"
)

// MemoryVault is an in-memory implementation of the Vault interface.
// Useful for testing. Safe for concurrent use.
type MemoryVault struct {
	name        string
	snapshots   map[string][]byte // hostID -> snapshot
	generations map[string]int64  // hostID -> generation
	mu          sync.RWMutex
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:        name,
		snapshots:   make(map[string][]byte),
		generations: make(map[string]int64),
	}
}

// PutSnapshot stores the snapshot for a host.
func (m *MemoryVault) PutSnapshot(hostID string, r io.Reader, size int64, generation int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshots[hostID] = data
	m.generations[hostID] = generation
	return nil
}

// GetSnapshot writes the stored snapshot for a host to w.
func (m *MemoryVault) GetSnapshot(hostID string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.snapshots[hostID]
	if !ok {
		return fmt.Errorf("%w for host: %s", ErrSnapshotNotFound, hostID)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// SnapshotGeneration returns the stored generation for a host, or 0.
func (m *MemoryVault) SnapshotGeneration(hostID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.generations[hostID], nil
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup() error {
	return nil
}

// Compile-time check that MemoryVault implements ct.Vault interface
var _ ct.Vault = (*MemoryVault)(nil)
