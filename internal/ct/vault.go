package ct

import "io"

// Vault stores copies of the state snapshot away from the data directory.
// All operations stream through io.Reader/io.Writer.
type Vault interface {
	// PutSnapshot stores the snapshot for a host. size is the number of bytes
	// that will be read from r. generation is stored alongside for consistency checks.
	PutSnapshot(hostID string, r io.Reader, size int64, generation int64) error

	// GetSnapshot retrieves the snapshot for a host and writes it to w.
	GetSnapshot(hostID string, w io.Writer) error

	// SnapshotGeneration returns the stored generation, or 0 if none was stored.
	SnapshotGeneration(hostID string) (int64, error)

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup() error
}
