package vault

import "errors"

// ErrSnapshotNotFound is returned by GetSnapshot when a host has no snapshot.
var ErrSnapshotNotFound = errors.New("snapshot not found")
