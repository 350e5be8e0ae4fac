package ct

import "errors"

var (
	// ErrFilenameTaken is returned by FilesystemManager when the target name is
	// already occupied. It is recoverable: callers may retry with a suffixed name.
	ErrFilenameTaken = errors.New("file name already taken")

	// ErrDuplicateTag is returned when creating or registering a tag whose name
	// is already registered.
	ErrDuplicateTag = errors.New("tag already exists")

	// ErrInvalidTagName is returned for tag names that cannot be encoded into a
	// file name unambiguously.
	ErrInvalidTagName = errors.New("invalid tag name")

	ErrTagNotFound        = errors.New("tag not found")
	ErrImageNotFound      = errors.New("image not found")
	ErrRevisionOutOfRange = errors.New("revision index out of range")

	// ErrCancelled is returned when the user declines a confirmation.
	ErrCancelled = errors.New("cancelled")

	// ErrCorruptState is returned by a StateStore when a snapshot exists but
	// cannot be restored.
	ErrCorruptState = errors.New("state snapshot is corrupt")
)
