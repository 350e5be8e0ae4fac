package ct

import "time"

// AcceptedExtensions are the image extensions picked up by a directory scan.
var AcceptedExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif"}

// FilesystemManager provides the file operations the service needs.
// It knows nothing about tags. Implementations never overwrite an existing file.
type FilesystemManager interface {
	// Rename renames the file at path to newName within the same directory.
	// Returns ErrFilenameTaken if newName already exists there; any other
	// error means the rename failed and the file is untouched.
	Rename(path, newName string) error

	// Move relocates the file at path into destDir under name.
	// Returns ErrFilenameTaken if destDir already holds a file called name.
	Move(path, destDir, name string) error

	// SuffixedName returns "<base> (<n>)<ext>" for the smallest n >= 1 such that
	// no file of that name exists in dir and the name is not in exclude.
	SuffixedName(dir, name string, exclude []string) string

	// Scan recursively lists files under dir whose lowercased extension is in
	// exts, as sorted absolute paths. It fails if dir is not a directory.
	Scan(dir string, exts []string) ([]string, error)

	// CaptureTime returns the time an image was taken, if the file records it.
	CaptureTime(path string) (time.Time, bool)
}
