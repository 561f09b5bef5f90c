package types

import (
	"io/fs"
	"time"
)

// FS is the filesystem interface required for claupack operations.
// The OS-backed implementation lives in pkg/filesystem; tests use the
// afero-backed one.
type FS interface {
	// File operations
	Stat(name string) (fs.FileInfo, error)
	Lstat(name string) (fs.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm fs.FileMode) error

	// Directory operations
	MkdirAll(path string, perm fs.FileMode) error
	ReadDir(name string) ([]fs.FileInfo, error)

	// Rename must be atomic when oldpath and newpath share a parent
	// directory; the state store's write protocol depends on it.
	Rename(oldpath, newpath string) error

	// CreateExclusive creates name with O_EXCL semantics, failing if it
	// already exists. The state store's lock marker depends on it.
	CreateExclusive(name string, data []byte, perm fs.FileMode) error

	Remove(name string) error
	RemoveAll(path string) error
}

// Prompter asks the user a yes/no question, returning def when the
// question cannot be answered within timeout or no interactive
// terminal is attached.
type Prompter interface {
	AskYesNo(message string, def bool, timeout time.Duration) bool
}

// SourceControl is the collaborator that produces and refreshes local
// working copies. The deployment engine only ever consumes the
// resulting local path.
type SourceControl interface {
	Clone(url, path string) error
	Pull(path string) (*ChangeSummary, error)
	LatestCommit(path string) (string, error)
}

// ChangeSummary describes what a pull changed in a working copy.
type ChangeSummary struct {
	FilesChanged   int
	Insertions     int
	Deletions      int
	CurrentCommit  string
	PreviousCommit string
}
