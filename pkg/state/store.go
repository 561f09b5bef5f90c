// Package state owns the persisted state document. The Store is the
// only component that reads or writes the file on disk; every
// mutation follows load, mutate in memory, atomic save under a lock
// marker. The Tracker layers the installation lifecycle, history log,
// validation and repair on top of the Store.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/claupack/pkg/errors"
	"github.com/arthur-debert/claupack/pkg/logging"
	"github.com/arthur-debert/claupack/pkg/paths"
	"github.com/arthur-debert/claupack/pkg/types"
)

// Lock acquisition defaults: a bounded poll, never an indefinite wait.
const (
	DefaultLockRetries = 10
	DefaultLockDelay   = 100 * time.Millisecond
)

// Store persists the state document with mutual exclusion across
// processes (lock marker file) and atomic replace-on-write.
type Store struct {
	fs          types.FS
	path        string
	lockPath    string
	lockRetries int
	lockDelay   time.Duration
	logger      zerolog.Logger

	corruptionDetected bool
}

// NewStore creates a store for the state document at the well-known
// path.
func NewStore(fs types.FS, p paths.Paths) *Store {
	return &Store{
		fs:          fs,
		path:        p.StateFilePath(),
		lockPath:    p.LockFilePath(),
		lockRetries: DefaultLockRetries,
		lockDelay:   DefaultLockDelay,
		logger:      logging.GetLogger("state"),
	}
}

// WithLockRetry overrides the lock acquisition bounds and returns the
// store for chaining.
func (s *Store) WithLockRetry(retries int, delay time.Duration) *Store {
	if retries > 0 {
		s.lockRetries = retries
	}
	if delay >= 0 {
		s.lockDelay = delay
	}
	return s
}

// Path returns the state document's on-disk location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the state document. A missing file initializes an empty,
// schema-current document and persists it. An unparseable file is
// treated as corruption: the store reinitializes to empty state
// rather than crashing, and CorruptionDetected reports it so the
// enhanced layer can involve the recovery coordinator.
func (s *Store) Load() (*types.StateFile, error) {
	data, err := s.fs.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			st := types.NewStateFile()
			if err := s.Save(st); err != nil {
				return nil, err
			}
			return st, nil
		}
		return nil, errors.Wrapf(err, errors.ErrStateLoad, "cannot read state file %s", s.path)
	}

	var st types.StateFile
	if err := json.Unmarshal(data, &st); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("state file is corrupt, reinitializing to empty state")
		s.corruptionDetected = true
		st := types.NewStateFile()
		if err := s.Save(st); err != nil {
			return nil, err
		}
		return st, nil
	}

	normalize(&st)
	return &st, nil
}

// CorruptionDetected reports whether a Load encountered an
// unparseable document since the store was created.
func (s *Store) CorruptionDetected() bool {
	return s.corruptionDetected
}

// Save writes the entire document. It acquires the lock marker with a
// bounded retry, writes a temporary file, atomically renames it over
// the real file, and always releases the lock, even when the write
// fails. Readers therefore never observe a half-written file.
func (s *Store) Save(st *types.StateFile) error {
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrStateSave, "cannot create state directory")
	}

	if err := s.acquireLock(); err != nil {
		return err
	}
	defer s.releaseLock()

	st.Metadata.LastUpdated = time.Now().UTC()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrStateSave, "cannot encode state document")
	}

	tmp := fmt.Sprintf("%s.tmp-%d", s.path, os.Getpid())
	if err := s.fs.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrStateSave, "cannot write temporary state file %s", tmp)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return errors.Wrapf(err, errors.ErrStateSave, "cannot replace state file %s", s.path)
	}

	return nil
}

// Reset reinitializes the document to empty state and persists it.
// The recovery coordinator uses it for the recreate strategy.
func (s *Store) Reset() (*types.StateFile, error) {
	st := types.NewStateFile()
	if err := s.Save(st); err != nil {
		return nil, err
	}
	s.corruptionDetected = false
	return st, nil
}

// GetRepositoryState is a convenience reader for one repository's
// deployment state. It returns nil when the repository has none.
func (s *Store) GetRepositoryState(id string) (*types.DeploymentState, error) {
	st, err := s.Load()
	if err != nil {
		return nil, err
	}
	if ds, ok := st.DeploymentStates[id]; ok {
		return &ds, nil
	}
	return nil, nil
}

// GetTotalDeployedFiles is a convenience reader summing tracked files
// across all repositories.
func (s *Store) GetTotalDeployedFiles() (int, error) {
	st, err := s.Load()
	if err != nil {
		return 0, err
	}
	total := 0
	for _, ds := range st.DeploymentStates {
		total += len(ds.DeployedFiles)
	}
	return total, nil
}

// acquireLock creates the lock marker, polling with a fixed short
// delay for a bounded number of attempts. It never blocks
// indefinitely: a lock abandoned by a crashed process surfaces as an
// ErrLockHeld failure the caller can retry.
func (s *Store) acquireLock() error {
	payload := []byte(fmt.Sprintf("%d\n", os.Getpid()))
	for attempt := 0; attempt < s.lockRetries; attempt++ {
		err := s.fs.CreateExclusive(s.lockPath, payload, 0644)
		if err == nil {
			return nil
		}
		s.logger.Trace().Int("attempt", attempt+1).Str("lock", s.lockPath).Msg("lock busy, waiting")
		time.Sleep(s.lockDelay)
	}
	return errors.Newf(errors.ErrLockHeld, "unable to acquire state lock %s after %d attempts", s.lockPath, s.lockRetries)
}

func (s *Store) releaseLock() {
	if err := s.fs.Remove(s.lockPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn().Err(err).Str("lock", s.lockPath).Msg("cannot remove lock marker")
	}
}

// normalize repairs nil collections after decoding so the rest of the
// code never branches on nil maps.
func normalize(st *types.StateFile) {
	if st.Repositories == nil {
		st.Repositories = []types.Repository{}
	}
	if st.DeploymentStates == nil {
		st.DeploymentStates = map[string]types.DeploymentState{}
	}
	if st.InstallationHistory == nil {
		st.InstallationHistory = []types.InstallationRecord{}
	}
}
