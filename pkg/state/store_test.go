package state

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/claupack/pkg/errors"
	"github.com/arthur-debert/claupack/pkg/filesystem"
	"github.com/arthur-debert/claupack/pkg/paths"
	"github.com/arthur-debert/claupack/pkg/types"
)

func newTestStore(t *testing.T) (types.FS, *Store, paths.Paths) {
	t.Helper()

	t.Setenv(paths.EnvExtensionDir, "/ext")
	t.Setenv(paths.EnvDataDir, "/data")

	p, err := paths.New("")
	require.NoError(t, err)

	fs := filesystem.NewMemory()
	return fs, NewStore(fs, p), p
}

func TestStoreLoad_InitializesMissingFile(t *testing.T) {
	fs, store, _ := newTestStore(t)

	st, err := store.Load()

	require.NoError(t, err)
	assert.Equal(t, types.StateVersion, st.Version)
	assert.Empty(t, st.Repositories)
	assert.Empty(t, st.DeploymentStates)
	assert.Empty(t, st.InstallationHistory)
	assert.False(t, store.CorruptionDetected())

	// The initialized document was persisted.
	data, err := fs.ReadFile(store.Path())
	require.NoError(t, err)
	var onDisk types.StateFile
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, types.StateVersion, onDisk.Version)
}

func TestStoreLoad_CorruptFileReinitializes(t *testing.T) {
	fs, store, _ := newTestStore(t)
	require.NoError(t, fs.MkdirAll("/data", 0755))
	require.NoError(t, fs.WriteFile(store.Path(), []byte("{not json"), 0644))

	st, err := store.Load()

	require.NoError(t, err)
	assert.Equal(t, types.StateVersion, st.Version)
	assert.True(t, store.CorruptionDetected())

	// A subsequent load sees the clean document.
	again, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, types.StateVersion, again.Version)
}

func TestStoreSave_RoundTrip(t *testing.T) {
	_, store, _ := newTestStore(t)

	st := types.NewStateFile()
	st.Repositories = append(st.Repositories, types.Repository{ID: "demo", URL: "https://example.com/demo.git"})
	st.DeploymentStates["demo"] = types.DeploymentState{
		RepositoryID: "demo",
		InstallationStatus: types.StatusInstalled,
		DeployedFiles: []types.DeployedFile{
			{Source: "commands/run.md", Target: "/ext/commands/run.md", Hash: "sha256:abc"},
		},
	}
	require.NoError(t, store.Save(st))
	assert.False(t, st.Metadata.LastUpdated.IsZero())

	loaded, err := store.Load()
	require.NoError(t, err)
	require.True(t, loaded.HasRepository("demo"))
	assert.Equal(t, types.StatusInstalled, loaded.DeploymentStates["demo"].InstallationStatus)
	assert.Len(t, loaded.DeploymentStates["demo"].DeployedFiles, 1)
}

func TestStoreSave_LockHeld(t *testing.T) {
	fs, store, p := newTestStore(t)
	store.WithLockRetry(2, time.Millisecond)

	require.NoError(t, fs.MkdirAll("/data", 0755))
	require.NoError(t, fs.CreateExclusive(p.LockFilePath(), []byte("other\n"), 0644))

	err := store.Save(types.NewStateFile())

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrLockHeld))

	// The holder's marker survives a failed acquisition.
	_, statErr := fs.Stat(p.LockFilePath())
	assert.NoError(t, statErr)
}

func TestStoreSave_ReleasesLock(t *testing.T) {
	fs, store, p := newTestStore(t)

	require.NoError(t, store.Save(types.NewStateFile()))

	_, err := fs.Stat(p.LockFilePath())
	assert.Error(t, err, "lock marker must be removed after save")
}

// writeFailFS wraps a working filesystem and fails every WriteFile.
type writeFailFS struct {
	types.FS
}

func (f *writeFailFS) WriteFile(name string, data []byte, perm fs.FileMode) error {
	return fmt.Errorf("disk full")
}

// renameFailFS wraps a working filesystem and fails every Rename.
type renameFailFS struct {
	types.FS
}

func (f *renameFailFS) Rename(oldpath, newpath string) error {
	return fmt.Errorf("rename blocked")
}

func TestStoreSave_ReleasesLockOnWriteFailure(t *testing.T) {
	t.Setenv(paths.EnvExtensionDir, "/ext")
	t.Setenv(paths.EnvDataDir, "/data")
	p, err := paths.New("")
	require.NoError(t, err)

	base := filesystem.NewMemory()
	fs := &writeFailFS{FS: base}
	store := NewStore(fs, p)

	err = store.Save(types.NewStateFile())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrStateSave))

	_, statErr := base.Stat(p.LockFilePath())
	assert.Error(t, statErr, "lock marker must be removed after a failed write")
}

func TestStoreSave_NoPartialFileOnRenameFailure(t *testing.T) {
	t.Setenv(paths.EnvExtensionDir, "/ext")
	t.Setenv(paths.EnvDataDir, "/data")
	p, err := paths.New("")
	require.NoError(t, err)

	base := filesystem.NewMemory()
	fs := &renameFailFS{FS: base}
	store := NewStore(fs, p)

	err = store.Save(types.NewStateFile())
	require.Error(t, err)

	// Neither the real file nor the temporary survives.
	_, statErr := base.Stat(store.Path())
	assert.Error(t, statErr)
	entries, readErr := base.ReadDir("/data")
	if readErr == nil {
		for _, entry := range entries {
			assert.NotContains(t, entry.Name(), ".tmp-")
		}
	}
}

func TestStoreReset(t *testing.T) {
	fs, store, _ := newTestStore(t)
	require.NoError(t, fs.MkdirAll("/data", 0755))
	require.NoError(t, fs.WriteFile(store.Path(), []byte("garbage"), 0644))

	_, err := store.Load()
	require.NoError(t, err)
	require.True(t, store.CorruptionDetected())

	st, err := store.Reset()
	require.NoError(t, err)
	assert.Equal(t, types.StateVersion, st.Version)
	assert.False(t, store.CorruptionDetected())
}

func TestStoreConvenienceReaders(t *testing.T) {
	_, store, _ := newTestStore(t)

	st := types.NewStateFile()
	st.DeploymentStates["a"] = types.DeploymentState{
		RepositoryID:  "a",
		InstallationStatus: types.StatusInstalled,
		DeployedFiles: []types.DeployedFile{{Target: "/ext/commands/x.md"}, {Target: "/ext/commands/y.md"}},
	}
	st.DeploymentStates["b"] = types.DeploymentState{
		RepositoryID:  "b",
		InstallationStatus: types.StatusInstalled,
		DeployedFiles: []types.DeployedFile{{Target: "/ext/agents/z.md"}},
	}
	require.NoError(t, store.Save(st))

	ds, err := store.GetRepositoryState("a")
	require.NoError(t, err)
	require.NotNil(t, ds)
	assert.Len(t, ds.DeployedFiles, 2)

	none, err := store.GetRepositoryState("missing")
	require.NoError(t, err)
	assert.Nil(t, none)

	total, err := store.GetTotalDeployedFiles()
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}
