package migration

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/claupack/pkg/filesystem"
	"github.com/arthur-debert/claupack/pkg/paths"
	"github.com/arthur-debert/claupack/pkg/state"
	"github.com/arthur-debert/claupack/pkg/types"
)

const legacyDocument = `{
  "owner/commands-pack": {
    "lastSync": "2025-11-02T09:30:00Z",
    "lastCommit": "4f2d1abc",
    "files": ["/ext/commands/run.md", "/ext/commands/lint.md"],
    "errors": []
  },
  "owner/broken-pack": {
    "lastSync": "2025-11-03T10:00:00Z",
    "lastCommit": "9e8f7654",
    "files": ["/ext/agents/helper.md"],
    "errors": ["failed to deploy agents/extra.md"]
  },
  "owner/empty-pack": {
    "lastSync": "2025-11-01T08:00:00Z",
    "lastCommit": "",
    "files": [],
    "errors": []
  }
}`

func newTestMigrator(t *testing.T) (types.FS, *Migrator, *state.Store, paths.Paths) {
	t.Helper()

	t.Setenv(paths.EnvExtensionDir, "/ext")
	t.Setenv(paths.EnvDataDir, "/data")

	p, err := paths.New("")
	require.NoError(t, err)

	fs := filesystem.NewMemory()
	store := state.NewStore(fs, p)
	return fs, New(fs, p, store), store, p
}

func writeState(t *testing.T, fs types.FS, p paths.Paths, content string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll("/data", 0755))
	require.NoError(t, fs.WriteFile(p.StateFilePath(), []byte(content), 0644))
}

func TestDetectVersion(t *testing.T) {
	tests := []struct {
		name           string
		content        string
		wantVersion    string
		wantLegacy     bool
		wantsMigration bool
	}{
		{
			name:        "missing_file_is_current",
			wantVersion: types.StateVersion,
		},
		{
			name:        "current_schema",
			content:     `{"version":"2.0","repositories":[],"deploymentStates":{},"installationHistory":[]}`,
			wantVersion: "2.0",
		},
		{
			name:           "versioned_but_stale",
			content:        `{"version":"1.5","repositories":[],"deploymentStates":{},"installationHistory":[]}`,
			wantVersion:    "1.5",
			wantsMigration: true,
		},
		{
			name:           "legacy_flat_map",
			content:        legacyDocument,
			wantVersion:    LegacyVersion,
			wantLegacy:     true,
			wantsMigration: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, migrator, _, p := newTestMigrator(t)
			if tt.content != "" {
				writeState(t, fs, p, tt.content)
			}

			info, err := migrator.DetectVersion()

			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, info.Version)
			assert.Equal(t, tt.wantLegacy, info.IsLegacy)
			assert.Equal(t, tt.wantsMigration, info.NeedsMigration)
		})
	}
}

func TestDetectVersion_UnreadableDocument(t *testing.T) {
	fs, migrator, _, p := newTestMigrator(t)
	writeState(t, fs, p, "not json at all")

	_, err := migrator.DetectVersion()
	assert.Error(t, err)
}

func TestMigrate_LegacyDocument(t *testing.T) {
	fs, migrator, store, p := newTestMigrator(t)
	writeState(t, fs, p, legacyDocument)

	result, err := migrator.Migrate()

	require.NoError(t, err)
	assert.True(t, result.Migrated)
	assert.Equal(t, types.StateVersion, result.Version)
	assert.Equal(t, 3, result.Repositories)

	// The backup is byte-identical to the original.
	require.True(t, strings.HasPrefix(result.BackupPath, "/data/"+paths.BackupPrefix))
	backup, err := fs.ReadFile(result.BackupPath)
	require.NoError(t, err)
	assert.Equal(t, legacyDocument, string(backup))

	st, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, types.StateVersion, st.Version)
	require.Len(t, st.Repositories, 3)
	require.Len(t, st.InstallationHistory, 3)
	require.NotNil(t, st.Metadata.LastMigration)

	healthy := st.DeploymentStates["owner/commands-pack"]
	assert.Equal(t, types.StatusInstalled, healthy.InstallationStatus)
	require.Len(t, healthy.DeployedFiles, 2)
	assert.Equal(t, "/ext/commands/run.md", healthy.DeployedFiles[0].Target)
	assert.Equal(t, map[string]string{"lastCommit": "4f2d1abc"}, healthy.Metadata)
	require.NotNil(t, healthy.LastInstalled)
	assert.Equal(t, "2025-11-02T09:30:00Z", healthy.LastInstalled.Format("2006-01-02T15:04:05Z07:00"))

	broken := st.DeploymentStates["owner/broken-pack"]
	assert.Equal(t, types.StatusError, broken.InstallationStatus)
	assert.Equal(t, []string{"failed to deploy agents/extra.md"}, broken.Errors)

	empty := st.DeploymentStates["owner/empty-pack"]
	assert.Equal(t, types.StatusUninstalled, empty.InstallationStatus)
	assert.Empty(t, empty.DeployedFiles)
	assert.Nil(t, empty.Metadata, "no lastCommit, no metadata")
}

func TestMigrate_CurrentDocumentIsNoOp(t *testing.T) {
	fs, migrator, _, p := newTestMigrator(t)
	writeState(t, fs, p, `{"version":"2.0","repositories":[],"deploymentStates":{},"installationHistory":[]}`)

	result, err := migrator.Migrate()

	require.NoError(t, err)
	assert.False(t, result.Migrated)
	assert.Equal(t, "2.0", result.Version)

	// No backup is taken for a no-op.
	entries, err := fs.ReadDir("/data")
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasPrefix(entry.Name(), paths.BackupPrefix))
	}
}

func TestMigrate_MissingFileIsNoOp(t *testing.T) {
	_, migrator, _, _ := newTestMigrator(t)

	result, err := migrator.Migrate()

	require.NoError(t, err)
	assert.False(t, result.Migrated)
}

func TestMigrate_ResultPassesValidation(t *testing.T) {
	fs, migrator, store, p := newTestMigrator(t)
	writeState(t, fs, p, legacyDocument)

	_, err := migrator.Migrate()
	require.NoError(t, err)

	tracker := state.NewTracker(store, p)
	report, err := tracker.ValidateState()
	require.NoError(t, err)
	assert.True(t, report.Valid(), "unexpected issues: %v", report.Issues)
}
