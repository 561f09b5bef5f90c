package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/claupack/pkg/errors"
	"github.com/arthur-debert/claupack/pkg/filesystem"
	"github.com/arthur-debert/claupack/pkg/paths"
	"github.com/arthur-debert/claupack/pkg/state"
	"github.com/arthur-debert/claupack/pkg/types"
)

func newTestRegistry(t *testing.T) (*Registry, *state.Tracker) {
	t.Helper()

	t.Setenv(paths.EnvExtensionDir, "/ext")
	t.Setenv(paths.EnvDataDir, "/data")

	p, err := paths.New("")
	require.NoError(t, err)

	fs := filesystem.NewMemory()
	store := state.NewStore(fs, p)
	tracker := state.NewTracker(store, p).WithCacheTTL(0)
	return New(store, tracker), tracker
}

func TestAdd(t *testing.T) {
	reg, _ := newTestRegistry(t)

	repo := types.Repository{
		ID:        "owner/commands-pack",
		URL:       "https://example.com/commands-pack.git",
		LocalPath: "/data/repos/owner/commands-pack",
	}
	require.NoError(t, reg.Add(repo))

	got, err := reg.Get("owner/commands-pack")
	require.NoError(t, err)
	assert.Equal(t, repo.URL, got.URL)
	assert.False(t, got.RegisteredAt.IsZero(), "registration time is stamped")
}

func TestAdd_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		repo     types.Repository
		wantCode errors.ErrorCode
	}{
		{
			name:     "missing_id",
			repo:     types.Repository{URL: "https://example.com/x.git"},
			wantCode: errors.ErrInvalidInput,
		},
		{
			name: "type_based_without_category",
			repo: types.Repository{
				ID:             "owner/pack",
				DeploymentMode: types.ModeTypeBased,
			},
			wantCode: errors.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, _ := newTestRegistry(t)

			err := reg.Add(tt.repo)

			require.Error(t, err)
			assert.True(t, errors.IsCode(err, tt.wantCode))
		})
	}
}

func TestAdd_DuplicateID(t *testing.T) {
	reg, _ := newTestRegistry(t)

	require.NoError(t, reg.Add(types.Repository{ID: "owner/pack"}))
	err := reg.Add(types.Repository{ID: "owner/pack"})

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrRepoExists))
}

func TestGet_NotRegistered(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.Get("owner/missing")

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrRepoNotFound))
}

func TestList(t *testing.T) {
	reg, _ := newTestRegistry(t)

	repos, err := reg.List()
	require.NoError(t, err)
	assert.Empty(t, repos)

	require.NoError(t, reg.Add(types.Repository{ID: "alpha"}))
	require.NoError(t, reg.Add(types.Repository{ID: "beta"}))

	repos, err = reg.List()
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, "alpha", repos[0].ID)
	assert.Equal(t, "beta", repos[1].ID)
}

func TestRemove(t *testing.T) {
	reg, tracker := newTestRegistry(t)

	require.NoError(t, reg.Add(types.Repository{ID: "owner/pack"}))
	require.NoError(t, tracker.TrackInstallation("owner/pack", []types.DeployedFile{
		{Target: "/ext/commands/run.md"},
	}, nil))

	require.NoError(t, reg.Remove("owner/pack"))

	_, err := reg.Get("owner/pack")
	assert.True(t, errors.IsCode(err, errors.ErrRepoNotFound))

	ds, err := tracker.GetDeploymentState("owner/pack")
	require.NoError(t, err)
	assert.Nil(t, ds, "deployment state removed with the repository")

	history, err := tracker.GetInstallationHistory(&state.HistoryFilter{
		RepositoryID: "owner/pack",
		Operation:    types.OperationUnregister,
	})
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRemove_NotRegistered(t *testing.T) {
	reg, _ := newTestRegistry(t)

	err := reg.Remove("owner/missing")

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrRepoNotFound))
}
