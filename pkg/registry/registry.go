// Package registry manages the set of registered source repositories,
// persisted in the state document alongside their deployment states.
package registry

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/claupack/pkg/errors"
	"github.com/arthur-debert/claupack/pkg/logging"
	"github.com/arthur-debert/claupack/pkg/state"
	"github.com/arthur-debert/claupack/pkg/types"
)

// Registry provides CRUD over registered repositories.
type Registry struct {
	store   *state.Store
	tracker *state.Tracker
	logger  zerolog.Logger
}

// New creates a registry. Mutations invalidate the tracker's read
// cache so subsequent queries see them.
func New(store *state.Store, tracker *state.Tracker) *Registry {
	return &Registry{
		store:   store,
		tracker: tracker,
		logger:  logging.GetLogger("registry"),
	}
}

// Add registers a repository. The id must be unique.
func (r *Registry) Add(repo types.Repository) error {
	if repo.ID == "" {
		return errors.New(errors.ErrInvalidInput, "repository id is required")
	}
	if repo.DeploymentMode == types.ModeTypeBased && !repo.Type.IsValid() {
		return errors.Newf(errors.ErrInvalidInput, "type-based repository %s needs a valid category", repo.ID)
	}

	st, err := r.store.Load()
	if err != nil {
		return err
	}
	if st.HasRepository(repo.ID) {
		return errors.Newf(errors.ErrRepoExists, "repository %s is already registered", repo.ID)
	}

	if repo.RegisteredAt.IsZero() {
		repo.RegisteredAt = time.Now().UTC()
	}
	st.Repositories = append(st.Repositories, repo)

	if err := r.store.Save(st); err != nil {
		return err
	}
	r.tracker.InvalidateCache()
	r.logger.Info().Str("repository", repo.ID).Msg("repository registered")
	return nil
}

// Get returns a registered repository.
func (r *Registry) Get(id string) (types.Repository, error) {
	st, err := r.store.Load()
	if err != nil {
		return types.Repository{}, err
	}
	repo, ok := st.Repository(id)
	if !ok {
		return types.Repository{}, errors.Newf(errors.ErrRepoNotFound, "repository %s is not registered", id)
	}
	return repo, nil
}

// List returns all registered repositories.
func (r *Registry) List() ([]types.Repository, error) {
	st, err := r.store.Load()
	if err != nil {
		return nil, err
	}
	return st.Repositories, nil
}

// Remove unregisters a repository and delegates the bookkeeping (state
// entry removal, unregister history record) to the tracker. Deployed
// files stay on disk.
func (r *Registry) Remove(id string) error {
	st, err := r.store.Load()
	if err != nil {
		return err
	}

	found := false
	kept := make([]types.Repository, 0, len(st.Repositories))
	for _, repo := range st.Repositories {
		if repo.ID == id {
			found = true
			continue
		}
		kept = append(kept, repo)
	}
	if !found {
		return errors.Newf(errors.ErrRepoNotFound, "repository %s is not registered", id)
	}
	st.Repositories = kept

	if err := r.store.Save(st); err != nil {
		return err
	}
	r.tracker.InvalidateCache()

	if err := r.tracker.TrackUnregistration(id); err != nil {
		return err
	}
	r.logger.Info().Str("repository", id).Msg("repository unregistered")
	return nil
}
