package state

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arthur-debert/claupack/pkg/errors"
	"github.com/arthur-debert/claupack/pkg/logging"
	"github.com/arthur-debert/claupack/pkg/paths"
	"github.com/arthur-debert/claupack/pkg/types"
)

// DefaultCacheTTL bounds how long a loaded document is reused across
// a burst of queries within one command invocation.
const DefaultCacheTTL = 5 * time.Second

// Tracker records the installation lifecycle per repository and the
// append-only installation history, layered on the Store.
type Tracker struct {
	store    *Store
	paths    paths.Paths
	cacheTTL time.Duration
	cached   *types.StateFile
	cachedAt time.Time
	logger   zerolog.Logger
}

// NewTracker creates a tracker over the given store.
func NewTracker(store *Store, p paths.Paths) *Tracker {
	return &Tracker{
		store:    store,
		paths:    p,
		cacheTTL: DefaultCacheTTL,
		logger:   logging.GetLogger("tracker"),
	}
}

// WithCacheTTL overrides the read cache TTL and returns the tracker
// for chaining.
func (t *Tracker) WithCacheTTL(ttl time.Duration) *Tracker {
	t.cacheTTL = ttl
	return t
}

// InvalidateCache drops the read cache. Every mutation through the
// tracker does this automatically; external writers (the registry)
// must call it after mutating the document.
func (t *Tracker) InvalidateCache() {
	t.cached = nil
}

// loadCached returns a recently loaded document when one is fresh,
// otherwise reloads from the store.
func (t *Tracker) loadCached() (*types.StateFile, error) {
	if t.cached != nil && time.Since(t.cachedAt) < t.cacheTTL {
		return t.cached, nil
	}
	st, err := t.store.Load()
	if err != nil {
		return nil, err
	}
	t.cached = st
	t.cachedAt = time.Now()
	return st, nil
}

// loadFresh always reloads; mutations must never start from a cached
// document.
func (t *Tracker) loadFresh() (*types.StateFile, error) {
	t.InvalidateCache()
	return t.store.Load()
}

func (t *Tracker) save(st *types.StateFile) error {
	t.InvalidateCache()
	return t.store.Save(st)
}

// GetDeploymentState returns the tracked state for a repository, or
// nil when the repository has none.
func (t *Tracker) GetDeploymentState(id string) (*types.DeploymentState, error) {
	st, err := t.loadCached()
	if err != nil {
		return nil, err
	}
	if ds, ok := st.DeploymentStates[id]; ok {
		return &ds, nil
	}
	return nil, nil
}

// UpdateDeploymentState validates and persists a full deployment
// state for a repository. Malformed input is rejected before any
// write occurs.
func (t *Tracker) UpdateDeploymentState(id string, state types.DeploymentState) error {
	if err := validateDeploymentState(id, state); err != nil {
		return err
	}
	st, err := t.loadFresh()
	if err != nil {
		return err
	}
	st.DeploymentStates[id] = state
	return t.save(st)
}

// RemoveDeploymentState deletes a repository's deployment state.
func (t *Tracker) RemoveDeploymentState(id string) error {
	st, err := t.loadFresh()
	if err != nil {
		return err
	}
	delete(st.DeploymentStates, id)
	return t.save(st)
}

// TrackInstallation merges newly deployed files into the repository's
// tracked set (deduplicated by target path, last write wins), marks
// the repository installed, and appends an install history record
// preserving any caller-supplied options for audit.
func (t *Tracker) TrackInstallation(id string, files []types.DeployedFile, options map[string]string) error {
	st, err := t.loadFresh()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	entry := st.DeploymentStates[id]
	entry.RepositoryID = id
	entry.DeployedFiles = mergeDeployedFiles(entry.DeployedFiles, files)
	entry.InstallationStatus = types.StatusInstalled
	entry.LastInstalled = &now
	entry.Errors = nil
	st.DeploymentStates[id] = entry

	st.InstallationHistory = append(st.InstallationHistory, types.InstallationRecord{
		ID:            uuid.NewString(),
		RepositoryID:  id,
		Operation:     types.OperationInstall,
		Timestamp:     now,
		FilesAffected: len(files),
		Success:       true,
		Options:       options,
	})

	t.logger.Info().Str("repository", id).Int("files", len(files)).Msg("installation tracked")
	return t.save(st)
}

// TrackDeployment records a full deployment result: deployed files
// are merged into the tracked set and the status reflects partial or
// failed outcomes instead of blindly reporting success.
func (t *Tracker) TrackDeployment(id string, result *types.DeploymentResult, options map[string]string) error {
	st, err := t.loadFresh()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	entry := st.DeploymentStates[id]
	entry.RepositoryID = id
	entry.DeployedFiles = mergeDeployedFiles(entry.DeployedFiles, result.Deployed)
	entry.Errors = nil

	switch {
	case len(result.Deployed) > 0 && len(result.Failed) == 0:
		entry.InstallationStatus = types.StatusInstalled
		entry.LastInstalled = &now
	case len(result.Deployed) > 0:
		entry.InstallationStatus = types.StatusPartial
		entry.LastInstalled = &now
		entry.Errors = failureList(result)
	case len(result.Failed) > 0:
		entry.InstallationStatus = types.StatusError
		entry.Errors = failureList(result)
	case len(entry.DeployedFiles) == 0:
		entry.InstallationStatus = types.StatusUninstalled
	}
	st.DeploymentStates[id] = entry

	st.InstallationHistory = append(st.InstallationHistory, types.InstallationRecord{
		ID:            uuid.NewString(),
		RepositoryID:  id,
		Operation:     types.OperationInstall,
		Timestamp:     now,
		FilesAffected: len(result.Deployed),
		Success:       len(result.Failed) == 0,
		Error:         strings.Join(failureList(result), "; "),
		Options:       options,
	})

	return t.save(st)
}

// TrackUninstallation removes the given target paths from the tracked
// set. The resulting status is uninstalled when nothing remains
// tracked, otherwise partial.
func (t *Tracker) TrackUninstallation(id string, removedPaths []string, options map[string]string) error {
	st, err := t.loadFresh()
	if err != nil {
		return err
	}

	removed := map[string]bool{}
	for _, p := range removedPaths {
		removed[p] = true
	}

	now := time.Now().UTC()
	entry := st.DeploymentStates[id]
	entry.RepositoryID = id
	kept := make([]types.DeployedFile, 0, len(entry.DeployedFiles))
	for _, df := range entry.DeployedFiles {
		if !removed[df.Target] {
			kept = append(kept, df)
		}
	}
	entry.DeployedFiles = kept
	entry.LastUninstalled = &now
	if len(kept) == 0 {
		entry.InstallationStatus = types.StatusUninstalled
	} else {
		entry.InstallationStatus = types.StatusPartial
	}
	st.DeploymentStates[id] = entry

	st.InstallationHistory = append(st.InstallationHistory, types.InstallationRecord{
		ID:            uuid.NewString(),
		RepositoryID:  id,
		Operation:     types.OperationUninstall,
		Timestamp:     now,
		FilesAffected: len(removedPaths),
		Success:       true,
		Options:       options,
	})

	t.logger.Info().Str("repository", id).Int("removed", len(removedPaths)).Int("remaining", len(kept)).Msg("uninstallation tracked")
	return t.save(st)
}

// TrackUnregistration deletes the repository's deployment state
// entirely and appends an unregister record. It does not touch
// deployed files on disk: unregistration is bookkeeping, not removal.
func (t *Tracker) TrackUnregistration(id string) error {
	st, err := t.loadFresh()
	if err != nil {
		return err
	}

	delete(st.DeploymentStates, id)
	st.InstallationHistory = append(st.InstallationHistory, types.InstallationRecord{
		ID:           uuid.NewString(),
		RepositoryID: id,
		Operation:    types.OperationUnregister,
		Timestamp:    time.Now().UTC(),
		Success:      true,
	})

	return t.save(st)
}

// HistoryFilter narrows installation history queries. Zero values
// match everything.
type HistoryFilter struct {
	RepositoryID string
	Operation    types.Operation
	Since        *time.Time
	Until        *time.Time
	Limit        int
}

// GetInstallationHistory returns history records most-recent-first,
// optionally filtered by repository, operation kind, date range and
// result count.
func (t *Tracker) GetInstallationHistory(filter *HistoryFilter) ([]types.InstallationRecord, error) {
	st, err := t.loadCached()
	if err != nil {
		return nil, err
	}

	records := make([]types.InstallationRecord, 0, len(st.InstallationHistory))
	for _, rec := range st.InstallationHistory {
		if filter != nil {
			if filter.RepositoryID != "" && rec.RepositoryID != filter.RepositoryID {
				continue
			}
			if filter.Operation != "" && rec.Operation != filter.Operation {
				continue
			}
			if filter.Since != nil && rec.Timestamp.Before(*filter.Since) {
				continue
			}
			if filter.Until != nil && rec.Timestamp.After(*filter.Until) {
				continue
			}
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})

	if filter != nil && filter.Limit > 0 && len(records) > filter.Limit {
		records = records[:filter.Limit]
	}

	return records, nil
}

// mergeDeployedFiles merges incoming files into existing, deduplicated
// by target path with last write winning. Existing order is preserved
// for retained entries; new targets append in arrival order.
func mergeDeployedFiles(existing, incoming []types.DeployedFile) []types.DeployedFile {
	byTarget := map[string]types.DeployedFile{}
	for _, df := range incoming {
		byTarget[df.Target] = df
	}

	merged := make([]types.DeployedFile, 0, len(existing)+len(incoming))
	for _, df := range existing {
		if updated, ok := byTarget[df.Target]; ok {
			merged = append(merged, updated)
			delete(byTarget, df.Target)
		} else {
			merged = append(merged, df)
		}
	}
	for _, df := range incoming {
		if _, ok := byTarget[df.Target]; ok {
			merged = append(merged, df)
			delete(byTarget, df.Target)
		}
	}
	return merged
}

func failureList(result *types.DeploymentResult) []string {
	if len(result.Failed) == 0 {
		return nil
	}
	out := make([]string, 0, len(result.Failed))
	for _, f := range result.Failed {
		out = append(out, "failed to deploy "+f)
	}
	return out
}

// validateDeploymentState checks structural completeness before any
// write occurs.
func validateDeploymentState(id string, state types.DeploymentState) error {
	if id == "" || state.RepositoryID == "" {
		return errors.New(errors.ErrStateValidation, "deployment state requires a repository id")
	}
	if state.RepositoryID != id {
		return errors.Newf(errors.ErrStateValidation, "deployment state repository id %q does not match %q", state.RepositoryID, id)
	}
	if state.DeployedFiles == nil {
		return errors.New(errors.ErrStateValidation, "deployment state requires a deployedFiles array")
	}
	if !state.InstallationStatus.IsValid() {
		return errors.Newf(errors.ErrStateValidation, "unrecognized installation status %q", state.InstallationStatus)
	}
	return nil
}
