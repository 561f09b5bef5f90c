// Package migration detects the on-disk schema of the state document
// and transforms the legacy per-repository flat map into the current
// versioned format, taking a timestamped backup before mutating
// anything.
package migration

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arthur-debert/claupack/pkg/errors"
	"github.com/arthur-debert/claupack/pkg/logging"
	"github.com/arthur-debert/claupack/pkg/paths"
	"github.com/arthur-debert/claupack/pkg/state"
	"github.com/arthur-debert/claupack/pkg/types"
)

// LegacyVersion labels the pre-versioned flat-map schema.
const LegacyVersion = "1.0"

// VersionInfo is the result of schema detection.
type VersionInfo struct {
	Version        string
	IsLegacy       bool
	NeedsMigration bool
}

// Result describes a completed migration.
type Result struct {
	Migrated     bool
	Version      string
	BackupPath   string
	Repositories int
}

// legacyRecord is the legacy per-repository shape. It only ever
// exists transiently inside this package's input decoding; nothing
// downstream sees it.
type legacyRecord struct {
	LastSync   string   `json:"lastSync"`
	LastCommit string   `json:"lastCommit"`
	Files      []string `json:"files"`
	Errors     []string `json:"errors"`
}

// Migrator upgrades the state document in place.
type Migrator struct {
	fs     types.FS
	paths  paths.Paths
	store  *state.Store
	logger zerolog.Logger
}

// New creates a migrator writing through the given store, so the
// final replace inherits the store's atomic-write discipline.
func New(fs types.FS, p paths.Paths, store *state.Store) *Migrator {
	return &Migrator{
		fs:     fs,
		paths:  p,
		store:  store,
		logger: logging.GetLogger("migration"),
	}
}

// DetectVersion inspects the on-disk document's shape: a string
// version field alongside the current top-level keys means current; a
// flat map of repository records means legacy.
func (m *Migrator) DetectVersion() (*VersionInfo, error) {
	data, err := m.fs.ReadFile(m.paths.StateFilePath())
	if err != nil {
		if os.IsNotExist(err) {
			// Nothing on disk: the store initializes schema-current.
			return &VersionInfo{Version: types.StateVersion}, nil
		}
		return nil, errors.Wrap(err, errors.ErrMigrationDetect, "cannot read state file")
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrMigrationDetect, "state file is not a JSON document")
	}

	var version string
	if raw, ok := doc["version"]; ok {
		_ = json.Unmarshal(raw, &version)
	}
	if _, hasStates := doc["deploymentStates"]; hasStates && version != "" {
		return &VersionInfo{
			Version:        version,
			NeedsMigration: !strings.HasPrefix(version, "2."),
		}, nil
	}

	return &VersionInfo{Version: LegacyVersion, IsLegacy: true, NeedsMigration: true}, nil
}

// Migrate upgrades a legacy document: it writes a byte-identical
// timestamped backup, transforms every legacy record into a current
// DeploymentState, synthesizes one installation record per repository
// to preserve an audit trail, atomically replaces the file, and
// re-reads the result to validate it before declaring success. Any
// failure preserves the backup for manual recovery.
func (m *Migrator) Migrate() (*Result, error) {
	info, err := m.DetectVersion()
	if err != nil {
		return nil, err
	}
	if !info.NeedsMigration {
		return &Result{Migrated: false, Version: info.Version}, nil
	}

	original, err := m.fs.ReadFile(m.paths.StateFilePath())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrMigrationFailed, "cannot read state file")
	}

	backupPath := m.paths.BackupPath(time.Now().Unix())
	if err := m.fs.WriteFile(backupPath, original, 0644); err != nil {
		return nil, errors.Wrapf(err, errors.ErrBackupFailed, "cannot write backup %s", backupPath)
	}
	m.logger.Info().Str("backup", backupPath).Msg("backup written")

	var legacy map[string]legacyRecord
	if err := json.Unmarshal(original, &legacy); err != nil {
		return nil, errors.Wrap(err, errors.ErrMigrationFailed, "cannot decode legacy state").WithDetail("backup", backupPath)
	}

	doc := transformLegacy(legacy)
	now := time.Now().UTC()
	doc.Metadata.LastMigration = &now

	if err := m.store.Save(doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrMigrationFailed, "cannot write migrated state").WithDetail("backup", backupPath)
	}

	reloaded, err := m.store.Load()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrMigrationFailed, "cannot re-read migrated state").WithDetail("backup", backupPath)
	}
	if err := validateStructure(reloaded); err != nil {
		return nil, errors.Wrap(err, errors.ErrMigrationFailed, "migrated state failed validation").WithDetail("backup", backupPath)
	}

	m.logger.Info().Int("repositories", len(doc.Repositories)).Msg("migration complete")
	return &Result{
		Migrated:     true,
		Version:      types.StateVersion,
		BackupPath:   backupPath,
		Repositories: len(doc.Repositories),
	}, nil
}

// transformLegacy maps every legacy record to a current
// DeploymentState plus one synthesized installation record, so an
// audit trail exists even though the legacy format kept none.
func transformLegacy(legacy map[string]legacyRecord) *types.StateFile {
	doc := types.NewStateFile()

	for id, rec := range legacy {
		deployedAt := parseLegacyTime(rec.LastSync)
		files := make([]types.DeployedFile, 0, len(rec.Files))
		for _, path := range rec.Files {
			files = append(files, types.DeployedFile{
				Source:     path,
				Target:     path,
				DeployedAt: deployedAt,
			})
		}

		status := types.StatusInstalled
		switch {
		case len(rec.Errors) > 0:
			status = types.StatusError
		case len(files) == 0:
			status = types.StatusUninstalled
		}

		installed := deployedAt
		doc.Repositories = append(doc.Repositories, types.Repository{
			ID:           id,
			RegisteredAt: deployedAt,
		})
		doc.DeploymentStates[id] = types.DeploymentState{
			RepositoryID:       id,
			DeployedFiles:      files,
			InstallationStatus: status,
			LastInstalled:      &installed,
			Errors:             rec.Errors,
			Metadata:           legacyMetadata(rec),
		}
		doc.InstallationHistory = append(doc.InstallationHistory, types.InstallationRecord{
			ID:            uuid.NewString(),
			RepositoryID:  id,
			Operation:     types.OperationInstall,
			Timestamp:     deployedAt,
			FilesAffected: len(files),
			Success:       len(rec.Errors) == 0,
			Error:         strings.Join(rec.Errors, "; "),
		})
	}

	return doc
}

func legacyMetadata(rec legacyRecord) map[string]string {
	if rec.LastCommit == "" {
		return nil
	}
	return map[string]string{"lastCommit": rec.LastCommit}
}

func parseLegacyTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return time.Now().UTC()
}

// validateStructure checks the migrated document is schema-current
// and internally consistent.
func validateStructure(st *types.StateFile) error {
	if !strings.HasPrefix(st.Version, "2.") {
		return errors.Newf(errors.ErrStateValidation, "unexpected schema version %q", st.Version)
	}
	if st.DeploymentStates == nil || st.InstallationHistory == nil {
		return errors.New(errors.ErrStateValidation, "migrated document is missing required collections")
	}
	for id := range st.DeploymentStates {
		if !st.HasRepository(id) {
			return errors.Newf(errors.ErrStateValidation, "deployment state %s has no repository entry", id)
		}
	}
	return nil
}
