package state

import (
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/claupack/pkg/errors"
	"github.com/arthur-debert/claupack/pkg/types"
)

// Format selects the snapshot encoding for export and import.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ExportState returns a snapshot of the document, optionally filtered
// to the given repositories. An empty filter exports everything.
func (t *Tracker) ExportState(repoIDs []string, format Format) ([]byte, error) {
	st, err := t.loadCached()
	if err != nil {
		return nil, err
	}

	snapshot := st
	if len(repoIDs) > 0 {
		wanted := map[string]bool{}
		for _, id := range repoIDs {
			wanted[id] = true
		}
		filtered := types.NewStateFile()
		filtered.Metadata = st.Metadata
		for _, repo := range st.Repositories {
			if wanted[repo.ID] {
				filtered.Repositories = append(filtered.Repositories, repo)
			}
		}
		for id, ds := range st.DeploymentStates {
			if wanted[id] {
				filtered.DeploymentStates[id] = ds
			}
		}
		for _, rec := range st.InstallationHistory {
			if wanted[rec.RepositoryID] {
				filtered.InstallationHistory = append(filtered.InstallationHistory, rec)
			}
		}
		snapshot = filtered
	}

	switch format {
	case FormatYAML:
		return yaml.Marshal(snapshot)
	case FormatJSON, "":
		return json.MarshalIndent(snapshot, "", "  ")
	}
	return nil, errors.Newf(errors.ErrInvalidInput, "unknown export format %q", format)
}

// ImportState ingests a snapshot. With merge it deduplicates
// repositories by id, unions the deployment-state maps and
// concatenates history; without it the whole document is replaced. A
// payload whose declared schema version does not match the current
// one is rejected outright, no partial import.
func (t *Tracker) ImportState(data []byte, format Format, merge bool) error {
	var incoming types.StateFile
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &incoming)
	case FormatJSON, "":
		err = json.Unmarshal(data, &incoming)
	default:
		return errors.Newf(errors.ErrInvalidInput, "unknown import format %q", format)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrImportParse, "cannot parse import payload")
	}

	if incoming.Version != types.StateVersion {
		return errors.Newf(errors.ErrImportVersion, "import schema version %q does not match current %q", incoming.Version, types.StateVersion)
	}
	normalize(&incoming)

	if !merge {
		return t.save(&incoming)
	}

	st, err := t.loadFresh()
	if err != nil {
		return err
	}

	byID := map[string]int{}
	for i, repo := range st.Repositories {
		byID[repo.ID] = i
	}
	for _, repo := range incoming.Repositories {
		if i, ok := byID[repo.ID]; ok {
			st.Repositories[i] = repo
		} else {
			st.Repositories = append(st.Repositories, repo)
		}
	}

	for id, ds := range incoming.DeploymentStates {
		st.DeploymentStates[id] = ds
	}

	seen := map[string]bool{}
	for _, rec := range st.InstallationHistory {
		seen[rec.ID] = true
	}
	for _, rec := range incoming.InstallationHistory {
		if !seen[rec.ID] {
			st.InstallationHistory = append(st.InstallationHistory, rec)
		}
	}

	t.logger.Info().Int("repositories", len(incoming.Repositories)).Bool("merge", merge).Msg("state imported")
	return t.save(st)
}
