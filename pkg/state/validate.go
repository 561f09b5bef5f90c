package state

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/claupack/pkg/types"
)

// IssueKind classifies a state consistency defect.
type IssueKind string

const (
	// IssueMissingDeploymentState flags a registered repository with no
	// deployment-state entry. A never-installed repository legitimately
	// has none yet, so this is a repairable defect rather than a hard
	// invariant violation.
	IssueMissingDeploymentState IssueKind = "missing_deployment_state"

	// IssueOrphanedDeploymentState flags a deployment-state entry whose
	// repository is not registered.
	IssueOrphanedDeploymentState IssueKind = "orphaned_deployment_state"

	// IssueInvalidFilePath flags a deployed-file target that does not
	// live under the extension root convention.
	IssueInvalidFilePath IssueKind = "invalid_file_path"
)

// Issue is one defect found by ValidateState.
type Issue struct {
	Kind         IssueKind
	RepositoryID string
	Path         string
	Message      string
}

// ValidationReport lists every defect in the document.
type ValidationReport struct {
	Issues []Issue
}

// Valid reports whether no defects were found.
func (r *ValidationReport) Valid() bool {
	return len(r.Issues) == 0
}

// Count returns how many defects of the given kind were found.
func (r *ValidationReport) Count(kind IssueKind) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Kind == kind {
			n++
		}
	}
	return n
}

// RepairReport describes what RepairState fixed.
type RepairReport struct {
	Fixed   int
	Details []string
}

// ValidateState walks the whole document and reports three defect
// classes: repositories without deployment state, orphaned deployment
// states, and deployed-file targets outside the extension root.
func (t *Tracker) ValidateState() (*ValidationReport, error) {
	st, err := t.loadCached()
	if err != nil {
		return nil, err
	}

	report := &ValidationReport{}
	extRoot := t.paths.ExtensionRoot()

	for _, repo := range st.Repositories {
		if _, ok := st.DeploymentStates[repo.ID]; !ok {
			report.Issues = append(report.Issues, Issue{
				Kind:         IssueMissingDeploymentState,
				RepositoryID: repo.ID,
				Message:      fmt.Sprintf("repository %s has no deployment state", repo.ID),
			})
		}
	}

	for id, ds := range st.DeploymentStates {
		if !st.HasRepository(id) {
			report.Issues = append(report.Issues, Issue{
				Kind:         IssueOrphanedDeploymentState,
				RepositoryID: id,
				Message:      fmt.Sprintf("deployment state for %s has no registered repository", id),
			})
			continue
		}
		for _, df := range ds.DeployedFiles {
			if !underRoot(df.Target, extRoot) {
				report.Issues = append(report.Issues, Issue{
					Kind:         IssueInvalidFilePath,
					RepositoryID: id,
					Path:         df.Target,
					Message:      fmt.Sprintf("deployed file %s is outside the extension directory", df.Target),
				})
			}
		}
	}

	return report, nil
}

// RepairState fixes every defect class ValidateState reports:
// synthesizes an uninstalled placeholder for missing states, deletes
// orphaned entries, and rewrites non-conforming targets under the
// extension root. It persists only when at least one fix was applied.
func (t *Tracker) RepairState() (*RepairReport, error) {
	st, err := t.loadFresh()
	if err != nil {
		return nil, err
	}

	report := &RepairReport{}
	extRoot := t.paths.ExtensionRoot()

	for _, repo := range st.Repositories {
		if _, ok := st.DeploymentStates[repo.ID]; ok {
			continue
		}
		st.DeploymentStates[repo.ID] = types.DeploymentState{
			RepositoryID:       repo.ID,
			DeployedFiles:      []types.DeployedFile{},
			InstallationStatus: types.StatusUninstalled,
		}
		report.Fixed++
		report.Details = append(report.Details, fmt.Sprintf("created placeholder state for %s", repo.ID))
	}

	for id := range st.DeploymentStates {
		if st.HasRepository(id) {
			continue
		}
		delete(st.DeploymentStates, id)
		report.Fixed++
		report.Details = append(report.Details, fmt.Sprintf("removed orphaned state for %s", id))
	}

	for id, ds := range st.DeploymentStates {
		changed := false
		for i, df := range ds.DeployedFiles {
			if underRoot(df.Target, extRoot) {
				continue
			}
			category := df.Type
			if !category.IsValid() {
				category = types.CategoryCommands
			}
			rewritten := filepath.Join(extRoot, string(category), filepath.Base(df.Target))
			report.Details = append(report.Details, fmt.Sprintf("rewrote %s to %s", df.Target, rewritten))
			ds.DeployedFiles[i].Target = rewritten
			changed = true
			report.Fixed++
		}
		if changed {
			st.DeploymentStates[id] = ds
		}
	}

	if report.Fixed > 0 {
		t.logger.Info().Int("fixes", report.Fixed).Msg("state repaired")
		if err := t.save(st); err != nil {
			return nil, err
		}
	}

	return report, nil
}

// underRoot reports whether path lives under root.
func underRoot(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
