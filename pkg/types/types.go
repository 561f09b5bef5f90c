package types

import (
	"time"
)

// StateVersion is the current schema version of the persisted state document.
const StateVersion = "2.0"

// Category identifies the kind of extension artifact a file belongs to.
// Deployed files are materialized under a subdirectory of the extension
// root named after their category.
type Category string

const (
	CategoryCommands Category = "commands"
	CategoryAgents   Category = "agents"
	CategoryHooks    Category = "hooks"
)

// Categories lists all known categories in evaluation order.
func Categories() []Category {
	return []Category{CategoryCommands, CategoryAgents, CategoryHooks}
}

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	switch c {
	case CategoryCommands, CategoryAgents, CategoryHooks:
		return true
	}
	return false
}

// DeploymentMode controls how a repository's files are matched.
type DeploymentMode string

const (
	// ModePattern evaluates the per-category glob pattern sets.
	ModePattern DeploymentMode = "pattern"

	// ModeTypeBased routes all qualifying files under the repository's
	// configured category without per-category pattern matching.
	ModeTypeBased DeploymentMode = "type-based"
)

// Repository is a registered source repository. The registry owns the
// full record; the deployment engine only needs the id, the working
// copy path, and the deployment mode.
type Repository struct {
	ID             string         `json:"repositoryId" yaml:"repositoryId"`
	URL            string         `json:"url,omitempty" yaml:"url,omitempty"`
	LocalPath      string         `json:"localPath" yaml:"localPath"`
	DeploymentMode DeploymentMode `json:"deploymentMode,omitempty" yaml:"deploymentMode,omitempty"`
	Type           Category       `json:"type,omitempty" yaml:"type,omitempty"`
	RegisteredAt   time.Time      `json:"registeredAt,omitempty" yaml:"registeredAt,omitempty"`
}

// IsTypeBased reports whether the repository routes all files under a
// single configured category.
func (r Repository) IsTypeBased() bool {
	return r.DeploymentMode == ModeTypeBased && r.Type.IsValid()
}

// PatternMatch is a single file or directory in a working copy that
// matched a deployment pattern. Matches are ephemeral: recomputed on
// every deploy and never persisted.
type PatternMatch struct {
	// File is the path relative to the working copy root.
	File string

	// Pattern is the glob that matched.
	Pattern string

	// TargetType is the category the match deploys under.
	TargetType Category

	// IsDir marks directory matches, which are copied recursively.
	IsDir bool
}

// DeployedFile records one file materialized into the extension
// directory. Hash reflects the content written to Target at the time
// of recording, not the source file, so later tampering or removal at
// the target is detectable.
type DeployedFile struct {
	Source     string    `json:"source" yaml:"source"`
	Target     string    `json:"target" yaml:"target"`
	Hash       string    `json:"hash" yaml:"hash"`
	DeployedAt time.Time `json:"deployedAt" yaml:"deployedAt"`
	Type       Category  `json:"type,omitempty" yaml:"type,omitempty"`
}

// DeploymentResult is the transient outcome of one deploy invocation.
type DeploymentResult struct {
	Deployed  []DeployedFile
	Skipped   []string
	Failed    []string
	Conflicts []string
}

// IsPartial reports whether the result mixes successes with failures
// or declined conflicts.
func (r *DeploymentResult) IsPartial() bool {
	return len(r.Deployed) > 0 && (len(r.Failed) > 0 || len(r.Skipped) > 0)
}

// InstallationStatus is the lifecycle state of a repository's deployment.
type InstallationStatus string

const (
	StatusInstalled   InstallationStatus = "installed"
	StatusPartial     InstallationStatus = "partial"
	StatusUninstalled InstallationStatus = "uninstalled"
	StatusError       InstallationStatus = "error"
)

// IsValid reports whether s is a recognized installation status.
func (s InstallationStatus) IsValid() bool {
	switch s {
	case StatusInstalled, StatusPartial, StatusUninstalled, StatusError:
		return true
	}
	return false
}

// DeploymentState tracks what is currently deployed for one repository.
type DeploymentState struct {
	RepositoryID       string             `json:"repositoryId" yaml:"repositoryId"`
	DeployedFiles      []DeployedFile     `json:"deployedFiles" yaml:"deployedFiles"`
	InstallationStatus InstallationStatus `json:"installationStatus" yaml:"installationStatus"`
	LastInstalled      *time.Time         `json:"lastInstalled,omitempty" yaml:"lastInstalled,omitempty"`
	LastUninstalled    *time.Time         `json:"lastUninstalled,omitempty" yaml:"lastUninstalled,omitempty"`
	Errors             []string           `json:"errors,omitempty" yaml:"errors,omitempty"`
	Metadata           map[string]string  `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Operation is the kind of lifecycle event recorded in the history log.
type Operation string

const (
	OperationInstall    Operation = "install"
	OperationUninstall  Operation = "uninstall"
	OperationUnregister Operation = "unregister"
)

// IsValid reports whether o is a recognized operation.
func (o Operation) IsValid() bool {
	switch o {
	case OperationInstall, OperationUninstall, OperationUnregister:
		return true
	}
	return false
}

// InstallationRecord is one immutable entry in the installation
// history. Records are append-only and never mutated after being
// written; they are the record of truth for what happened when.
type InstallationRecord struct {
	ID            string            `json:"id" yaml:"id"`
	RepositoryID  string            `json:"repositoryId" yaml:"repositoryId"`
	Operation     Operation         `json:"operation" yaml:"operation"`
	Timestamp     time.Time         `json:"timestamp" yaml:"timestamp"`
	FilesAffected int               `json:"filesAffected" yaml:"filesAffected"`
	Success       bool              `json:"success" yaml:"success"`
	Error         string            `json:"error,omitempty" yaml:"error,omitempty"`
	Options       map[string]string `json:"options,omitempty" yaml:"options,omitempty"`
}

// StateMetadata carries document-level bookkeeping.
type StateMetadata struct {
	LastUpdated   time.Time  `json:"lastUpdated" yaml:"lastUpdated"`
	LastMigration *time.Time `json:"lastMigration,omitempty" yaml:"lastMigration,omitempty"`
}

// StateFile is the whole persisted state document. The state store
// exclusively owns the on-disk representation; every mutation goes
// through load, mutate in memory, atomic save.
type StateFile struct {
	Version             string                     `json:"version" yaml:"version"`
	Repositories        []Repository               `json:"repositories" yaml:"repositories"`
	DeploymentStates    map[string]DeploymentState `json:"deploymentStates" yaml:"deploymentStates"`
	InstallationHistory []InstallationRecord       `json:"installationHistory" yaml:"installationHistory"`
	Metadata            StateMetadata              `json:"metadata" yaml:"metadata"`
}

// NewStateFile returns an empty, schema-current state document.
func NewStateFile() *StateFile {
	return &StateFile{
		Version:             StateVersion,
		Repositories:        []Repository{},
		DeploymentStates:    map[string]DeploymentState{},
		InstallationHistory: []InstallationRecord{},
		Metadata:            StateMetadata{LastUpdated: time.Now().UTC()},
	}
}

// Repository returns the registered repository with the given id.
func (s *StateFile) Repository(id string) (Repository, bool) {
	for _, r := range s.Repositories {
		if r.ID == id {
			return r, true
		}
	}
	return Repository{}, false
}

// HasRepository reports whether a repository with the given id is
// registered.
func (s *StateFile) HasRepository(id string) bool {
	_, ok := s.Repository(id)
	return ok
}
