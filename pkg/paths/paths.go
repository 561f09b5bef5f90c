// Package paths provides centralized path handling for claupack.
// It implements XDG Base Directory specification compliance and
// provides a consistent API for all path operations in the codebase.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"

	"github.com/arthur-debert/claupack/pkg/errors"
	"github.com/arthur-debert/claupack/pkg/types"
)

// Environment variable names
const (
	// EnvExtensionDir overrides the extension directory deployments
	// are materialized into
	EnvExtensionDir = "CLAUPACK_EXT_DIR"

	// EnvDataDir overrides the XDG data directory for claupack
	EnvDataDir = "CLAUPACK_DATA_DIR"

	// EnvConfigDir overrides the XDG config directory for claupack
	EnvConfigDir = "CLAUPACK_CONFIG_DIR"

	// EnvHome is the standard home directory variable
	EnvHome = "HOME"
)

// Default directories and files
// IMPORTANT: These constants define claupack's on-disk layout and are
// NOT user-configurable. They must remain consistent across
// installations so that state written by one version is found by the
// next.
const (
	// AppDirName is the directory name for claupack-specific files
	AppDirName = "claupack"

	// DefaultExtensionDir is the extension directory under $HOME
	DefaultExtensionDir = ".claude"

	// StateFileName is the name of the persisted state document
	StateFileName = "state.json"

	// LockSuffix is appended to the state file path to form the lock
	// marker path
	LockSuffix = ".lock"

	// BackupPrefix is the backup file name prefix used by the migrator
	BackupPrefix = "state.json.backup-"

	// ReposDirName is the subdirectory holding cloned working copies
	ReposDirName = "repos"

	// ConfigFileName is the user configuration file name
	ConfigFileName = "claupack.toml"
)

// Paths provides centralized path management for claupack
type Paths interface {
	// ExtensionRoot is the directory deployed files are materialized
	// under, organized by category.
	ExtensionRoot() string

	// CategoryDir returns the target directory for a category.
	CategoryDir(c types.Category) string

	DataDir() string
	ConfigDir() string
	ConfigFilePath() string

	// StateFilePath is the persisted state document.
	StateFilePath() string

	// LockFilePath is the sibling lock marker for the state document.
	LockFilePath() string

	// BackupPath returns the backup file path for the given unix
	// timestamp.
	BackupPath(unixTS int64) string

	// ReposDir is where cloned working copies live.
	ReposDir() string
	RepoPath(id string) string
}

type paths struct {
	extensionRoot string
	dataDir       string
	configDir     string
}

// New creates a new Paths instance. If extensionRoot is empty it is
// resolved from CLAUPACK_EXT_DIR, falling back to ~/.claude.
func New(extensionRoot string) (Paths, error) {
	p := &paths{}

	if extensionRoot == "" {
		extensionRoot = os.Getenv(EnvExtensionDir)
	}
	if extensionRoot == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigLoad, "cannot determine home directory")
		}
		extensionRoot = filepath.Join(home, DefaultExtensionDir)
	} else {
		extensionRoot = expandHome(extensionRoot)
	}

	absRoot, err := filepath.Abs(extensionRoot)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to get absolute path for extension root")
	}
	p.extensionRoot = absRoot

	if dir := os.Getenv(EnvDataDir); dir != "" {
		p.dataDir = expandHome(dir)
	} else {
		p.dataDir = filepath.Join(xdg.DataHome, AppDirName)
	}

	if dir := os.Getenv(EnvConfigDir); dir != "" {
		p.configDir = expandHome(dir)
	} else {
		p.configDir = filepath.Join(xdg.ConfigHome, AppDirName)
	}

	return p, nil
}

func (p *paths) ExtensionRoot() string {
	return p.extensionRoot
}

func (p *paths) CategoryDir(c types.Category) string {
	return filepath.Join(p.extensionRoot, string(c))
}

func (p *paths) DataDir() string {
	return p.dataDir
}

func (p *paths) ConfigDir() string {
	return p.configDir
}

func (p *paths) ConfigFilePath() string {
	return filepath.Join(p.configDir, ConfigFileName)
}

func (p *paths) StateFilePath() string {
	return filepath.Join(p.dataDir, StateFileName)
}

func (p *paths) LockFilePath() string {
	return p.StateFilePath() + LockSuffix
}

func (p *paths) BackupPath(unixTS int64) string {
	return filepath.Join(p.dataDir, fmt.Sprintf("%s%d", BackupPrefix, unixTS))
}

func (p *paths) ReposDir() string {
	return filepath.Join(p.dataDir, ReposDirName)
}

func (p *paths) RepoPath(id string) string {
	return filepath.Join(p.ReposDir(), id)
}

// expandHome expands a leading ~/ to the user's home directory
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
