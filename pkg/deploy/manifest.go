package deploy

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/arthur-debert/claupack/pkg/errors"
	"github.com/arthur-debert/claupack/pkg/types"
)

// ManifestName is the optional per-repository manifest at the working
// copy root.
const ManifestName = ".claupack.toml"

// Manifest holds per-repository deployment options. A repository
// without a manifest deploys everything its patterns match.
type Manifest struct {
	Ignore []IgnoreRule `toml:"ignore"`
}

// IgnoreRule excludes files from deployment. Path is a glob matched
// against the working-copy-relative path and against the base name.
type IgnoreRule struct {
	Path string `toml:"path"`
}

// Ignores reports whether the given relative path is excluded.
func (m *Manifest) Ignores(rel string) bool {
	for _, rule := range m.Ignore {
		if ok, err := filepath.Match(rule.Path, rel); err == nil && ok {
			return true
		}
		if ok, err := filepath.Match(rule.Path, filepath.Base(rel)); err == nil && ok {
			return true
		}
	}
	return false
}

// loadManifest reads the repository manifest. A missing file yields an
// empty manifest; an unparseable one is an error, not a silent
// deploy-everything.
func loadManifest(fs types.FS, repoPath string) (*Manifest, error) {
	data, err := fs.ReadFile(filepath.Join(repoPath, ManifestName))
	if err != nil {
		if os.IsNotExist(err) {
			return &Manifest{}, nil
		}
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "cannot read %s in %s", ManifestName, repoPath)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigParse, "invalid %s in %s", ManifestName, repoPath)
	}
	return &m, nil
}
