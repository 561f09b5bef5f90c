// Package deploy implements the deployment engine: it scans a
// repository's working copy for files matching the category pattern
// sets, resolves target paths under the extension root, and copies
// matches with per-file conflict resolution and content hashing.
package deploy

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/claupack/pkg/checksum"
	"github.com/arthur-debert/claupack/pkg/conflict"
	"github.com/arthur-debert/claupack/pkg/errors"
	"github.com/arthur-debert/claupack/pkg/logging"
	"github.com/arthur-debert/claupack/pkg/paths"
	"github.com/arthur-debert/claupack/pkg/types"
)

// Options controls a single deploy invocation.
type Options struct {
	// Interactive selects the prompt conflict strategy. Non-interactive
	// runs use the engine's default strategy.
	Interactive bool

	// Strategy, when valid, overrides the derived strategy entirely.
	Strategy conflict.Strategy
}

// Engine deploys repository working copies into the extension
// directory.
type Engine struct {
	fs              types.FS
	paths           paths.Paths
	prompter        types.Prompter
	defaultStrategy conflict.Strategy
	promptTimeout   time.Duration
	logger          zerolog.Logger
}

// New creates a deployment engine. defaultStrategy applies to
// non-interactive deploys; prompter is consulted for interactive ones.
func New(fs types.FS, p paths.Paths, prompter types.Prompter, defaultStrategy conflict.Strategy) *Engine {
	if !defaultStrategy.IsValid() {
		defaultStrategy = conflict.StrategyOverwrite
	}
	return &Engine{
		fs:              fs,
		paths:           p,
		prompter:        prompter,
		defaultStrategy: defaultStrategy,
		promptTimeout:   conflict.DefaultPromptTimeout,
		logger:          logging.GetLogger("deploy"),
	}
}

// WithPromptTimeout overrides the conflict prompt timeout and returns
// the engine for chaining.
func (e *Engine) WithPromptTimeout(d time.Duration) *Engine {
	e.promptTimeout = d
	return e
}

// DetectPatterns scans the repository's working copy and returns the
// matches a deploy would act on, without deploying anything.
func (e *Engine) DetectPatterns(repo types.Repository) ([]types.PatternMatch, error) {
	if repo.LocalPath == "" {
		return nil, errors.New(errors.ErrInvalidInput, "repository has no local path")
	}
	if _, err := e.fs.Stat(repo.LocalPath); err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "working copy not accessible: %s", repo.LocalPath)
	}
	manifest, err := loadManifest(e.fs, repo.LocalPath)
	if err != nil {
		return nil, err
	}

	var matches []types.PatternMatch
	if repo.IsTypeBased() {
		matches, err = e.detectTypeBased(repo)
	} else {
		matches, err = e.detectCategoryPatterns(repo.LocalPath)
	}
	if err != nil {
		return nil, err
	}

	if len(manifest.Ignore) == 0 {
		return matches, nil
	}
	kept := matches[:0]
	for _, match := range matches {
		if manifest.Ignores(match.File) {
			e.logger.Debug().Str("file", match.File).Msg("excluded by manifest")
			continue
		}
		kept = append(kept, match)
	}
	return kept, nil
}

// Deploy copies every pattern match into the extension directory. A
// failing file is recorded and does not abort the batch; the result
// reports deployed, skipped, failed and conflicting paths.
func (e *Engine) Deploy(repo types.Repository, opts Options) (*types.DeploymentResult, error) {
	matches, err := e.DetectPatterns(repo)
	if err != nil {
		return nil, err
	}

	strategy := opts.Strategy
	if !strategy.IsValid() {
		if opts.Interactive {
			strategy = conflict.StrategyPrompt
		} else {
			strategy = e.defaultStrategy
		}
	}
	resolver := conflict.NewResolver(e.fs, strategy, e.prompter).WithTimeout(e.promptTimeout)

	result := &types.DeploymentResult{
		Deployed:  []types.DeployedFile{},
		Skipped:   []string{},
		Failed:    []string{},
		Conflicts: []string{},
	}

	e.logger.Info().
		Str("repository", repo.ID).
		Int("matches", len(matches)).
		Str("strategy", string(strategy)).
		Msg("deploying repository")

	for _, match := range matches {
		source := filepath.Join(repo.LocalPath, match.File)
		target := e.targetPath(match)
		if match.IsDir {
			e.deployDir(resolver, source, target, match, result)
		} else {
			e.deployFile(resolver, source, target, match.File, match.TargetType, result)
		}
	}

	e.logger.Info().
		Str("repository", repo.ID).
		Int("deployed", len(result.Deployed)).
		Int("skipped", len(result.Skipped)).
		Int("failed", len(result.Failed)).
		Int("conflicts", len(result.Conflicts)).
		Msg("deployment finished")

	return result, nil
}

// deployDir recursively deploys a directory match, preserving its
// structure under the target. Subdirectories recurse, regular files
// copy, and other entry kinds are silently ignored.
func (e *Engine) deployDir(resolver *conflict.Resolver, sourceDir, targetDir string, match types.PatternMatch, result *types.DeploymentResult) {
	entries, err := e.fs.ReadDir(sourceDir)
	if err != nil {
		e.logger.Warn().Err(err).Str("dir", sourceDir).Msg("cannot read source directory")
		result.Failed = append(result.Failed, match.File)
		return
	}

	for _, entry := range entries {
		source := filepath.Join(sourceDir, entry.Name())
		target := filepath.Join(targetDir, entry.Name())
		relSource := filepath.Join(match.File, entry.Name())

		switch {
		case entry.IsDir():
			sub := match
			sub.File = relSource
			e.deployDir(resolver, source, target, sub, result)
		case entry.Mode().IsRegular():
			e.deployFile(resolver, source, target, relSource, match.TargetType, result)
		default:
			// Sockets and other non-regular entries are not deployable.
		}
	}
}

// deployFile gates a single copy through the conflict resolver,
// performs it, and records the written target's hash.
func (e *Engine) deployFile(resolver *conflict.Resolver, source, target, relSource string, category types.Category, result *types.DeploymentResult) {
	decision, err := resolver.Resolve(target)
	if err != nil {
		result.Failed = append(result.Failed, relSource)
		return
	}
	if decision.Existed {
		result.Conflicts = append(result.Conflicts, target)
	}
	if !decision.Proceed {
		result.Skipped = append(result.Skipped, relSource)
		return
	}

	if err := e.copyFile(source, target); err != nil {
		e.logger.Warn().Err(err).Str("source", source).Str("target", target).Msg("file deployment failed")
		result.Failed = append(result.Failed, relSource)
		return
	}

	hash, err := checksum.File(e.fs, target)
	if err != nil {
		e.logger.Warn().Err(err).Str("target", target).Msg("cannot hash deployed file")
		result.Failed = append(result.Failed, relSource)
		return
	}

	result.Deployed = append(result.Deployed, types.DeployedFile{
		Source:     relSource,
		Target:     target,
		Hash:       hash,
		DeployedAt: time.Now().UTC(),
		Type:       category,
	})
}

// copyFile copies source to target, creating parent directories as
// needed and preserving the source file mode.
func (e *Engine) copyFile(source, target string) error {
	info, err := e.fs.Stat(source)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot stat source %s", source)
	}
	data, err := e.fs.ReadFile(source)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot read source %s", source)
	}
	if err := e.fs.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "cannot create target directory for %s", target)
	}
	perm := info.Mode().Perm()
	if perm == 0 {
		perm = 0644
	}
	if err := e.fs.WriteFile(target, data, perm); err != nil {
		return errors.Wrapf(err, errors.ErrFileCopy, "cannot write target %s", target)
	}
	return nil
}

// CleanOrphanedFiles removes deployed targets whose source no longer
// exists in the working copy, returning how many were removed. The
// caller supplies the repository's currently tracked files.
func (e *Engine) CleanOrphanedFiles(repo types.Repository, tracked []types.DeployedFile) (int, error) {
	if repo.LocalPath == "" {
		return 0, errors.New(errors.ErrInvalidInput, "repository has no local path")
	}

	removed := 0
	for _, df := range tracked {
		source := filepath.Join(repo.LocalPath, df.Source)
		if _, err := e.fs.Stat(source); err == nil {
			continue
		}
		if err := e.fs.Remove(df.Target); err != nil && !os.IsNotExist(err) {
			e.logger.Warn().Err(err).Str("target", df.Target).Msg("cannot remove orphaned target")
			continue
		}
		e.logger.Debug().Str("target", df.Target).Str("source", df.Source).Msg("removed orphaned target")
		removed++
	}

	return removed, nil
}
