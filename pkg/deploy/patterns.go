package deploy

import (
	"io/fs"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/arthur-debert/claupack/pkg/types"
)

// categoryPatterns is the fixed glob set evaluated per category, in
// order. Each pattern covers both single files and directories
// directly under the conventional source prefix.
var categoryPatterns = map[types.Category][]string{
	types.CategoryCommands: {".claude/commands/*", "commands/*"},
	types.CategoryAgents:   {".claude/agents/*", "agents/*"},
	types.CategoryHooks:    {".claude/hooks/*", "hooks/*"},
}

// acceptedExtensions covers script and markdown-like text files.
var acceptedExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
	".js":       true,
	".mjs":      true,
	".ts":       true,
	".sh":       true,
	".bash":     true,
	".py":       true,
}

// excludedDirs are VCS/build directories never treated as deployable
// content in type-based mode. Dot-directories are excluded separately.
var excludedDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"__pycache__":  true,
}

// TypeBasedPattern is the pattern recorded on matches produced by
// type-based repositories, which bypass per-category globs.
const TypeBasedPattern = "type-based"

// detectCategoryPatterns evaluates the per-category glob sets against
// the working copy rooted at repoPath. Matches are deduplicated by
// relative path; the first matching category wins.
func (e *Engine) detectCategoryPatterns(repoPath string) ([]types.PatternMatch, error) {
	var matches []types.PatternMatch
	seen := map[string]bool{}

	for _, category := range types.Categories() {
		for _, pattern := range categoryPatterns[category] {
			dir := filepath.Dir(pattern)
			glob := filepath.Base(pattern)

			entries, err := e.fs.ReadDir(filepath.Join(repoPath, dir))
			if err != nil {
				// A repository is not required to carry every
				// conventional subfolder.
				continue
			}

			for _, entry := range entries {
				if !qualifies(entry) {
					continue
				}
				matched, err := filepath.Match(glob, entry.Name())
				if err != nil || !matched {
					continue
				}
				rel := filepath.Join(dir, entry.Name())
				if seen[rel] {
					continue
				}
				seen[rel] = true
				matches = append(matches, types.PatternMatch{
					File:       rel,
					Pattern:    pattern,
					TargetType: category,
					IsDir:      entry.IsDir(),
				})
			}
		}
	}

	return matches, nil
}

// detectTypeBased walks the repository root and routes every
// qualifying entry under the repository's configured category.
// Dotfiles, all-uppercase-named files (README and friends) and common
// VCS/build directories are excluded.
func (e *Engine) detectTypeBased(repo types.Repository) ([]types.PatternMatch, error) {
	entries, err := e.fs.ReadDir(repo.LocalPath)
	if err != nil {
		return nil, err
	}

	var matches []types.PatternMatch
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || isUpperName(name) {
			continue
		}
		if entry.IsDir() {
			if excludedDirs[name] {
				continue
			}
		} else if !qualifies(entry) {
			continue
		}
		matches = append(matches, types.PatternMatch{
			File:       name,
			Pattern:    TypeBasedPattern,
			TargetType: repo.Type,
			IsDir:      entry.IsDir(),
		})
	}

	return matches, nil
}

// qualifies reports whether an entry is deployable: a directory, or a
// regular file with an accepted extension. Sockets and other
// non-regular entries are silently ignored.
func qualifies(entry fs.FileInfo) bool {
	if entry.IsDir() {
		return true
	}
	if !entry.Mode().IsRegular() {
		return false
	}
	return acceptedExtensions[strings.ToLower(filepath.Ext(entry.Name()))]
}

// isUpperName reports whether the name's stem is entirely uppercase,
// the convention for README-style files that are documentation rather
// than deployable content.
func isUpperName(name string) bool {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	hasLetter := false
	for _, r := range stem {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

// targetPath resolves where a match materializes: the conventional
// source prefix is stripped and the remainder joined under the
// category directory of the extension root.
func (e *Engine) targetPath(match types.PatternMatch) string {
	rel := match.File
	for _, prefix := range []string{
		filepath.Join(".claude", string(match.TargetType)) + string(filepath.Separator),
		string(match.TargetType) + string(filepath.Separator),
	} {
		if strings.HasPrefix(rel, prefix) {
			rel = strings.TrimPrefix(rel, prefix)
			break
		}
	}
	return filepath.Join(e.paths.CategoryDir(match.TargetType), rel)
}
