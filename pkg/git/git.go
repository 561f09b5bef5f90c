// Package git implements the source-control collaborator on top of
// go-git. The deployment engine only ever consumes the resulting
// working copy path; commit metadata feeds the CLI's update summary.
package git

import (
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/rs/zerolog"

	"github.com/arthur-debert/claupack/pkg/errors"
	"github.com/arthur-debert/claupack/pkg/logging"
	"github.com/arthur-debert/claupack/pkg/types"
)

// Client implements types.SourceControl.
type Client struct {
	logger zerolog.Logger
}

// NewClient creates a source-control client.
func NewClient() *Client {
	return &Client{logger: logging.GetLogger("git")}
}

// Clone checks out url into path.
func (c *Client) Clone(url, path string) error {
	c.logger.Info().Str("url", url).Str("path", path).Msg("cloning repository")
	_, err := gogit.PlainClone(path, false, &gogit.CloneOptions{URL: url})
	if err != nil {
		if err == transport.ErrAuthenticationRequired || err == transport.ErrAuthorizationFailed {
			return errors.Wrapf(err, errors.ErrRepoAuth, "authentication failed for %s", url)
		}
		return errors.Wrapf(err, errors.ErrRepoClone, "cannot clone %s", url)
	}
	return nil
}

// Pull fast-forwards the working copy at path and summarizes what
// changed. An already-up-to-date pull returns a zero summary with the
// current commit filled in.
func (c *Client) Pull(path string) (*types.ChangeSummary, error) {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrRepoPull, "cannot open repository at %s", path)
	}

	prevRef, err := repo.Head()
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrRepoPull, "cannot read HEAD at %s", path)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrRepoPull, "cannot open worktree at %s", path)
	}

	err = worktree.Pull(&gogit.PullOptions{})
	if err == gogit.NoErrAlreadyUpToDate {
		commit := prevRef.Hash().String()
		return &types.ChangeSummary{CurrentCommit: commit, PreviousCommit: commit}, nil
	}
	if err != nil {
		if err == transport.ErrAuthenticationRequired || err == transport.ErrAuthorizationFailed {
			return nil, errors.Wrapf(err, errors.ErrRepoAuth, "authentication failed pulling %s", path)
		}
		return nil, errors.Wrapf(err, errors.ErrRepoPull, "cannot pull %s", path)
	}

	newRef, err := repo.Head()
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrRepoPull, "cannot read HEAD after pull at %s", path)
	}

	summary := &types.ChangeSummary{
		CurrentCommit:  newRef.Hash().String(),
		PreviousCommit: prevRef.Hash().String(),
	}

	prevCommit, err := repo.CommitObject(prevRef.Hash())
	if err != nil {
		return summary, nil
	}
	newCommit, err := repo.CommitObject(newRef.Hash())
	if err != nil {
		return summary, nil
	}
	patch, err := prevCommit.Patch(newCommit)
	if err != nil {
		return summary, nil
	}
	for _, stat := range patch.Stats() {
		summary.FilesChanged++
		summary.Insertions += stat.Addition
		summary.Deletions += stat.Deletion
	}

	c.logger.Info().
		Str("path", path).
		Int("files", summary.FilesChanged).
		Str("commit", summary.CurrentCommit).
		Msg("pulled repository")
	return summary, nil
}

// LatestCommit returns the commit id the working copy is at.
func (c *Client) LatestCommit(path string) (string, error) {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrRepoPull, "cannot open repository at %s", path)
	}
	ref, err := repo.Head()
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrRepoPull, "cannot read HEAD at %s", path)
	}
	return ref.Hash().String(), nil
}
