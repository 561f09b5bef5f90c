// Package conflict decides whether a deployment may overwrite an
// existing target file.
package conflict

import (
	"fmt"
	"time"

	"github.com/arthur-debert/claupack/pkg/logging"
	"github.com/arthur-debert/claupack/pkg/types"
)

// Strategy selects how an existing target is handled.
type Strategy string

const (
	// StrategySkip never overwrites an existing target.
	StrategySkip Strategy = "skip"

	// StrategyOverwrite always overwrites an existing target.
	StrategyOverwrite Strategy = "overwrite"

	// StrategyPrompt asks the user, defaulting to no-overwrite when
	// the prompt times out or no terminal is attached.
	StrategyPrompt Strategy = "prompt"
)

// DefaultPromptTimeout bounds how long a prompt may wait for an answer.
const DefaultPromptTimeout = 30 * time.Second

// IsValid reports whether s is a recognized strategy.
func (s Strategy) IsValid() bool {
	switch s {
	case StrategySkip, StrategyOverwrite, StrategyPrompt:
		return true
	}
	return false
}

// Decision is the resolver's verdict for one target.
type Decision struct {
	// Proceed is true when the copy should go ahead.
	Proceed bool

	// Existed is true when the target was already present, i.e. a
	// conflict occurred regardless of how it was resolved.
	Existed bool
}

// Resolver gates copies over existing targets.
type Resolver struct {
	fs       types.FS
	strategy Strategy
	prompter types.Prompter
	timeout  time.Duration
}

// NewResolver creates a resolver for the given strategy. prompter may
// be nil for skip/overwrite.
func NewResolver(fs types.FS, strategy Strategy, prompter types.Prompter) *Resolver {
	return &Resolver{
		fs:       fs,
		strategy: strategy,
		prompter: prompter,
		timeout:  DefaultPromptTimeout,
	}
}

// WithTimeout overrides the prompt timeout and returns the resolver
// for chaining.
func (r *Resolver) WithTimeout(d time.Duration) *Resolver {
	r.timeout = d
	return r
}

// Resolve decides whether deploying over target may proceed. A target
// that does not exist is never a conflict and always proceeds.
func (r *Resolver) Resolve(target string) (Decision, error) {
	logger := logging.GetLogger("conflict")

	if _, err := r.fs.Stat(target); err != nil {
		return Decision{Proceed: true, Existed: false}, nil
	}

	switch r.strategy {
	case StrategySkip:
		logger.Debug().Str("target", target).Msg("target exists, skipping")
		return Decision{Proceed: false, Existed: true}, nil
	case StrategyOverwrite:
		logger.Debug().Str("target", target).Msg("target exists, overwriting")
		return Decision{Proceed: true, Existed: true}, nil
	case StrategyPrompt:
		if r.prompter == nil {
			// No collaborator attached behaves like a non-interactive
			// terminal: the safe default applies.
			return Decision{Proceed: false, Existed: true}, nil
		}
		message := fmt.Sprintf("File %s already exists. Overwrite?", target)
		answer := r.prompter.AskYesNo(message, false, r.timeout)
		logger.Debug().Str("target", target).Bool("overwrite", answer).Msg("conflict resolved by prompt")
		return Decision{Proceed: answer, Existed: true}, nil
	}

	return Decision{}, fmt.Errorf("unknown conflict strategy %q", r.strategy)
}
