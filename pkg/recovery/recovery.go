// Package recovery classifies engine and store failures into recovery
// strategies and executes the corresponding remediation. Recovery is
// always explicit about which strategy ran and whether it succeeded,
// so callers can decide whether to continue a bulk operation.
package recovery

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/claupack/pkg/errors"
	"github.com/arthur-debert/claupack/pkg/logging"
	"github.com/arthur-debert/claupack/pkg/paths"
	"github.com/arthur-debert/claupack/pkg/state"
	"github.com/arthur-debert/claupack/pkg/types"
)

// FailureKind is the finite set of failure classes recovery knows
// about. Classification is an exhaustive switch over error codes, not
// a free-form string lookup.
type FailureKind int

const (
	KindUnknown FailureKind = iota
	KindTransient
	KindPermission
	KindValidation
	KindCorruption
)

// String implements fmt.Stringer.
func (k FailureKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermission:
		return "permission"
	case KindValidation:
		return "validation"
	case KindCorruption:
		return "corruption"
	default:
		return "unknown"
	}
}

// Strategy is the finite set of remediations.
type Strategy int

const (
	StrategyManual Strategy = iota
	StrategyRetry
	StrategySkip
	StrategyRestoreBackup
	StrategyRecreate
)

// String implements fmt.Stringer.
func (s Strategy) String() string {
	switch s {
	case StrategyRetry:
		return "retry"
	case StrategySkip:
		return "skip"
	case StrategyRestoreBackup:
		return "restore-backup"
	case StrategyRecreate:
		return "recreate"
	default:
		return "manual"
	}
}

// Classify maps an error's code to its failure kind.
func Classify(err error) FailureKind {
	switch errors.CodeOf(err) {
	case errors.ErrNetwork,
		errors.ErrTimeout,
		errors.ErrLockHeld,
		errors.ErrRepoClone,
		errors.ErrRepoPull:
		return KindTransient
	case errors.ErrPermission,
		errors.ErrRepoAuth,
		errors.ErrDiskFull:
		return KindPermission
	case errors.ErrInvalidInput,
		errors.ErrStateValidation,
		errors.ErrImportVersion,
		errors.ErrImportParse,
		errors.ErrConfigParse:
		return KindValidation
	case errors.ErrStateCorrupt:
		return KindCorruption
	default:
		return KindUnknown
	}
}

// Context carries what the coordinator needs to remediate: a retryable
// operation, whether the caller opted in to skipping validation
// failures, and an optional explicit backup to restore from.
type Context struct {
	Retry      func() error
	AllowSkip  bool
	BackupPath string
}

// Result reports which strategy ran and whether it succeeded.
type Result struct {
	Kind      FailureKind
	Strategy  Strategy
	Succeeded bool
	Attempts  int
	Message   string
}

// Retry bounds.
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 500 * time.Millisecond
)

// Coordinator executes recovery strategies.
type Coordinator struct {
	fs         types.FS
	paths      paths.Paths
	store      *state.Store
	maxRetries int
	retryDelay time.Duration
	logger     zerolog.Logger
}

// NewCoordinator creates a coordinator writing state remediations
// through the given store.
func NewCoordinator(fs types.FS, p paths.Paths, store *state.Store) *Coordinator {
	return &Coordinator{
		fs:         fs,
		paths:      p,
		store:      store,
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		logger:     logging.GetLogger("recovery"),
	}
}

// WithRetry overrides the retry bounds and returns the coordinator
// for chaining.
func (c *Coordinator) WithRetry(maxRetries int, delay time.Duration) *Coordinator {
	if maxRetries > 0 {
		c.maxRetries = maxRetries
	}
	if delay >= 0 {
		c.retryDelay = delay
	}
	return c
}

// Recover classifies the failure and executes the mapped strategy.
func (c *Coordinator) Recover(failure error, ctx Context) Result {
	kind := Classify(failure)
	c.logger.Info().Str("kind", kind.String()).Err(failure).Msg("recovering from failure")

	switch kind {
	case KindTransient:
		return c.retry(failure, ctx)
	case KindValidation:
		return c.skip(failure, ctx)
	case KindCorruption:
		return c.restoreOrRecreate(failure, ctx)
	case KindPermission:
		return Result{
			Kind:     kind,
			Strategy: StrategyManual,
			Message:  fmt.Sprintf("manual intervention required: %v", failure),
		}
	default:
		return Result{
			Kind:     kind,
			Strategy: StrategyManual,
			Message:  fmt.Sprintf("unrecognized failure, manual intervention required: %v", failure),
		}
	}
}

// retry re-runs the operation a bounded number of times. Permission
// and validation failures never come through here: transient ones are
// the only class worth retrying silently.
func (c *Coordinator) retry(failure error, ctx Context) Result {
	result := Result{Kind: KindTransient, Strategy: StrategyRetry}
	if ctx.Retry == nil {
		result.Message = "no retry operation provided"
		return result
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		result.Attempts = attempt
		if lastErr = ctx.Retry(); lastErr == nil {
			result.Succeeded = true
			result.Message = fmt.Sprintf("succeeded on attempt %d", attempt)
			return result
		}
		c.logger.Debug().Int("attempt", attempt).Err(lastErr).Msg("retry failed")
		time.Sleep(c.retryDelay)
	}

	result.Message = fmt.Sprintf("exhausted %d attempts: %v", c.maxRetries, lastErr)
	return result
}

// skip succeeds only when the caller opted in; otherwise the failure
// is surfaced as such.
func (c *Coordinator) skip(failure error, ctx Context) Result {
	result := Result{Kind: KindValidation, Strategy: StrategySkip}
	if ctx.AllowSkip {
		result.Succeeded = true
		result.Message = fmt.Sprintf("skipped: %v", failure)
	} else {
		result.Message = fmt.Sprintf("validation failure (skipping not allowed): %v", failure)
	}
	return result
}

// restoreOrRecreate restores the state document from the most recent
// readable backup, falling back to recreating empty state when no
// usable backup exists.
func (c *Coordinator) restoreOrRecreate(failure error, ctx Context) Result {
	backupPath := ctx.BackupPath
	if backupPath == "" {
		backupPath = c.latestBackup()
	}

	if backupPath != "" {
		if restored, err := c.restore(backupPath); err == nil {
			return Result{
				Kind:      KindCorruption,
				Strategy:  StrategyRestoreBackup,
				Succeeded: true,
				Message:   fmt.Sprintf("restored %d repositories from %s", len(restored.Repositories), backupPath),
			}
		} else {
			c.logger.Warn().Err(err).Str("backup", backupPath).Msg("backup not usable, recreating state")
		}
	}

	if _, err := c.store.Reset(); err != nil {
		return Result{
			Kind:     KindCorruption,
			Strategy: StrategyRecreate,
			Message:  fmt.Sprintf("cannot recreate state: %v", err),
		}
	}
	return Result{
		Kind:      KindCorruption,
		Strategy:  StrategyRecreate,
		Succeeded: true,
		Message:   "recreated empty state",
	}
}

// restore reads a backup, verifies it decodes as a schema-current
// document, and writes it back through the store's atomic save.
func (c *Coordinator) restore(backupPath string) (*types.StateFile, error) {
	data, err := c.fs.ReadFile(backupPath)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrStateLoad, "cannot read backup %s", backupPath)
	}
	var st types.StateFile
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, errors.Wrapf(err, errors.ErrStateCorrupt, "backup %s is not a valid document", backupPath)
	}
	if !strings.HasPrefix(st.Version, "2.") {
		return nil, errors.Newf(errors.ErrStateCorrupt, "backup %s has schema version %q", backupPath, st.Version)
	}
	if err := c.store.Save(&st); err != nil {
		return nil, err
	}
	return &st, nil
}

// latestBackup finds the most recent backup file next to the state
// document, or empty when none exist.
func (c *Coordinator) latestBackup() string {
	entries, err := c.fs.ReadDir(c.paths.DataDir())
	if err != nil {
		return ""
	}
	var backups []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), paths.BackupPrefix) {
			backups = append(backups, entry.Name())
		}
	}
	if len(backups) == 0 {
		return ""
	}
	sort.Strings(backups)
	return filepath.Join(c.paths.DataDir(), backups[len(backups)-1])
}
