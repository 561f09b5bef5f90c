package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing and for
// the recovery coordinator's failure classification.
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInternal     ErrorCode = "INTERNAL"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"

	// Configuration errors
	ErrConfigLoad  ErrorCode = "CONFIG_LOAD"
	ErrConfigParse ErrorCode = "CONFIG_PARSE"

	// Repository errors
	ErrRepoNotFound   ErrorCode = "REPO_NOT_FOUND"
	ErrRepoExists     ErrorCode = "REPO_EXISTS"
	ErrRepoClone      ErrorCode = "REPO_CLONE"
	ErrRepoPull       ErrorCode = "REPO_PULL"
	ErrRepoAuth       ErrorCode = "REPO_AUTH"

	// Deployment errors
	ErrPatternMatch ErrorCode = "PATTERN_MATCH"
	ErrFileCopy     ErrorCode = "FILE_COPY"
	ErrFileAccess   ErrorCode = "FILE_ACCESS"
	ErrDirCreate    ErrorCode = "DIR_CREATE"
	ErrPermission   ErrorCode = "PERMISSION"
	ErrDiskFull     ErrorCode = "DISK_FULL"

	// State errors
	ErrStateLoad       ErrorCode = "STATE_LOAD"
	ErrStateSave       ErrorCode = "STATE_SAVE"
	ErrStateCorrupt    ErrorCode = "STATE_CORRUPT"
	ErrStateValidation ErrorCode = "STATE_VALIDATION"
	ErrLockHeld        ErrorCode = "LOCK_HELD"

	// Migration errors
	ErrMigrationDetect ErrorCode = "MIGRATION_DETECT"
	ErrMigrationFailed ErrorCode = "MIGRATION_FAILED"
	ErrBackupFailed    ErrorCode = "BACKUP_FAILED"

	// Import/export errors
	ErrImportVersion ErrorCode = "IMPORT_VERSION"
	ErrImportParse   ErrorCode = "IMPORT_PARSE"

	// Transient errors
	ErrNetwork ErrorCode = "NETWORK"
	ErrTimeout ErrorCode = "TIMEOUT"
)

// ClaupackError represents a structured error with code and details
type ClaupackError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *ClaupackError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *ClaupackError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *ClaupackError) Is(target error) bool {
	var targetErr *ClaupackError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new ClaupackError with the given code and message
func New(code ErrorCode, message string) *ClaupackError {
	return &ClaupackError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new ClaupackError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *ClaupackError {
	return &ClaupackError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a ClaupackError
func Wrap(err error, code ErrorCode, message string) *ClaupackError {
	if err == nil {
		return nil
	}
	return &ClaupackError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *ClaupackError {
	if err == nil {
		return nil
	}
	return &ClaupackError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error and returns it for chaining
func (e *ClaupackError) WithDetail(key string, value interface{}) *ClaupackError {
	e.Details[key] = value
	return e
}

// CodeOf extracts the ErrorCode from err, or ErrUnknown when err does
// not carry one.
func CodeOf(err error) ErrorCode {
	var ce *ClaupackError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ErrUnknown
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
