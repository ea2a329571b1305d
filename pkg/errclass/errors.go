package errclass

import "fmt"

// GitLockError is a stable, machine-readable error class.
type GitLockError struct {
	Code    string
	Message string
}

func (e *GitLockError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *GitLockError) Is(target error) bool {
	t, ok := target.(*GitLockError)
	return ok && e.Code == t.Code
}

// WithMessage returns a new GitLockError with the same Code but a specific message.
func (e *GitLockError) WithMessage(msg string) *GitLockError {
	return &GitLockError{Code: e.Code, Message: msg}
}

// WithMessagef returns a new GitLockError with a formatted message.
func (e *GitLockError) WithMessagef(format string, args ...any) *GitLockError {
	return &GitLockError{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// Stable error classes.
var (
	// ErrSpawnFailure means the backing tool could not be started at all.
	ErrSpawnFailure = &GitLockError{Code: "E_SPAWN_FAILURE"}
	// ErrBackendFailure means the tool ran but reported a fatal marker or wrote to stderr.
	ErrBackendFailure = &GitLockError{Code: "E_BACKEND_FAILURE"}
	ErrNotARepository = &GitLockError{Code: "E_NOT_A_REPOSITORY"}
	ErrParseAnomaly   = &GitLockError{Code: "E_PARSE_ANOMALY"}
	ErrPartialRefresh = &GitLockError{Code: "E_PARTIAL_REFRESH"}
	ErrCanceled       = &GitLockError{Code: "E_CANCELED"}
	ErrNotInitialized = &GitLockError{Code: "E_NOT_INITIALIZED"}
	ErrConfigInvalid  = &GitLockError{Code: "E_CONFIG_INVALID"}
	ErrQueueClosed    = &GitLockError{Code: "E_QUEUE_CLOSED"}
	ErrAuditCorrupt   = &GitLockError{Code: "E_AUDIT_CORRUPT"}
	// ErrLockConflict means the path is locked by someone else or already
	// has an operation in flight.
	ErrLockConflict = &GitLockError{Code: "E_LOCK_CONFLICT"}
	ErrNotLocked    = &GitLockError{Code: "E_NOT_LOCKED"}
)
