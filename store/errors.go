package store

import (
	"errors"
	"fmt"
	"time"
)

// Failure taxonomy surfaced to callers. Transports wrap these with
// human-readable context; callers dispatch with errors.Is.
var (
	// ErrAuth means the remote rejected our credentials (401).
	ErrAuth = errors.New("authentication failed")

	// ErrPermission means the credentials lack access (403).
	ErrPermission = errors.New("permission denied")

	// ErrNotFound means the document does not exist (404).
	ErrNotFound = errors.New("document not found")

	// ErrConflict means a tag-conditioned write lost to a concurrent
	// writer (409), or that the bounded retry protocol was exhausted.
	ErrConflict = errors.New("version conflict")

	// ErrRateLimited means the remote throttled us (429).
	ErrRateLimited = errors.New("rate limited")

	// ErrConnectivity means the remote was unreachable.
	ErrConnectivity = errors.New("remote store unreachable")
)

// RateLimitError carries the remote's suggested retry delay, when one
// was supplied. It matches ErrRateLimited under errors.Is.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}
