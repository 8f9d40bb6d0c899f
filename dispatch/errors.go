package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrHookNotFound means the hook was removed after the job was enqueued
	ErrHookNotFound = errors.New("hook not found")

	// ErrRetriesExhausted wraps the last failure of a job that used all its attempts
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// TransientError is a failure that may succeed on a later attempt
type TransientError struct {
	Reason     string
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient delivery failure (status %d): %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("transient delivery failure: %s", e.Reason)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError is a failure that no retry can fix, e.g. a 4xx rejection
type PermanentError struct {
	Reason     string
	StatusCode int
	Err        error
}

func (e *PermanentError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("permanent delivery failure (status %d): %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("permanent delivery failure: %s", e.Reason)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// IsRetryable reports whether another attempt could change the result.
// Missing hooks and permanent failures are final; anything else is retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrHookNotFound) {
		return false
	}
	var permanent *PermanentError
	return !errors.As(err, &permanent)
}
