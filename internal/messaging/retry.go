package messaging

import (
	"errors"
	"fmt"
	"time"
)

// RetryPolicy drives the consumer's redelivery schedule. Attempts are counted
// from 1; Delay(n) is the wait before redelivering a message that has already
// failed n times.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     []time.Duration
}

// NewRetryPolicy builds a policy from configuration. The backoff slice must
// cover MaxAttempts entries; the last entry is reused if it does not.
func NewRetryPolicy(maxAttempts int, backoff []time.Duration) RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if len(backoff) == 0 {
		backoff = []time.Duration{5 * time.Second}
	}
	return RetryPolicy{MaxAttempts: maxAttempts, Backoff: backoff}
}

// ShouldRetry reports whether a message that has failed `attempts` times gets
// another delivery.
func (p RetryPolicy) ShouldRetry(attempts int) bool {
	return attempts < p.MaxAttempts
}

// Delay returns the wait before the next delivery after `attempts` failures.
func (p RetryPolicy) Delay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	if attempts > len(p.Backoff) {
		return p.Backoff[len(p.Backoff)-1]
	}
	return p.Backoff[attempts-1]
}

// PermanentError marks a handler failure as non-retryable: the consumer skips
// the retry schedule and fails the job terminally on first occurrence.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return fmt.Sprintf("permanent: %v", e.Err) }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as non-retryable. A nil err returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err (or anything it wraps) is non-retryable.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
