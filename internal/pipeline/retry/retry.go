// Package retry implements the pipeline's generic retry/backoff
// harness (exponential backoff with jitter, classified retryable vs
// fatal errors), the shape every external model adapter retries its
// HTTP calls with.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"time"

	"github.com/yungbote/novelvideo/internal/pipeline/pipeerr"
)

// Policy configures a retry run. Retryable decides whether a given
// error should be retried; nil means IsRetryable decides.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	JitterFrac  float64
	Retryable   func(error) bool
}

// DefaultPolicy mirrors the backoff shape used across the external
// model adapters: 1s base, doubling, capped at 10s, +/-20% jitter.
func DefaultPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
		JitterFrac:  0.2,
		Retryable:   IsRetryable,
	}
}

// IsRetryable classifies network and context errors the way the
// adapters' HTTP clients do: timeouts and temporary network errors
// are retryable, a cancelled or expired context never is.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var je *pipeerr.JobError
	if errors.As(err, &je) && je.Kind == pipeerr.KindCancelled {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return true
}

// Run executes fn up to policy.MaxAttempts times, sleeping an
// exponentially growing, jittered backoff between attempts. It
// returns as soon as fn succeeds, as soon as ctx is done, or as soon
// as policy.Retryable reports the latest error as fatal. The zero
// value of T is returned alongside a non-nil error on exhaustion.
func Run[T any](ctx context.Context, policy Policy, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	retryable := policy.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}
	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := fn(ctx, attempt)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if attempt == maxAttempts || !retryable(err) {
			return zero, lastErr
		}

		delay := computeBackoff(policy, attempt)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
	return zero, lastErr
}

// computeBackoff returns base*2^(attempt-1) capped at MaxDelay, with
// +/-JitterFrac multiplicative jitter applied.
func computeBackoff(policy Policy, attempt int) time.Duration {
	base := policy.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	max := policy.MaxDelay
	if max <= 0 {
		max = 10 * time.Second
	}

	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			d = max
			break
		}
	}

	jitter := policy.JitterFrac
	if jitter <= 0 {
		return d
	}
	delta := float64(d) * jitter
	offset := (rand.Float64()*2 - 1) * delta
	result := time.Duration(float64(d) + offset)
	if result < 0 {
		result = 0
	}
	return result
}
