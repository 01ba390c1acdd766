// Package retry implements the reconnect policy: how long to wait
// before re-running a failed connection group, and the unbounded loop
// that keeps re-running it.
package retry

import (
	"context"
	"fmt"
	"time"

	chaterr "minechat/internal/errors"
)

// Policy maps a failure class onto a wait.
type Policy struct {
	// DelayedWait is slept before retrying a delayed-class failure
	// (name resolution, unexpected aggregates).
	DelayedWait time.Duration
	// ImmediateWait is slept before retrying an immediate-class
	// failure.  Zero means no delay at all.
	ImmediateWait time.Duration
}

// Decision is the outcome of applying a Policy to an error.
type Decision struct {
	Failure *chaterr.Failure
	Wait    time.Duration
}

// Retry reports whether the loop should run again.
func (d Decision) Retry() bool { return d.Failure.Recoverable() }

// Decide classifies err and picks the wait before the next attempt.
// err must be non-nil.
func (p Policy) Decide(err error) Decision {
	f := chaterr.Classify(err)
	switch f.Class {
	case chaterr.ClassImmediate:
		return Decision{Failure: f, Wait: p.ImmediateWait}
	case chaterr.ClassDelayed:
		return Decision{Failure: f, Wait: p.DelayedWait}
	default:
		return Decision{Failure: f}
	}
}

// Loop runs fn until it returns nil, a fatal failure, or ctx is done.
// There is no attempt budget: recoverable failures are retried forever.
//
// The attempt parameter passed to fn is 1-based.  onRetry, when set, is
// called before each wait.  A fatal failure is returned as its
// *errors.Failure, which unwraps to the original error.
func (p Policy) Loop(ctx context.Context, fn func(ctx context.Context, attempt int) error, onRetry func(attempt int, d Decision)) error {
	for attempt := 1; ; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		d := p.Decide(err)
		if !d.Retry() {
			return d.Failure
		}
		if onRetry != nil {
			onRetry(attempt, d)
		}
		if err := Sleep(ctx, d.Wait); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}
}

// Sleep waits for d or until ctx is done, whichever comes first.  A
// non-positive d returns immediately unless ctx is already done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
