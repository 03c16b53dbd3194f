package storage

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds the attempts made for one upload. Delays double from
// BaseDelay and no delay follows the final attempt.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

func NewRetryPolicy(attempts int, base time.Duration) RetryPolicy {
	if attempts < 1 {
		attempts = 1
	}
	return RetryPolicy{Attempts: attempts, BaseDelay: base}
}

// WithSleeper replaces the wall-clock sleep, mostly for tests.
func (p RetryPolicy) WithSleeper(sleep func(ctx context.Context, d time.Duration) error) RetryPolicy {
	p.sleep = sleep
	return p
}

// Do calls op until it succeeds, reports a non-retryable error, or the
// attempts run out. It returns the number of attempts made.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context, attempt int) (retryable bool, err error)) (int, error) {
	backoff := p.backoff()
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	for attempt := 1; ; attempt++ {
		retryable, err := op(ctx, attempt)
		if err == nil || !retryable {
			return attempt, err
		}

		delay, stop := backoff.Next()
		if stop {
			return attempt, err
		}
		if serr := sleep(ctx, delay); serr != nil {
			return attempt, serr
		}
	}
}

func (p RetryPolicy) backoff() retry.Backoff {
	retries := uint64(0)
	if p.Attempts > 1 {
		retries = uint64(p.Attempts - 1)
	}

	var b retry.Backoff
	if p.BaseDelay > 0 {
		b = retry.NewExponential(p.BaseDelay)
	} else {
		b = retry.BackoffFunc(func() (time.Duration, bool) { return 0, false })
	}
	return retry.WithMaxRetries(retries, b)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
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
