// Package retry implements the backoff engine wrapping transport calls.
//
// Two distinct paths exist on purpose: rate-limit failures honor the
// server's stated cooldown exactly (violating it worsens throttling),
// while transient network and server failures use a fast-doubling short
// backoff.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/tallyhq-io/tally-client/internal/constants"
	"github.com/tallyhq-io/tally-client/pkg/tally"
)

// Options configures one retry run.
type Options struct {
	// Retries is the number of retry attempts after the initial try.
	Retries int
	// BaseDelay is the first backoff delay; it doubles per attempt.
	BaseDelay time.Duration
	// Sink receives the informational notification emitted before each
	// rate-limit wait. May be nil.
	Sink tally.NotificationSink
	// Logger may be nil.
	Logger tally.Logger
}

func (o *Options) withDefaults() Options {
	opts := *o

	if opts.Retries <= 0 {
		opts.Retries = constants.DefaultRetryMax
	}

	if opts.BaseDelay <= 0 {
		opts.BaseDelay = constants.DefaultRetryBaseDelay
	}

	return opts
}

// Do invokes op, re-invoking it on retry-eligible failures. Eligible kinds
// are network errors, server errors, and rate limiting; everything else
// propagates on first occurrence. Waits abort when ctx is done.
func Do[T any](ctx context.Context, op func(context.Context) (T, error), options Options) (T, error) {
	var zero T

	opts := options.withDefaults()
	delay := opts.BaseDelay

	for attempt := 0; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		if !tally.IsRetryable(err) {
			return zero, err
		}

		apiErr, _ := tally.AsAPIError(err)

		if apiErr.Kind == tally.ErrorRateLimited {
			wait := apiErr.RetryAfter
			if wait <= 0 {
				wait = constants.DefaultRetryAfterSeconds
			}

			if attempt >= opts.Retries {
				return zero, rateLimitExhausted(wait)
			}

			tally.Emit(opts.Sink, tally.Notification{
				Type:     tally.NotificationInfo,
				Title:    "Rate limited",
				Message:  fmt.Sprintf("Too many requests. Retrying in %d seconds...", wait),
				Category: constants.NotificationCategoryAPI,
			})

			if opts.Logger != nil {
				opts.Logger.Info("rate limited, waiting before retry", map[string]interface{}{
					"wait_seconds": wait,
					"attempt":      attempt + 1,
				})
			}

			if !sleep(ctx, time.Duration(wait)*time.Second) {
				return zero, err
			}

			continue
		}

		if attempt >= opts.Retries {
			return zero, err
		}

		if opts.Logger != nil {
			opts.Logger.Debug("retrying after transient failure", map[string]interface{}{
				"delay":   delay.String(),
				"attempt": attempt + 1,
				"error":   err.Error(),
			})
		}

		if !sleep(ctx, delay) {
			return zero, err
		}

		delay *= 2
	}
}

// rateLimitExhausted is the terminal rate-limit error; it always tells the
// caller the concrete wait time rather than failing silently.
func rateLimitExhausted(wait int) *tally.APIError {
	return &tally.APIError{
		Kind:       tally.ErrorRateLimited,
		Status:     429,
		RetryAfter: wait,
		Message:    fmt.Sprintf("Rate limit exceeded. Please wait %d seconds before trying again.", wait),
	}
}

// sleep waits for d, returning false when ctx finished first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
