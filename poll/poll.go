// Package poll waits on long-running provider jobs.
package poll

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"reelcast/types"
)

// Sleeper suspends the calling goroutine for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep waits on a timer without holding any other pipeline back.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Options bound a poll loop.
type Options struct {
	Provider    string
	Interval    time.Duration
	MaxAttempts int
	Sleep       Sleeper
}

// Until checks fetch once per interval until done reports true. A status
// for which failed reports true ends the loop with ErrJobFailed carrying the
// returned reason; running out of attempts ends it with ErrJobTimeout.
// Errors from fetch end the loop as transport errors.
func Until[S any](
	ctx context.Context,
	fetch func(context.Context) (S, error),
	done func(S) bool,
	failed func(S) (string, bool),
	opts Options,
) (S, error) {
	var zero S

	sleep := opts.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	if opts.MaxAttempts <= 0 {
		return zero, errors.Errorf("poll %s: max attempts must be positive", opts.Provider)
	}

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if err := sleep(ctx, opts.Interval); err != nil {
			return zero, types.Transport(opts.Provider, errors.Wrap(err, "poll interrupted"))
		}

		status, err := fetch(ctx)
		if err != nil {
			return zero, types.Transport(opts.Provider, err)
		}
		if done(status) {
			return status, nil
		}
		if reason, ok := failed(status); ok {
			return zero, &types.ProviderError{
				Kind:     types.ErrJobFailed,
				Provider: opts.Provider,
				Message:  reason,
			}
		}
	}

	return zero, &types.ProviderError{
		Kind:     types.ErrJobTimeout,
		Provider: opts.Provider,
		Message:  fmt.Sprintf("no terminal state after %d checks (%s apart)", opts.MaxAttempts, opts.Interval),
	}
}
