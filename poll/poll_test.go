package poll

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"reelcast/types"
)

type jobStatus struct {
	state  string
	reason string
}

func isDone(s jobStatus) bool { return s.state == "completed" }

func isFailed(s jobStatus) (string, bool) { return s.reason, s.state == "failed" }

// countingSleep records waits without blocking.
func countingSleep(n *int) Sleeper {
	return func(ctx context.Context, d time.Duration) error {
		*n++
		return ctx.Err()
	}
}

func sequence(states ...jobStatus) (func(context.Context) (jobStatus, error), *int) {
	calls := 0
	return func(context.Context) (jobStatus, error) {
		s := states[min(calls, len(states)-1)]
		calls++
		return s, nil
	}, &calls
}

func TestUntil_ReturnsTerminalStatus(t *testing.T) {
	fetch, calls := sequence(jobStatus{state: "pending"}, jobStatus{state: "pending"}, jobStatus{state: "completed"})
	sleeps := 0

	got, err := Until(context.Background(), fetch, isDone, isFailed, Options{
		Provider: "test", Interval: time.Second, MaxAttempts: 5, Sleep: countingSleep(&sleeps),
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.state != "completed" {
		t.Errorf("expected completed status, got %q", got.state)
	}
	if *calls != 3 {
		t.Errorf("expected 3 status checks, got %d", *calls)
	}
	if sleeps != 3 {
		t.Errorf("expected one wait before each check, got %d", sleeps)
	}
}

func TestUntil_FailedStatusSurfacesReason(t *testing.T) {
	fetch, _ := sequence(jobStatus{state: "failed", reason: "content policy violation"})

	_, err := Until(context.Background(), fetch, isDone, isFailed, Options{
		Provider: "runway", MaxAttempts: 3, Sleep: countingSleep(new(int)),
	})

	if !errors.Is(err, types.ErrJobFailed) {
		t.Fatalf("expected ErrJobFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "content policy violation") {
		t.Errorf("failure reason should be surfaced, got %q", err.Error())
	}
}

func TestUntil_TimesOutAfterMaxAttempts(t *testing.T) {
	fetch, calls := sequence(jobStatus{state: "pending"})

	_, err := Until(context.Background(), fetch, isDone, isFailed, Options{
		Provider: "runway", MaxAttempts: 4, Sleep: countingSleep(new(int)),
	})

	if !errors.Is(err, types.ErrJobTimeout) {
		t.Fatalf("expected ErrJobTimeout, got %v", err)
	}
	if *calls != 4 {
		t.Errorf("expected exactly 4 checks before giving up, got %d", *calls)
	}
}

func TestUntil_PropagatesFetchErrorsAsTransport(t *testing.T) {
	fetch := func(context.Context) (jobStatus, error) {
		return jobStatus{}, errors.New("connection reset by peer")
	}

	_, err := Until(context.Background(), fetch, isDone, isFailed, Options{
		Provider: "runway", MaxAttempts: 10, Sleep: countingSleep(new(int)),
	})

	if !errors.Is(err, types.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if !strings.Contains(err.Error(), "connection reset by peer") {
		t.Errorf("transport error should keep its cause, got %q", err.Error())
	}
}

func TestUntil_StopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fetch, calls := sequence(jobStatus{state: "pending"})

	_, err := Until(ctx, fetch, isDone, isFailed, Options{Provider: "runway", Interval: time.Hour, MaxAttempts: 3})

	if !errors.Is(err, types.ErrTransport) {
		t.Fatalf("expected ErrTransport on cancellation, got %v", err)
	}
	if *calls != 0 {
		t.Errorf("no checks should run after cancellation, got %d", *calls)
	}
}

func TestUntil_RejectsZeroAttempts(t *testing.T) {
	fetch, _ := sequence(jobStatus{state: "completed"})
	if _, err := Until(context.Background(), fetch, isDone, isFailed, Options{Provider: "x"}); err == nil {
		t.Fatal("zero attempts should be rejected")
	}
}

func TestSleep_WaitsForInterval(t *testing.T) {
	start := time.Now()
	if err := Sleep(context.Background(), 20*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("sleep returned before the interval elapsed")
	}
}
