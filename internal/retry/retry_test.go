package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"postcast/internal/services"
)

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	errUnavailable := services.Wrap(services.ErrTransient, "api", "update", "status 503", nil)
	var slept []time.Duration
	policy := Policy{
		MaxAttempts: 3,
		BaseDelay:   4 * time.Second,
		MaxDelay:    60 * time.Second,
		Sleeper:     func(d time.Duration) { slept = append(slept, d) },
	}

	calls := 0
	err := policy.Do(context.Background(), "update", func() error {
		calls++
		if calls < 3 {
			return errUnavailable
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
	want := []time.Duration{4 * time.Second, 8 * time.Second}
	if len(slept) != len(want) {
		t.Fatalf("sleeps: got %v, want %v", slept, want)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Errorf("sleep[%d]: got %v, want %v", i, slept[i], want[i])
		}
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	errNotFound := services.Wrap(services.ErrExternalAPI, "api", "fetch", "status 404", nil)
	policy := Policy{
		Sleeper: func(time.Duration) { t.Fatal("permanent errors must not sleep") },
	}

	calls := 0
	err := policy.Do(context.Background(), "fetch", func() error {
		calls++
		return errNotFound
	})
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
	if err != errNotFound {
		t.Errorf("error should be returned unchanged, got %v", err)
	}
}

func TestDoReturnsFinalErrorUnchanged(t *testing.T) {
	errServer := services.Wrap(services.ErrTransient, "api", "update", "status 500", nil)
	policy := Policy{
		MaxAttempts: 3,
		Sleeper:     func(time.Duration) {},
	}

	calls := 0
	err := policy.Do(context.Background(), "update", func() error {
		calls++
		return errServer
	})
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
	if err != errServer {
		t.Errorf("exhausted retries should return the original error, got %v", err)
	}
}

func TestDoCapsBackoffDelay(t *testing.T) {
	errServer := services.Wrap(services.ErrTransient, "api", "update", "status 502", nil)
	var slept []time.Duration
	policy := Policy{
		MaxAttempts: 4,
		BaseDelay:   40 * time.Second,
		MaxDelay:    60 * time.Second,
		Sleeper:     func(d time.Duration) { slept = append(slept, d) },
	}

	_ = policy.Do(context.Background(), "update", func() error { return errServer })

	want := []time.Duration{40 * time.Second, 60 * time.Second, 60 * time.Second}
	if len(slept) != len(want) {
		t.Fatalf("sleeps: got %v, want %v", slept, want)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Errorf("sleep[%d]: got %v, want %v", i, slept[i], want[i])
		}
	}
}

func TestDoRetriesUnclassifiedErrors(t *testing.T) {
	// Raw connectivity errors carry no taxonomy marker; they must retry.
	errConn := errors.New("dial tcp: connection refused")
	policy := Policy{
		MaxAttempts: 2,
		Sleeper:     func(time.Duration) {},
	}

	calls := 0
	err := policy.Do(context.Background(), "fetch", func() error {
		calls++
		return errConn
	})
	if calls != 2 {
		t.Errorf("calls: got %d, want 2", calls)
	}
	if err != errConn {
		t.Errorf("error should be returned unchanged, got %v", err)
	}
}

func TestDoStopsWhenContextCanceledDuringSleep(t *testing.T) {
	errServer := services.Wrap(services.ErrTransient, "api", "update", "status 503", nil)
	ctx, cancel := context.WithCancel(context.Background())
	policy := Policy{
		MaxAttempts: 3,
		Sleeper:     func(time.Duration) { cancel() },
	}

	calls := 0
	err := policy.Do(ctx, "update", func() error {
		calls++
		return errServer
	})
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestWaitPolicyLinearWaits(t *testing.T) {
	errLag := services.Wrap(services.ErrUnavailable, "transcript", "fetch", "no transcript yet", nil)
	var slept []time.Duration
	policy := WaitPolicy{
		Attempts: 3,
		WaitStep: time.Minute,
		Sleeper:  func(d time.Duration) { slept = append(slept, d) },
	}

	calls := 0
	err := policy.Do(context.Background(), "fetch transcript", func() error {
		calls++
		if calls < 3 {
			return errLag
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	want := []time.Duration{time.Minute, 2 * time.Minute}
	if len(slept) != len(want) {
		t.Fatalf("sleeps: got %v, want %v", slept, want)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Errorf("sleep[%d]: got %v, want %v", i, slept[i], want[i])
		}
	}
}

func TestWaitPolicyExhaustsAttempts(t *testing.T) {
	errLag := services.Wrap(services.ErrUnavailable, "transcript", "fetch", "no transcript yet", nil)
	policy := WaitPolicy{
		Attempts: 3,
		WaitStep: time.Minute,
		Sleeper:  func(time.Duration) {},
	}

	calls := 0
	err := policy.Do(context.Background(), "fetch transcript", func() error {
		calls++
		return errLag
	})
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
	if err != errLag {
		t.Errorf("exhausted waits should return the original error, got %v", err)
	}
}

func TestWaitPolicyIgnoresOtherErrors(t *testing.T) {
	errBroken := services.Wrap(services.ErrExternalAPI, "transcript", "fetch", "status 403", nil)
	policy := WaitPolicy{
		Attempts: 3,
		Sleeper:  func(time.Duration) { t.Fatal("non-lag errors must not wait") },
	}

	calls := 0
	err := policy.Do(context.Background(), "fetch transcript", func() error {
		calls++
		return errBroken
	})
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
	if err != errBroken {
		t.Errorf("error should be returned unchanged, got %v", err)
	}
}
