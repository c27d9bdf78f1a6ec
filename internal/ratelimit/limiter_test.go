package ratelimit

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func TestWaitAdmitsCallsUnderLimit(t *testing.T) {
	clock := newFakeClock()
	var slept []time.Duration
	limiter := New("text", 2, time.Minute, nil,
		WithClock(clock.Now),
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }))

	for i := 0; i < 2; i++ {
		if err := limiter.Wait(context.Background()); err != nil {
			t.Fatalf("Wait %d failed: %v", i, err)
		}
	}
	if len(slept) != 0 {
		t.Errorf("calls under the limit should not sleep, got %v", slept)
	}
}

func TestWaitBlocksWhenWindowFull(t *testing.T) {
	clock := newFakeClock()
	var slept []time.Duration
	limiter := New("text", 2, time.Minute, nil,
		WithClock(clock.Now),
		WithSleeper(func(d time.Duration) {
			slept = append(slept, d)
			clock.advance(d)
		}))

	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	clock.advance(20 * time.Second)
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	// Window is full; oldest call is 20s old, so the third waits 40s.
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if len(slept) != 1 {
		t.Fatalf("third call should sleep once, got %v", slept)
	}
	if slept[0] != 40*time.Second {
		t.Errorf("wait: got %v, want %v", slept[0], 40*time.Second)
	}
}

func TestWaitResetsWindowAfterSleep(t *testing.T) {
	clock := newFakeClock()
	var slept []time.Duration
	limiter := New("text", 2, time.Minute, nil,
		WithClock(clock.Now),
		WithSleeper(func(d time.Duration) {
			slept = append(slept, d)
			clock.advance(d)
		}))

	for i := 0; i < 3; i++ {
		if err := limiter.Wait(context.Background()); err != nil {
			t.Fatalf("Wait %d failed: %v", i, err)
		}
	}
	if len(slept) != 1 {
		t.Fatalf("expected exactly one sleep so far, got %v", slept)
	}

	// The window was cleared after the sleep, so the next call goes straight
	// through even though a sliding window would still be full.
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if len(slept) != 1 {
		t.Errorf("call after reset should not sleep, got %v", slept)
	}
}

func TestWaitAdmitsAfterWindowElapses(t *testing.T) {
	clock := newFakeClock()
	var slept []time.Duration
	limiter := New("image", 2, time.Minute, nil,
		WithClock(clock.Now),
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }))

	for i := 0; i < 2; i++ {
		if err := limiter.Wait(context.Background()); err != nil {
			t.Fatalf("Wait %d failed: %v", i, err)
		}
	}

	clock.advance(time.Minute + time.Second)
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if len(slept) != 0 {
		t.Errorf("stale window entries should be discarded without sleeping, got %v", slept)
	}
}

func TestWaitHonorsContextDuringSleep(t *testing.T) {
	clock := newFakeClock()
	ctx, cancel := context.WithCancel(context.Background())
	limiter := New("text", 1, time.Minute, nil,
		WithClock(clock.Now),
		WithSleeper(func(time.Duration) { cancel() }))

	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("first Wait failed: %v", err)
	}
	if err := limiter.Wait(ctx); err == nil {
		t.Fatal("Wait should surface context cancellation during the sleep")
	}
}

func TestWaitUnlimitedWhenDisabled(t *testing.T) {
	limiter := New("off", 0, time.Minute, nil,
		WithSleeper(func(time.Duration) { t.Fatal("disabled limiter should never sleep") }))

	for i := 0; i < 50; i++ {
		if err := limiter.Wait(context.Background()); err != nil {
			t.Fatalf("Wait %d failed: %v", i, err)
		}
	}
}
