package breaker

import (
	"testing"
	"time"
)

// P4/P5 + scenario 5: two consecutive failures trip Open; after cooldown
// exactly one HalfOpen probe is allowed, and success returns to Closed.
func TestTripsOpenThenProbes(t *testing.T) {
	b := New(Config{
		FailureThreshold:      2,
		BaseCooldown:          50 * time.Millisecond,
		MaxCooldown:           time.Second,
		JitterRatio:           0,
		HalfOpenMaxConcurrent: 1,
	})

	if b.State() != Closed {
		t.Fatalf("expected initial Closed, got %s", b.State())
	}

	b.OnFailure()
	if b.State() != Closed {
		t.Fatalf("expected still Closed after 1 failure, got %s", b.State())
	}
	b.OnFailure()
	if b.State() != Open {
		t.Fatalf("expected Open after threshold failures, got %s", b.State())
	}
	if wait := b.BeforeRequest(); wait <= 0 {
		t.Fatalf("expected positive wait while Open, got %d", wait)
	}

	time.Sleep(60 * time.Millisecond)

	if wait := b.BeforeRequest(); wait != 0 {
		t.Fatalf("expected HalfOpen probe allowed after cooldown, got wait=%d", wait)
	}
	if b.State() != HalfOpen {
		t.Fatalf("expected HalfOpen, got %s", b.State())
	}
	// A second concurrent probe attempt must be refused with the fixed
	// advisory delay (§9 quirk).
	if wait := b.BeforeRequest(); wait != halfOpenAdvisoryMs {
		t.Fatalf("expected advisory %dms when saturated, got %d", halfOpenAdvisoryMs, wait)
	}

	b.OnSuccess()
	if b.State() != Closed {
		t.Fatalf("expected Closed after success, got %s", b.State())
	}
}

func TestHalfOpenFailureRetripsWithDoubledCooldown(t *testing.T) {
	b := New(Config{
		FailureThreshold:      1,
		BaseCooldown:          20 * time.Millisecond,
		MaxCooldown:           time.Second,
		JitterRatio:           0,
		HalfOpenMaxConcurrent: 1,
	})

	b.OnFailure() // trips Open, openCount=1, cooldown=20ms
	time.Sleep(25 * time.Millisecond)
	if wait := b.BeforeRequest(); wait != 0 {
		t.Fatalf("expected probe allowed, got wait=%d", wait)
	}

	b.OnFailure() // half-open probe fails -> retrip, openCount=2, cooldown=40ms
	if b.State() != Open {
		t.Fatalf("expected Open after half-open failure, got %s", b.State())
	}
	remaining := b.RemainingCooldownMs()
	if remaining < 30 {
		t.Fatalf("expected doubled cooldown (~40ms), got remaining=%d", remaining)
	}
}

func TestOnNonRetryableDoesNotTripOrStrengthen(t *testing.T) {
	b := New(Config{FailureThreshold: 2, BaseCooldown: time.Second, MaxCooldown: time.Second})

	b.OnFailure()
	b.OnNonRetryable()
	if b.State() != Closed {
		t.Fatalf("expected Closed, got %s", b.State())
	}
	// consecutiveFailures should have been reset; two more failures must
	// be required to trip, not one.
	b.OnFailure()
	if b.State() != Closed {
		t.Fatalf("expected still Closed after only 1 failure post-reset, got %s", b.State())
	}
	b.OnFailure()
	if b.State() != Open {
		t.Fatalf("expected Open after reaching threshold again, got %s", b.State())
	}
}

func TestSuccessFromAnyStateReturnsClosed(t *testing.T) {
	b := New(Config{FailureThreshold: 1, BaseCooldown: time.Millisecond, MaxCooldown: time.Second})
	b.OnFailure()
	if b.State() != Open {
		t.Fatalf("expected Open, got %s", b.State())
	}
	b.OnSuccess()
	if b.State() != Closed {
		t.Fatalf("expected Closed, got %s", b.State())
	}
}
