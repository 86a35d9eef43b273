// Package breaker implements the circuit breaker (C2): failure counting
// with open/half-open/closed state and exponential jittered cooldown,
// built on top of sony/gobreaker.
package breaker

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// Config is immutable after construction (§4.2).
type Config struct {
	FailureThreshold      int
	BaseCooldown          time.Duration
	MaxCooldown           time.Duration
	JitterRatio           float64
	HalfOpenMaxConcurrent int
}

// DefaultConfig returns spec.md's defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:      3,
		BaseCooldown:          10 * time.Second,
		MaxCooldown:           120 * time.Second,
		JitterRatio:           0.2,
		HalfOpenMaxConcurrent: 1,
	}
}

func (c Config) normalize() Config {
	if c.FailureThreshold < 1 {
		c.FailureThreshold = 1
	}
	if c.BaseCooldown < 0 {
		c.BaseCooldown = 0
	}
	if c.MaxCooldown < c.BaseCooldown {
		c.MaxCooldown = c.BaseCooldown
	}
	if c.JitterRatio < 0 {
		c.JitterRatio = 0
	}
	if c.HalfOpenMaxConcurrent < 1 {
		c.HalfOpenMaxConcurrent = 1
	}
	return c
}

// State mirrors spec.md's observable breaker states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// halfOpenAdvisoryMs is the constant advisory delay returned by
// BeforeRequest when HalfOpen is already saturated. It is not derived from
// the breaker's backoff curve; spec.md §9 calls this out explicitly as a
// preserved quirk rather than something to "fix".
const halfOpenAdvisoryMs = 200

// Breaker wraps a gobreaker.TwoStepCircuitBreaker for the Closed-state
// failure counting path (gobreaker's ReadyToTrip against consecutive
// failures) and layers the spec's exponential jittered cooldown and
// single-probe HalfOpen gating on top, since gobreaker's own Settings.Timeout
// is fixed at construction and cannot grow per trip. Each trip-open (and
// each OnNonRetryable / OnSuccess reset) rebuilds the inner breaker fresh so
// its consecutive-failure counter always starts again at zero.
type Breaker struct {
	cfg Config
	rng *rand.Rand

	mu               sync.Mutex
	inner            *gobreaker.TwoStepCircuitBreaker
	st               State
	openCount        int
	openUntil        time.Time
	halfOpenInFlight int
}

// New constructs a Breaker with cfg, clamped to valid ranges.
func New(cfg Config) *Breaker {
	cfg = cfg.normalize()
	b := &Breaker{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	b.inner = b.newInner()
	return b
}

func (b *Breaker) newInner() *gobreaker.TwoStepCircuitBreaker {
	return gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		MaxRequests: uint32(b.cfg.HalfOpenMaxConcurrent),
		Timeout:     b.cfg.BaseCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return int(counts.ConsecutiveFailures) >= b.cfg.FailureThreshold
		},
	})
}

// OnSuccess zeroes consecutiveFailures and, if not Closed, returns the
// breaker to Closed (§4.2).
func (b *Breaker) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inner = b.newInner()
	b.st = Closed
	b.openUntil = time.Time{}
	b.halfOpenInFlight = 0
}

// OnFailure increments consecutiveFailures; tripping Open per §4.2 when the
// Closed-state threshold is crossed, or immediately if HalfOpen.
func (b *Breaker) OnFailure() {
	b.mu.Lock()
	switch b.st {
	case HalfOpen:
		b.mu.Unlock()
		b.tripOpen()
		return
	case Open:
		// beforeRequest gates callers out of Open; a failure reported
		// here anyway is a no-op against our own state.
		b.mu.Unlock()
		return
	default: // Closed
		done, err := b.inner.Allow()
		tripped := false
		if err == nil {
			done(false)
			tripped = b.inner.State() == gobreaker.StateOpen
		} else {
			// gobreaker itself refused (e.g. already mid-trip); treat as
			// a trip signal so we don't silently swallow the failure.
			tripped = true
		}
		b.mu.Unlock()
		if tripped {
			b.tripOpen()
		}
	}
}

// OnNonRetryable resets consecutiveFailures to 0 without changing state
// (§4.2: a non-retryable 4xx must not strengthen a closed breaker or open
// it).
func (b *Breaker) OnNonRetryable() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.st == Closed {
		b.inner = b.newInner()
	}
}

func (b *Breaker) tripOpen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.openCount++
	delay := b.cooldownFor(b.openCount)
	b.openUntil = time.Now().Add(delay)
	b.st = Open
	b.halfOpenInFlight = 0
	b.inner = b.newInner()
}

func (b *Breaker) cooldownFor(openCount int) time.Duration {
	base := float64(b.cfg.BaseCooldown)
	delay := base * math.Pow(2, float64(openCount-1))
	if max := float64(b.cfg.MaxCooldown); delay > max {
		delay = max
	}
	if b.cfg.JitterRatio > 0 {
		spread := delay * b.cfg.JitterRatio
		delay += (b.rng.Float64()*2 - 1) * spread
		if delay < 0 {
			delay = 0
		}
	}
	return time.Duration(delay)
}

// State returns the current observable state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.st
}

// RemainingCooldownMs returns the remaining time until Open may transition
// to HalfOpen, in milliseconds, or 0 if not Open.
func (b *Breaker) RemainingCooldownMs() int32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.st != Open {
		return 0
	}
	remaining := time.Until(b.openUntil)
	if remaining < 0 {
		remaining = 0
	}
	return int32(remaining / time.Millisecond)
}

// BeforeRequest implements §4.2's state table and returns the number of
// milliseconds the caller should wait before attempting a request; 0 means
// proceed immediately.
func (b *Breaker) BeforeRequest() int32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.st {
	case Closed:
		return 0
	case Open:
		if time.Now().Before(b.openUntil) {
			return int32(time.Until(b.openUntil) / time.Millisecond)
		}
		// Cooldown elapsed: enter HalfOpen and let this call take the
		// first probe slot below.
		b.st = HalfOpen
		b.halfOpenInFlight = 0
		fallthrough
	default: // HalfOpen
		if b.halfOpenInFlight >= b.cfg.HalfOpenMaxConcurrent {
			return halfOpenAdvisoryMs
		}
		b.halfOpenInFlight++
		return 0
	}
}
