// Package dispatch implements the Dispatcher (C7): owns the queue and the
// breaker, runs the batch loop, and applies the HTTP-status-driven retry
// policy (§4.6, §4.7).
package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/metarouter/go-sdk/internal/breaker"
	"github.com/metarouter/go-sdk/internal/httptransport"
	"github.com/metarouter/go-sdk/internal/model"
	"github.com/metarouter/go-sdk/internal/queue"
	"github.com/metarouter/go-sdk/platform"
)

// Config holds the Dispatcher's own defaults (§4.6); none of these are
// user-facing InitOptions fields.
type Config struct {
	EndpointPath        string
	Timeout             time.Duration
	AutoFlushThreshold  int
	InitialMaxBatchSize int
}

// DefaultConfig returns spec.md's Dispatcher defaults.
func DefaultConfig() Config {
	return Config{
		EndpointPath:        "/v1/batch",
		Timeout:             8 * time.Second,
		AutoFlushThreshold:  20,
		InitialMaxBatchSize: 100,
	}
}

// DebugInfo is the external observability snapshot (§4.6).
type DebugInfo struct {
	QueueLength          int
	FlushInFlight        bool
	BreakerState         breaker.State
	RemainingCooldownMs  int32
	MaxBatchSize         int
}

// Dispatcher is the batch-loop owner.
type Dispatcher struct {
	queue     *queue.Queue
	breaker   *breaker.Breaker
	transport platform.HTTPTransport
	url       string
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time

	maxBatchSize atomic.Int64

	flushInFlight atomic.Bool

	// resetEpoch is incremented by ClearAll. A batch drained under one
	// epoch must never be requeued once the epoch has moved on — that
	// would resurrect pre-reset events under a freshly regenerated
	// identity (§3, §4.7 reset-during-flight edge case).
	resetEpoch atomic.Int64

	mu          sync.Mutex
	retryTimer  *time.Timer
	flushTimer  *time.Timer
	flushPeriod time.Duration

	fatalOnce    sync.Once
	fatalHandler func(status int)
}

// New constructs a Dispatcher. ingestionHost must already be validated
// (non-empty scheme, no trailing slash) by the caller.
func New(transport platform.HTTPTransport, ingestionHost string, cfg Config, q *queue.Queue, br *breaker.Breaker, logger *slog.Logger) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.AutoFlushThreshold <= 0 {
		cfg.AutoFlushThreshold = 20
	}
	if cfg.InitialMaxBatchSize <= 0 {
		cfg.InitialMaxBatchSize = 100
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/batch"
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		queue:     q,
		breaker:   br,
		transport: transport,
		url:       strings.TrimSuffix(ingestionHost, "/") + cfg.EndpointPath,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
	d.maxBatchSize.Store(int64(cfg.InitialMaxBatchSize))
	return d
}

// SetFatalConfigHandler registers a callback invoked once on the first
// 401/403/404 response (§4.6).
func (d *Dispatcher) SetFatalConfigHandler(handler func(status int)) {
	d.mu.Lock()
	d.fatalHandler = handler
	d.mu.Unlock()
}

// Offer enqueues e and triggers a flush once the queue crosses the
// auto-flush threshold (§4.7).
func (d *Dispatcher) Offer(e model.EnrichedEvent) {
	d.queue.Enqueue(e)
	if d.queue.Len() >= d.cfg.AutoFlushThreshold {
		d.Flush()
	}
}

// Flush is guarded by flushInFlight; a re-entrant call returns immediately
// (§4.7).
func (d *Dispatcher) Flush() {
	if !d.flushInFlight.CompareAndSwap(false, true) {
		return
	}
	go d.processUntilEmpty()
}

// processUntilEmpty is the batch loop (§4.7). It always runs with
// flushInFlight held true, and is responsible for releasing it on every
// exit path except the immediate-retry (413) continuation.
func (d *Dispatcher) processUntilEmpty() {
	for d.queue.Len() > 0 {
		waitMs := d.breaker.BeforeRequest()
		if waitMs > 0 {
			d.scheduleRetryAfter(time.Duration(waitMs) * time.Millisecond)
			d.flushInFlight.Store(false)
			return
		}

		epoch := d.resetEpoch.Load()
		batch := d.queue.Drain(int(d.maxBatchSize.Load()))
		if len(batch) == 0 {
			break
		}

		sentAt := d.now().UTC().Format(isoMillisLayout)
		for i := range batch {
			batch[i].SentAt = sentAt
		}

		body, err := json.Marshal(model.WireBatch{Batch: model.Batch(batch)})
		if err != nil {
			d.logger.Error("dispatch: serialization failed, dropping batch", "error", err, "batchSize", len(batch))
			continue
		}

		resp, err := d.transport.PostJSON(context.Background(), d.url, body, d.cfg.Timeout)

		if d.resetEpoch.Load() != epoch {
			// A reset raced with this in-flight call: the batch was drained
			// from a queue that no longer exists under the current
			// identity. Drop it rather than requeuing (§3, §4.7).
			d.logger.Warn("dispatch: dropping in-flight batch, reset occurred mid-flight", "batchSize", len(batch))
			d.flushInFlight.Store(false)
			return
		}

		if err != nil {
			d.breaker.OnFailure()
			d.queue.RequeueToFront(batch)
			wait := d.breaker.BeforeRequest()
			if wait < 100 {
				wait = 100
			}
			d.scheduleRetryAfter(time.Duration(wait) * time.Millisecond)
			d.flushInFlight.Store(false)
			return
		}

		if stop := d.handleResponse(resp, batch); stop {
			d.flushInFlight.Store(false)
			return
		}
	}
	d.flushInFlight.Store(false)
}

// handleResponse applies the §4.7 status policy table. It returns true if
// the batch loop should stop (flushInFlight has not yet been released by
// the caller).
func (d *Dispatcher) handleResponse(resp *platform.Response, batch model.Batch) (stop bool) {
	status := resp.Status
	switch {
	case status >= 200 && status < 300:
		d.breaker.OnSuccess()
		return false

	case status == 408 || (status >= 500 && status < 600):
		d.breaker.OnFailure()
		d.queue.RequeueToFront(batch)
		wait := retryAfterOrBreaker(resp, d.breaker)
		if wait < 100 {
			wait = 100
		}
		d.scheduleRetryAfter(time.Duration(wait) * time.Millisecond)
		return true

	case status == 429:
		d.breaker.OnFailure()
		d.queue.RequeueToFront(batch)
		retryAfter, _ := httptransport.ParseRetryAfter(resp.Headers)
		breakerWait := d.breaker.BeforeRequest()
		wait := retryAfter
		if breakerWait > wait {
			wait = breakerWait
		}
		if wait < 1000 {
			wait = 1000
		}
		d.scheduleRetryAfter(time.Duration(wait) * time.Millisecond)
		return true

	case status == 413:
		d.breaker.OnNonRetryable()
		current := d.maxBatchSize.Load()
		if current > 1 {
			next := current / 2
			if next < 1 {
				next = 1
			}
			d.maxBatchSize.Store(next)
			d.queue.RequeueToFront(batch)
			// Immediate retry: continue the loop without releasing
			// flushInFlight or touching the retry timer (§9: this
			// bypasses the breaker wait by design, preserved as-is).
			return false
		}
		ids := make([]string, len(batch))
		for i, ev := range batch {
			ids[i] = string(ev.MessageID)
		}
		d.logger.Warn("dispatch: dropping oversize singleton after 413", "messageIds", ids)
		return false

	case status == 401 || status == 403 || status == 404:
		d.queue.Clear()
		d.fatalOnce.Do(func() {
			d.mu.Lock()
			handler := d.fatalHandler
			d.mu.Unlock()
			d.logger.Error("dispatch: fatal config response, disabling", "status", status)
			if handler != nil {
				handler(status)
			}
		})
		return true

	default:
		d.breaker.OnNonRetryable()
		return false
	}
}

func retryAfterOrBreaker(resp *platform.Response, br *breaker.Breaker) int32 {
	if ra, ok := httptransport.ParseRetryAfter(resp.Headers); ok {
		return ra
	}
	return br.BeforeRequest()
}

// scheduleRetryAfter cancels any prior scheduled retry and starts a
// one-shot timer that calls Flush (which re-acquires flushInFlight and
// re-enters processUntilEmpty) when it fires.
func (d *Dispatcher) scheduleRetryAfter(delay time.Duration) {
	d.mu.Lock()
	if d.retryTimer != nil {
		d.retryTimer.Stop()
	}
	d.retryTimer = time.AfterFunc(delay, d.Flush)
	d.mu.Unlock()
}

// CancelScheduledRetry cancels a pending backoff-scheduled retry, if any
// (§4.6).
func (d *Dispatcher) CancelScheduledRetry() {
	d.mu.Lock()
	if d.retryTimer != nil {
		d.retryTimer.Stop()
		d.retryTimer = nil
	}
	d.mu.Unlock()
}

// StartFlushLoop cancels any prior timer and schedules periodic Flush
// calls every interval (clamped to ≥ 1s) (§4.6).
func (d *Dispatcher) StartFlushLoop(interval time.Duration) {
	if interval < time.Second {
		interval = time.Second
	}
	d.mu.Lock()
	if d.flushTimer != nil {
		d.flushTimer.Stop()
	}
	d.flushPeriod = interval
	d.mu.Unlock()
	d.scheduleNextPeriodicFlush()
}

func (d *Dispatcher) scheduleNextPeriodicFlush() {
	d.mu.Lock()
	period := d.flushPeriod
	if period <= 0 {
		d.mu.Unlock()
		return
	}
	d.flushTimer = time.AfterFunc(period, func() {
		d.Flush()
		d.scheduleNextPeriodicFlush()
	})
	d.mu.Unlock()
}

// StopFlushLoop cancels the periodic timer (§4.6).
func (d *Dispatcher) StopFlushLoop() {
	d.mu.Lock()
	d.flushPeriod = 0
	if d.flushTimer != nil {
		d.flushTimer.Stop()
		d.flushTimer = nil
	}
	d.mu.Unlock()
}

// ClearAll empties the queue and advances the reset epoch (§4.6). Used by
// reset; any batch already drained for an in-flight HTTP call carries the
// prior epoch, so processUntilEmpty drops it instead of requeuing once the
// call completes (§4.7 edge cases).
func (d *Dispatcher) ClearAll() {
	d.queue.Clear()
	d.resetEpoch.Add(1)
}

// DebugInfo returns the external observability snapshot (§4.6).
func (d *Dispatcher) DebugInfo() DebugInfo {
	return DebugInfo{
		QueueLength:         d.queue.Len(),
		FlushInFlight:       d.flushInFlight.Load(),
		BreakerState:        d.breaker.State(),
		RemainingCooldownMs: d.breaker.RemainingCooldownMs(),
		MaxBatchSize:        int(d.maxBatchSize.Load()),
	}
}

const isoMillisLayout = "2006-01-02T15:04:05.000Z"
