// Package queue implements the bounded FIFO event queue (C1).
package queue

import (
	"log/slog"

	"github.com/metarouter/go-sdk/internal/actor"
	"github.com/metarouter/go-sdk/internal/model"
)

// OverflowPolicy controls what happens when Enqueue or RequeueToFront would
// exceed capacity. Drop-oldest is the spec default (§4.1).
type OverflowPolicy int

const (
	DropOldest OverflowPolicy = iota
	DropNewest
)

// Queue is a bounded FIFO of enriched events (C1). All operations are
// serialized through a single actor so concurrent producers may call
// Enqueue while a consumer drains (§4.1 "concurrent producers may call
// enqueue while a single consumer is draining").
type Queue struct {
	act      *actor.Actor
	capacity int
	policy   OverflowPolicy
	logger   *slog.Logger

	items []model.EnrichedEvent
}

// New constructs a Queue with the given capacity (clamped to ≥ 1) and
// overflow policy.
func New(capacity int, policy OverflowPolicy, logger *slog.Logger) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		act:      actor.New(64),
		capacity: capacity,
		policy:   policy,
		logger:   logger,
		items:    make([]model.EnrichedEvent, 0, capacity),
	}
}

// Enqueue appends e at the tail, applying overflow policy if full. It is
// total: it never fails (§4.1).
func (q *Queue) Enqueue(e model.EnrichedEvent) {
	q.act.Submit(func() {
		if len(q.items) >= q.capacity {
			q.overflow(1)
		}
		if len(q.items) < q.capacity {
			q.items = append(q.items, e)
		}
	})
}

// overflow must be called with room needed for `incoming` new elements;
// it must run inside the actor.
func (q *Queue) overflow(incoming int) {
	switch q.policy {
	case DropNewest:
		// Refuse the incoming element(s); caller checks len before
		// appending so nothing further is needed here, but we still log.
		q.logger.Warn("queue overflow: dropping newest", "capacity", q.capacity)
	default: // DropOldest
		drop := len(q.items) + incoming - q.capacity
		if drop > len(q.items) {
			drop = len(q.items)
		}
		if drop > 0 {
			q.items = q.items[drop:]
			q.logger.Warn("queue overflow: dropping oldest", "dropped", drop, "capacity", q.capacity)
		}
	}
}

// Drain removes up to max elements from the head, in order, and returns
// them. Length shrinks by the returned count.
func (q *Queue) Drain(max int) model.Batch {
	var out model.Batch
	q.act.Submit(func() {
		if max > len(q.items) {
			max = len(q.items)
		}
		if max <= 0 {
			return
		}
		out = make(model.Batch, max)
		copy(out, q.items[:max])
		q.items = q.items[max:]
	})
	return out
}

// RequeueToFront inserts batch at the head, preserving its internal order.
// If this overflows capacity, the just-requeued items are kept in
// preference to the pre-existing items: under drop-oldest the existing
// items' oldest (their own head) are dropped to make room; under
// drop-newest the existing items' newest (their own tail) are dropped
// (§4.1 "the just-requeued items must be the ones kept"). If batch alone
// exceeds capacity, batch's own tail is kept.
func (q *Queue) RequeueToFront(batch model.Batch) {
	if len(batch) == 0 {
		return
	}
	q.act.Submit(func() {
		if len(batch) >= q.capacity {
			q.items = append([]model.EnrichedEvent{}, batch[len(batch)-q.capacity:]...)
			q.logger.Warn("requeue overflow: batch alone exceeds capacity", "capacity", q.capacity)
			return
		}

		room := q.capacity - len(batch)
		existing := q.items
		if len(existing) > room {
			dropped := len(existing) - room
			switch q.policy {
			case DropNewest:
				existing = existing[:room]
			default: // DropOldest
				existing = existing[dropped:]
			}
			q.logger.Warn("queue overflow on requeue", "dropped", dropped, "policy", q.policy)
		}

		merged := make([]model.EnrichedEvent, 0, len(batch)+len(existing))
		merged = append(merged, batch...)
		merged = append(merged, existing...)
		q.items = merged
	})
}

// DropFront discards up to n head elements without returning them.
func (q *Queue) DropFront(n int) {
	q.act.Submit(func() {
		if n > len(q.items) {
			n = len(q.items)
		}
		if n > 0 {
			q.items = q.items[n:]
		}
	})
}

// Clear empties the queue.
func (q *Queue) Clear() {
	q.act.Submit(func() {
		q.items = q.items[:0]
	})
}

// Len returns the current length.
func (q *Queue) Len() int {
	var n int
	q.act.Submit(func() { n = len(q.items) })
	return n
}

// Stop terminates the queue's actor goroutine.
func (q *Queue) Stop() { q.act.Stop() }
