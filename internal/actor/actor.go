// Package actor provides a minimal single-goroutine task executor used to
// give the queue, the identity store and the proxy each its own serialized
// mailbox, so state mutation
// never needs an exposed mutex at the call site.
package actor

import "sync"

// Actor runs submitted closures one at a time, in submission order, on a
// single background goroutine. Any number of callers may submit
// concurrently; the Actor funnels them into a single logical thread.
type Actor struct {
	mailbox  chan func()
	doneCh   chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New starts an Actor with the given mailbox capacity. A larger capacity
// lets bursty callers submit without blocking; the actor itself drains in
// submission order regardless of capacity.
func New(mailboxSize int) *Actor {
	a := &Actor{
		mailbox: make(chan func(), mailboxSize),
		doneCh:  make(chan struct{}),
		stopCh:  make(chan struct{}),
	}
	go a.loop()
	return a
}

// Submit enqueues fn for execution on the actor goroutine and blocks the
// caller until fn has returned, giving callers request/response semantics
// while state mutation itself stays single-threaded.
func (a *Actor) Submit(fn func()) {
	done := make(chan struct{})
	task := func() {
		defer close(done)
		fn()
	}
	select {
	case a.mailbox <- task:
	case <-a.stopCh:
		return
	}
	select {
	case <-done:
	case <-a.stopCh:
	}
}

func (a *Actor) loop() {
	defer close(a.doneCh)
	for {
		select {
		case <-a.stopCh:
			return
		case task := <-a.mailbox:
			task()

			// [STRATEGY: BATCH_DRAINING] once woken, drain what's already
			// queued before returning to select, trading a little latency
			// fairness for fewer wakeups under burst load.
			for range 64 {
				select {
				case next := <-a.mailbox:
					next()
				default:
					goto wait
				}
			}
		wait:
		}
	}
}

// Stop terminates the actor goroutine. Pending submissions that have not
// yet been picked up are abandoned; Stop does not wait for the mailbox to
// drain.
func (a *Actor) Stop() {
	a.stopOnce.Do(func() { close(a.stopCh) })
	<-a.doneCh
}
