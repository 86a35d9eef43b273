package lifecycle

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/metarouter/go-sdk/internal/breaker"
	"github.com/metarouter/go-sdk/internal/dispatch"
	"github.com/metarouter/go-sdk/internal/identitystore"
	"github.com/metarouter/go-sdk/internal/model"
	"github.com/metarouter/go-sdk/internal/queue"
	"github.com/metarouter/go-sdk/platform"
)

type countingTransport struct {
	n atomic.Int64
}

func (c *countingTransport) PostJSON(ctx context.Context, url string, body []byte, timeout time.Duration) (*platform.Response, error) {
	c.n.Add(1)
	return &platform.Response{Status: 200}, nil
}

type fakeAppLifecycle struct {
	handler func(platform.Signal)
}

func (f *fakeAppLifecycle) Subscribe(handler func(platform.Signal)) { f.handler = handler }

func newTestController(t *testing.T) (*Controller, *countingTransport, *queue.Queue, *identitystore.Store) {
	t.Helper()
	q := queue.New(100, queue.DropOldest, nil)
	br := breaker.New(breaker.DefaultConfig())
	transport := &countingTransport{}
	d := dispatch.New(transport, "https://h", dispatch.DefaultConfig(), q, br, nil)
	identity := identitystore.New(identitystore.NewMemoryKV())
	c := New(d, identity, 1, nil)
	return c, transport, q, identity
}

func TestInitializeTransitionsToReady(t *testing.T) {
	c, _, _, identity := newTestController(t)
	defer identity.Stop()

	if c.State() != Idle {
		t.Fatalf("expected Idle before Initialize, got %s", c.State())
	}
	if err := c.Initialize(nil); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer c.Reset()

	if c.State() != Ready {
		t.Fatalf("expected Ready after Initialize, got %s", c.State())
	}
}

func TestBackgroundSignalFlushesAndStopsLoop(t *testing.T) {
	c, transport, q, identity := newTestController(t)
	defer identity.Stop()
	if err := c.Initialize(nil); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer c.Reset()

	q.Enqueue(model.EnrichedEvent{MessageID: model.NewMessageID(1)})
	c.Notify(platform.Background)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && transport.n.Load() == 0 {
		time.Sleep(2 * time.Millisecond)
	}
	if transport.n.Load() == 0 {
		t.Fatal("expected background signal to trigger a flush")
	}
}

func TestForegroundAfterBackgroundDoesNotDeadlock(t *testing.T) {
	c, _, _, identity := newTestController(t)
	defer identity.Stop()
	if err := c.Initialize(nil); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer c.Reset()

	c.Notify(platform.Background)
	time.Sleep(20 * time.Millisecond)
	c.Notify(platform.Foreground)
	time.Sleep(20 * time.Millisecond)
	// No assertion beyond "does not panic/deadlock"; whether the periodic
	// flush loop runs again after Foreground is not checked here.
}

func TestResetReturnsToIdleAndClearsIdentity(t *testing.T) {
	c, _, _, identity := newTestController(t)
	defer identity.Stop()
	if err := c.Initialize(nil); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	before := identity.Snapshot().AnonymousID

	c.Reset()
	if c.State() != Idle {
		t.Fatalf("expected Idle after Reset, got %s", c.State())
	}
	if after := identity.Snapshot().AnonymousID; after != "" {
		t.Errorf("expected identity cleared after Reset, got %q", after)
	}
	_ = before
}

func TestDisableIsIdempotentAndSticky(t *testing.T) {
	c, _, _, identity := newTestController(t)
	defer identity.Stop()
	if err := c.Initialize(nil); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer c.Reset()

	c.Disable(401)
	if c.State() != Disabled {
		t.Fatalf("expected Disabled, got %s", c.State())
	}
	c.Disable(403) // second call should be a no-op, not panic
	if c.State() != Disabled {
		t.Fatalf("expected still Disabled, got %s", c.State())
	}
}

func TestAppLifecycleSubscriptionForwardsSignals(t *testing.T) {
	c, transport, q, identity := newTestController(t)
	defer identity.Stop()
	app := &fakeAppLifecycle{}
	if err := c.Initialize(app); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer c.Reset()

	if app.handler == nil {
		t.Fatal("expected AppLifecycle.Subscribe to be called")
	}
	q.Enqueue(model.EnrichedEvent{MessageID: model.NewMessageID(1)})
	app.handler(platform.Background)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && transport.n.Load() == 0 {
		time.Sleep(2 * time.Millisecond)
	}
	if transport.n.Load() == 0 {
		t.Fatal("expected forwarded background signal to trigger a flush")
	}
}
