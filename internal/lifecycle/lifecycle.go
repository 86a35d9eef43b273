// Package lifecycle implements the LifecycleController (C8): the
// Idle→Initializing→Ready→Resetting/Disabled state machine, wiring the
// Dispatcher to platform foreground/background signals over an in-process
// control bus; the IdentityStore is cleared directly by Reset (§4.8).
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/metarouter/go-sdk/internal/dispatch"
	"github.com/metarouter/go-sdk/internal/identitystore"
	"github.com/metarouter/go-sdk/platform"
)

// State mirrors spec.md §3/§4.8.
type State int

const (
	Idle State = iota
	Initializing
	Ready
	Resetting
	Disabled
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Resetting:
		return "resetting"
	case Disabled:
		return "disabled"
	default:
		return "idle"
	}
}

const signalTopic = "metarouter.lifecycle.signal"

// Controller drives the state machine and fans platform lifecycle signals
// out to the Dispatcher over a gochannel pub/sub, the same
// "message.Router + NoPublishHandlerFunc" shape the teacher uses for its
// AMQP control plane, scaled down to an in-process transport since there
// is no network broker here (§5).
type Controller struct {
	dispatcher *dispatch.Dispatcher
	identity   *identitystore.Store
	logger     *slog.Logger

	flushInterval time.Duration

	mu    sync.Mutex
	state State

	pubsub *gochannel.GoChannel
	router *message.Router
	cancel context.CancelFunc
}

// New constructs a Controller in the Idle state.
func New(dispatcher *dispatch.Dispatcher, identity *identitystore.Store, flushIntervalSeconds int, logger *slog.Logger) *Controller {
	if flushIntervalSeconds < 1 {
		flushIntervalSeconds = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		dispatcher:    dispatcher,
		identity:      identity,
		logger:        logger,
		flushInterval: time.Duration(flushIntervalSeconds) * time.Second,
		state:         Idle,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Initialize transitions Idle→Initializing→Ready, starts the Dispatcher's
// flush loop, registers the fatal-config handler, and binds platform to
// foreground/background signals (§4.8).
func (c *Controller) Initialize(appLifecycle platform.AppLifecycle) error {
	c.mu.Lock()
	c.state = Initializing
	c.mu.Unlock()

	c.pubsub = gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(c.logger))
	router, err := message.NewRouter(message.RouterConfig{}, watermill.NewSlogLogger(c.logger))
	if err != nil {
		return fmt.Errorf("lifecycle: build router: %w", err)
	}
	c.router = router

	router.AddNoPublisherHandler("lifecycle-signal-handler", signalTopic, c.pubsub, c.handleSignal)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go func() {
		if err := router.Run(ctx); err != nil {
			c.logger.Error("lifecycle: router stopped with error", "error", err)
		}
	}()

	c.dispatcher.SetFatalConfigHandler(func(status int) {
		c.Disable(status)
	})

	c.mu.Lock()
	c.state = Ready
	c.mu.Unlock()

	c.dispatcher.StartFlushLoop(c.flushInterval)

	if appLifecycle != nil {
		appLifecycle.Subscribe(func(sig platform.Signal) {
			c.Notify(sig)
		})
	}

	return nil
}

// Notify publishes a platform lifecycle signal onto the control bus.
func (c *Controller) Notify(sig platform.Signal) {
	c.mu.Lock()
	ps := c.pubsub
	c.mu.Unlock()
	if ps == nil {
		return
	}
	payload := []byte{byte(sig)}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := ps.Publish(signalTopic, msg); err != nil {
		c.logger.Error("lifecycle: publish signal failed", "error", err)
	}
}

func (c *Controller) handleSignal(msg *message.Message) error {
	if len(msg.Payload) == 0 {
		return nil
	}
	switch platform.Signal(msg.Payload[0]) {
	case platform.Foreground:
		c.dispatcher.StartFlushLoop(c.flushInterval)
		c.dispatcher.Flush()
	case platform.Background:
		c.dispatcher.Flush()
		c.dispatcher.StopFlushLoop()
		c.dispatcher.CancelScheduledRetry()
	}
	return nil
}

// Disable enters Disabled; subsequent offers are expected to be dropped by
// the caller (the root package's pipeline checks State()) until Reset
// (§4.8, §7).
func (c *Controller) Disable(status int) {
	c.mu.Lock()
	if c.state == Disabled {
		c.mu.Unlock()
		return
	}
	c.state = Disabled
	c.mu.Unlock()
	c.logger.Error("lifecycle: entering disabled state", "status", status)
}

// Reset stops the flush loop, cancels scheduled retries, clears the queue
// and identity, and returns to Idle (§4.8).
func (c *Controller) Reset() {
	c.mu.Lock()
	c.state = Resetting
	cancel := c.cancel
	c.mu.Unlock()

	c.dispatcher.StopFlushLoop()
	c.dispatcher.CancelScheduledRetry()
	c.dispatcher.ClearAll()
	c.identity.Reset()

	if cancel != nil {
		cancel()
	}

	c.mu.Lock()
	c.state = Idle
	c.pubsub = nil
	c.router = nil
	c.cancel = nil
	c.mu.Unlock()
}

// ResetAndWait is the barrier variant of Reset: since Reset itself performs
// teardown synchronously before returning, it already satisfies the
// barrier contract; this alias exists for call-site clarity (§4.8).
func (c *Controller) ResetAndWait() { c.Reset() }
