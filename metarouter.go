// Package metarouter is a client-side analytics ingestion library:
// application code emits semantic events and the library enriches,
// buffers, batches, and delivers them over HTTP to a remote collector
// endpoint with ordering, bounded memory, backoff, and at-most-once-per-
// batch semantics under partial failure.
package metarouter

import (
	"sync/atomic"

	"github.com/metarouter/go-sdk/internal/model"
	"github.com/metarouter/go-sdk/internal/proxy"
)

// Version is the library's own semantic version, echoed in the default
// context's library block.
const Version = "0.1.0"

// Value aliases let callers build properties/traits without importing an
// internal package.
type (
	Value       = model.Value
	StringValue = model.StringValue
	IntValue    = model.IntValue
	FloatValue  = model.FloatValue
	BoolValue   = model.BoolValue
	NullValue   = model.NullValue
	ArrayValue  = model.ArrayValue
	ObjectValue = model.ObjectValue
	Fields      = model.Fields
)

// DebugInfo is the external observability snapshot returned by
// GetDebugInfo (§4.6).
type DebugInfo struct {
	QueueLength         int
	FlushInFlight       bool
	BreakerState        string
	RemainingCooldownMs int32
	MaxBatchSize        int
	LifecycleState      string
}

// Analytics is the public façade (Proxy, C9): it buffers calls made before
// the pipeline reaches Ready, then replays and forwards them in order
// (§4.9).
type Analytics struct {
	px       *proxy.Proxy
	pipeline atomic.Pointer[pipeline]
}

// New validates opts and returns an Analytics immediately; pipeline
// construction and initialization run in the background and the Proxy
// buffers any calls made in the meantime (§4.9, §9).
func New(opts Options) (*Analytics, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts = opts.normalized()

	a := &Analytics{px: proxy.New()}

	go func() {
		p := newPipeline(opts)
		if err := p.start(opts.AppLifecycle); err != nil {
			opts.Logger.Error("metarouter: pipeline initialization failed", "error", err)
			return
		}
		a.pipeline.Store(p)
		a.px.Bind(p)
	}()

	return a, nil
}

// Track records a named event with optional properties.
func (a *Analytics) Track(event string, properties Fields) {
	a.px.Enqueue(model.Track{Event: event, Properties: properties})
}

// Identify associates the current anonymous identity with userId.
func (a *Analytics) Identify(userID string, traits Fields) {
	a.px.Enqueue(model.Identify{UserID: userID, Traits: traits})
}

// Group associates the current identity with groupId.
func (a *Analytics) Group(groupID string, traits Fields) {
	a.px.Enqueue(model.Group{GroupID: groupID, Traits: traits})
}

// Screen records a screen view.
func (a *Analytics) Screen(name string, properties Fields) {
	a.px.Enqueue(model.Screen{Name: name, Properties: properties})
}

// Page records a page view.
func (a *Analytics) Page(name string, properties Fields) {
	a.px.Enqueue(model.Page{Name: name, Properties: properties})
}

// Alias reassigns the current userId to newUserID.
func (a *Analytics) Alias(newUserID string) {
	a.px.Enqueue(model.Alias{NewUserID: newUserID})
}

// Flush requests an immediate batch-loop pass.
func (a *Analytics) Flush() {
	a.px.Flush()
}

// Reset tears the pipeline down and returns it to Idle, regenerating
// anonymousId on the next initialize (§4.8). It is a no-op before the
// pipeline has finished initializing.
func (a *Analytics) Reset() {
	if p := a.pipeline.Load(); p != nil {
		p.reset()
		a.px.Unbind()
	}
}

// GetDebugInfo returns the current observability snapshot, or a zero value
// before initialization has completed.
func (a *Analytics) GetDebugInfo() DebugInfo {
	if p := a.pipeline.Load(); p != nil {
		return p.debugInfo()
	}
	return DebugInfo{}
}
