// Package proxy implements the Proxy (C9): the public-facing front end
// that buffers calls made before the pipeline is Ready and replays them in
// order once bound (§4.9).
package proxy

import (
	"github.com/metarouter/go-sdk/internal/actor"
	"github.com/metarouter/go-sdk/internal/model"
)

const bufferCapacity = 20

// Client is the minimal surface the Proxy forwards to once bound. It is
// satisfied by the root package's pipeline entry point.
type Client interface {
	Enqueue(call model.RawCall)
	Flush()
}

// flushMarker is a sentinel RawCall used internally to record a buffered
// flush() call alongside ordinary raw calls, so replay preserves the exact
// interleaving of calls and flushes (§8 scenario 6).
type flushMarker struct{}

func (flushMarker) isRawCall()    {}
func (flushMarker) Kind() string  { return "__flush__" }

// Proxy is the actor-serialized façade. All methods may be called from any
// number of goroutines concurrently; the internal actor totally orders
// them (§4.9 "any number of producers may call Proxy methods from any
// thread simultaneously").
type Proxy struct {
	act *actor.Actor

	bound  bool
	client Client
	buffer []model.RawCall
}

// New constructs an unbound Proxy.
func New() *Proxy {
	return &Proxy{act: actor.New(64)}
}

// Enqueue records or forwards call depending on bind state.
func (p *Proxy) Enqueue(call model.RawCall) {
	p.act.Submit(func() {
		if p.bound {
			p.client.Enqueue(call)
			return
		}
		p.buffer = append(p.buffer, call)
		if len(p.buffer) > bufferCapacity {
			p.buffer = p.buffer[len(p.buffer)-bufferCapacity:]
		}
	})
}

// Flush records or forwards a flush request.
func (p *Proxy) Flush() {
	p.act.Submit(func() {
		if p.bound {
			p.client.Flush()
			return
		}
		p.buffer = append(p.buffer, flushMarker{})
		if len(p.buffer) > bufferCapacity {
			p.buffer = p.buffer[len(p.buffer)-bufferCapacity:]
		}
	})
}

// Bind atomically flips to bound and forwards every buffered call, in
// order, to client, then clears the buffer (§4.9). Because Bind itself
// runs on the actor, any Enqueue/Flush submitted concurrently is ordered
// strictly before or after this one on the single logical thread — no
// inbound call that happens-after completion can be interleaved before a
// buffered call.
func (p *Proxy) Bind(client Client) {
	p.act.Submit(func() {
		p.bound = true
		p.client = client
		for _, call := range p.buffer {
			if _, ok := call.(flushMarker); ok {
				client.Flush()
				continue
			}
			client.Enqueue(call)
		}
		p.buffer = nil
	})
}

// Unbind flips to unbound and drops the (now empty) buffer.
func (p *Proxy) Unbind() {
	p.act.Submit(func() {
		p.bound = false
		p.client = nil
		p.buffer = nil
	})
}

// Stop terminates the proxy's actor goroutine.
func (p *Proxy) Stop() { p.act.Stop() }
