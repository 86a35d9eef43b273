package metarouter

import (
	"context"
	"log/slog"

	"github.com/metarouter/go-sdk/internal/breaker"
	"github.com/metarouter/go-sdk/internal/contextcache"
	"github.com/metarouter/go-sdk/internal/dispatch"
	"github.com/metarouter/go-sdk/internal/enrich"
	"github.com/metarouter/go-sdk/internal/identitystore"
	"github.com/metarouter/go-sdk/internal/lifecycle"
	"github.com/metarouter/go-sdk/internal/model"
	"github.com/metarouter/go-sdk/internal/queue"
	"github.com/metarouter/go-sdk/platform"
)

// pipeline is the lifecycle-resolved backend the Proxy binds to once
// initialization completes. It satisfies proxy.Client.
type pipeline struct {
	identity   *identitystore.Store
	ctxProvider platform.ContextProvider
	enricher   *enrich.Enricher
	dispatcher *dispatch.Dispatcher
	lifecycle  *lifecycle.Controller
	logger     *slog.Logger
}

func newPipeline(opts Options) *pipeline {
	kv := opts.KeyValueStore
	if kv == nil {
		kv = identitystore.NewMemoryKV()
	}
	identity := identitystore.New(kv)
	if opts.AdvertisingID != "" {
		identity.SetAdvertisingID(opts.AdvertisingID)
	}

	ctxProvider := opts.ContextProvider
	if ctxProvider == nil {
		ctxProvider = contextcache.New(contextcache.Probes{
			LibraryName:    "metarouter-go",
			LibraryVersion: Version,
		})
	}

	enricher := enrich.New(identity, opts.WriteKey)

	brCfg := breaker.DefaultConfig()
	if opts.BreakerConfig != nil {
		brCfg = *opts.BreakerConfig
	}
	br := breaker.New(brCfg)

	q := queue.New(opts.MaxQueueEvents, queue.DropOldest, opts.Logger)

	dispatcher := dispatch.New(opts.HTTPTransport, opts.IngestionHost, dispatch.DefaultConfig(), q, br, opts.Logger)

	lc := lifecycle.New(dispatcher, identity, opts.FlushIntervalSeconds, opts.Logger)

	return &pipeline{
		identity:    identity,
		ctxProvider: ctxProvider,
		enricher:    enricher,
		dispatcher:  dispatcher,
		lifecycle:   lc,
		logger:      opts.Logger,
	}
}

func (p *pipeline) start(appLifecycle platform.AppLifecycle) error {
	return p.lifecycle.Initialize(appLifecycle)
}

// Enqueue implements proxy.Client: enriches call and offers it to the
// Dispatcher, unless the pipeline is Disabled (§4.8 "subsequent enqueue
// attempts short-circuit").
func (p *pipeline) Enqueue(call model.RawCall) {
	if p.lifecycle.State() == lifecycle.Disabled {
		return
	}
	identity := p.identity.Snapshot()
	ctxRecord, err := p.ctxProvider.GetContext(context.Background(), identity.AdvertisingID)
	if err != nil {
		p.logger.Warn("metarouter: context provider failed, using zero-value context", "error", err)
	}
	ev := p.enricher.Enrich(call, ctxRecord)
	p.dispatcher.Offer(ev)
}

// Flush implements proxy.Client.
func (p *pipeline) Flush() {
	if p.lifecycle.State() == lifecycle.Disabled {
		return
	}
	p.dispatcher.Flush()
}

func (p *pipeline) reset() {
	p.lifecycle.Reset()
	p.ctxProvider.ClearCache()
}

func (p *pipeline) debugInfo() DebugInfo {
	info := p.dispatcher.DebugInfo()
	return DebugInfo{
		QueueLength:         info.QueueLength,
		FlushInFlight:       info.FlushInFlight,
		BreakerState:        info.BreakerState.String(),
		RemainingCooldownMs: info.RemainingCooldownMs,
		MaxBatchSize:        info.MaxBatchSize,
		LifecycleState:      p.lifecycle.State().String(),
	}
}
