// Package contextcache provides the reference platform.ContextProvider
// (C5 default implementation): it fans injected probe callbacks out
// concurrently, caches the composed record, and invalidates the cache when
// advertisingId changes (§3).
package contextcache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/metarouter/go-sdk/internal/model"
	"github.com/metarouter/go-sdk/platform"
)

// Probes bundles the injectable introspection callbacks a host supplies;
// nil entries are skipped and leave their corresponding context field at
// its zero value.
type Probes struct {
	App     platform.AppProbe
	Device  platform.DeviceProbe
	OS      platform.OSProbe
	Screen  platform.ScreenProbe
	Locale  platform.LocaleProbe
	TZ      platform.TZProbe
	Network platform.NetworkProbe

	LibraryName    string
	LibraryVersion string
}

// Provider is the reference ContextProvider. It caches one entry, keyed by
// advertisingId, in a size-1 LRU: a changed advertisingId naturally evicts
// the stale entry instead of needing a hand-rolled invalidation flag,
// mirroring the teacher's peer-enrichment cache-aside idiom.
type Provider struct {
	probes Probes
	cache  *lru.Cache[string, model.Context]
}

// New constructs a Provider from the given probes.
func New(probes Probes) *Provider {
	cache, _ := lru.New[string, model.Context](1)
	return &Provider{probes: probes, cache: cache}
}

// GetContext implements platform.ContextProvider: returns the cached
// record for advertisingID if present, otherwise fans the probes out
// concurrently and caches the result.
func (p *Provider) GetContext(ctx context.Context, advertisingID string) (model.Context, error) {
	if cached, ok := p.cache.Get(advertisingID); ok {
		return cached, nil
	}

	var out model.Context
	out.Library = model.LibraryContext{Name: p.probes.LibraryName, Version: p.probes.LibraryVersion}

	g, gctx := errgroup.WithContext(ctx)

	if p.probes.App != nil {
		g.Go(func() error {
			v, err := p.probes.App(gctx)
			if err != nil {
				return err
			}
			out.App = v
			return nil
		})
	}
	if p.probes.Device != nil {
		g.Go(func() error {
			v, err := p.probes.Device(gctx)
			if err != nil {
				return err
			}
			out.Device = v
			return nil
		})
	}
	if p.probes.OS != nil {
		g.Go(func() error {
			v, err := p.probes.OS(gctx)
			if err != nil {
				return err
			}
			out.OS = v
			return nil
		})
	}
	if p.probes.Screen != nil {
		g.Go(func() error {
			v, err := p.probes.Screen(gctx)
			if err != nil {
				return err
			}
			out.Screen = v
			return nil
		})
	}
	if p.probes.Locale != nil {
		g.Go(func() error {
			v, err := p.probes.Locale(gctx)
			if err != nil {
				return err
			}
			out.Locale = v
			return nil
		})
	}
	if p.probes.TZ != nil {
		g.Go(func() error {
			v, err := p.probes.TZ(gctx)
			if err != nil {
				return err
			}
			out.Timezone = v
			return nil
		})
	}
	if p.probes.Network != nil {
		g.Go(func() error {
			v, err := p.probes.Network(gctx)
			if err != nil {
				return err
			}
			out.Network = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return model.Context{}, err
	}

	out.Device.AdvertisingID = advertisingID
	p.cache.Add(advertisingID, out)
	return out, nil
}

// ClearCache drops every cached entry (§6).
func (p *Provider) ClearCache() {
	p.cache.Purge()
}
