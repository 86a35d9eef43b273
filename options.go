package metarouter

import (
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/metarouter/go-sdk/internal/breaker"
	"github.com/metarouter/go-sdk/internal/httptransport"
	"github.com/metarouter/go-sdk/platform"
)

// Options is InitOptions (§6): the public configuration surface.
type Options struct {
	WriteKey      string
	IngestionHost string
	Debug         bool

	// FlushIntervalSeconds clamps to ≥ 1; default 10.
	FlushIntervalSeconds int
	// MaxQueueEvents clamps to ≥ 1; default 2000.
	MaxQueueEvents int
	// AdvertisingID, if set, seeds IdentityStore and is passed to
	// ContextProvider.GetContext.
	AdvertisingID string

	// KeyValueStore backs IdentityStore. If nil, an in-memory store is
	// used (identity will not survive process restart).
	KeyValueStore platform.KeyValueStore
	// ContextProvider supplies the context record. If nil, a reference
	// provider with no probes is used: only the library block and
	// device.advertisingId are filled, every other field is zero-valued.
	ContextProvider platform.ContextProvider
	// HTTPTransport performs the wire POST. If nil, a net/http-backed
	// default is used.
	HTTPTransport platform.HTTPTransport
	// AppLifecycle, if set, is subscribed for foreground/background
	// signals.
	AppLifecycle platform.AppLifecycle

	// BreakerConfig overrides the circuit breaker's defaults.
	BreakerConfig *breaker.Config

	// Logger receives structured log output. If nil, a default
	// text-handler logger is built, gated to slog.LevelDebug when Debug is
	// true and slog.LevelInfo otherwise; a caller-supplied Logger is used
	// as-is and governs its own level.
	Logger *slog.Logger
}

func (o Options) validate() error {
	if strings.TrimSpace(o.WriteKey) == "" {
		return &ConfigError{Kind: EmptyWriteKey}
	}
	trimmed := strings.TrimSpace(o.IngestionHost)
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ConfigError{Kind: InvalidHost}
	}
	if strings.HasSuffix(trimmed, "/") {
		return &ConfigError{Kind: TrailingSlashHost}
	}
	return nil
}

func (o Options) normalized() Options {
	o.IngestionHost = strings.TrimSpace(o.IngestionHost)
	if o.FlushIntervalSeconds < 1 {
		o.FlushIntervalSeconds = 10
	}
	if o.MaxQueueEvents < 1 {
		o.MaxQueueEvents = 2000
	}
	if o.HTTPTransport == nil {
		o.HTTPTransport = httptransport.New(&http.Client{})
	}
	if o.Logger == nil {
		// Debug gates a dedicated handler level, the same
		// Debug-then-Info split the demo binary's own ProvideLogger
		// applies (cmd/metarouter-demo/fx.go); a caller-supplied Logger
		// is used as-is and governs its own level.
		level := slog.LevelInfo
		if o.Debug {
			level = slog.LevelDebug
		}
		o.Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	return o
}
