package main

import (
	"context"
	"log/slog"
	"os"

	"go.uber.org/fx"

	"github.com/metarouter/go-sdk"
	democonfig "github.com/metarouter/go-sdk/cmd/metarouter-demo/config"
)

// ProvideLogger mirrors the teacher's ProvideLogger: a single shared
// *slog.Logger handed to every component via fx.Provide.
func ProvideLogger(cfg *democonfig.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// ProvideOptions turns the loaded Config into metarouter.Options.
func ProvideOptions(cfg *democonfig.Config, logger *slog.Logger) metarouter.Options {
	return metarouter.Options{
		WriteKey:             cfg.WriteKey,
		IngestionHost:        cfg.IngestionHost,
		Debug:                cfg.Debug,
		FlushIntervalSeconds: cfg.FlushIntervalSeconds,
		MaxQueueEvents:       cfg.MaxQueueEvents,
		Logger:               logger,
	}
}

// ProvideAnalytics constructs the library's public entry point and wires
// its teardown to the fx lifecycle.
func ProvideAnalytics(lc fx.Lifecycle, opts metarouter.Options, logger *slog.Logger) (*metarouter.Analytics, error) {
	client, err := metarouter.New(opts)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			client.Flush()
			logger.Info("metarouter-demo: shutting down, final debug snapshot", "debugInfo", client.GetDebugInfo())
			return nil
		},
	})
	return client, nil
}

// NewApp mirrors cmd/fx.go's NewApp: one fx.Module-shaped fx.New wiring
// config, logger, and the analytics client.
func NewApp(cfg *democonfig.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *democonfig.Config { return cfg },
			ProvideLogger,
			ProvideOptions,
			ProvideAnalytics,
		),
		fx.Invoke(func(*metarouter.Analytics) {}),
	)
}
