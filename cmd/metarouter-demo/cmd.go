package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	democonfig "github.com/metarouter/go-sdk/cmd/metarouter-demo/config"
)

const (
	ServiceName = "metarouter-demo"
)

var (
	version = "0.0.0"
	commit  = "hash"
)

// Run mirrors the teacher's cmd.Run(): a urfave/cli App with a single
// "server" command that loads config, starts the fx app, and blocks on
// SIGINT/SIGTERM.
func Run() error {
	app := &cli.App{
		Name:    ServiceName,
		Usage:   "Demo host for the metarouter analytics pipeline",
		Version: version,
		Commands: []*cli.Command{
			serverCmd(),
		},
	}
	return app.Run(os.Args)
}

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Run the demo host with a configured analytics client",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config_file",
				Usage: "Path to the configuration file",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := democonfig.LoadConfig(c.String("config_file"))
			if err != nil {
				return err
			}
			app := NewApp(cfg)

			startCtx, cancel := context.WithTimeout(c.Context, 10*time.Second)
			defer cancel()
			if err := app.Start(startCtx); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			slog.Info("metarouter-demo: shutting down...")
			stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelStop()
			return app.Stop(stopCtx)
		},
	}
}
