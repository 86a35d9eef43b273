package main

import (
	"log/slog"
	"os"
)

func main() {
	if err := Run(); err != nil {
		slog.Error("metarouter-demo: fatal error", "error", err)
		os.Exit(1)
	}
}
