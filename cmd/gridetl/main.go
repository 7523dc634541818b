// Command gridetl fetches public utility reliability, generation, price and
// outage data and publishes the JSON documents read by the chart frontend.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/grid-reliability-etl/internal/config"
	"github.com/couchcryptid/grid-reliability-etl/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	a := &app{
		cfg:     cfg,
		logger:  observability.NewLogger(cfg),
		metrics: observability.NewMetrics(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = a.rootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
