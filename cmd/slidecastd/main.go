package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"slidecast/internal/browser"
	"slidecast/internal/config"
	"slidecast/internal/daemon"
	"slidecast/internal/logging"
	"slidecast/internal/render"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	pool := browser.NewPool(cfg, nil, logger)
	renderer := render.NewRenderer(cfg, pool, nil, logger)

	d, err := daemon.New(cfg, pool, renderer, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		os.Exit(1)
	}
	d.RegisterMetrics()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start failed", logging.Error(err))
		os.Exit(1)
	}
	defer d.Stop()

	<-ctx.Done()
	logger.Info("slidecastd shutting down")
}
