package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"omnistream/config"
	"omnistream/internal/client"
	"omnistream/internal/logger"
	"omnistream/internal/metrics"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to YAML config (optional; env overrides apply)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.Init("streamclient", logger.ParseLevel(cfg.LogLevel))
	log.Info("starting",
		"endpoint", cfg.Endpoint,
		"subscription", cfg.InitialSubscription().Key(),
		"timeframes", cfg.Timeframes)

	met := metrics.New()
	c := client.New(cfg, met, log)

	metricsSrv := metrics.NewServer(cfg.MetricsAddr, met, c.Health, log)
	metricsSrv.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()

	<-sigCh
	log.Info("shutdown signal received")
	cancel()
	<-done

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)

	log.Info("shutdown complete")
}
