package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cmc_performance/config"
	"cmc_performance/metrics"
	"cmc_performance/pipeline"
	"cmc_performance/store"
	"cmc_performance/utils"
)

var (
	configPath = flag.String("config", "", "Optional YAML config file")
	stageFlag  = flag.String("stage", "", "Run a single stage: fetch, pricing, performance or average")
	schedule   = flag.String("schedule", "", "Cron spec; keep running and execute the pipeline on it")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if *schedule != "" {
		cfg.App.Schedule = *schedule
	}

	// Initialize logger
	if err := utils.InitLogger(cfg.App.LogLevel, cfg.App.LogDir); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer utils.Sync()

	s, err := store.Open(cfg.Storage.DataDir)
	if err != nil {
		utils.Error(err, "Failed to open data directory", "dir", cfg.Storage.DataDir)
		return err
	}

	p := pipeline.New(cfg, s, metrics.NewMetrics())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch {
	case cfg.App.Schedule != "":
		return p.Schedule(ctx, cfg.App.Schedule)
	case *stageFlag != "":
		return p.RunStage(ctx, *stageFlag)
	default:
		return p.Run(ctx)
	}
}
