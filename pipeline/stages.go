package pipeline

import (
	"context"
	"errors"
	"fmt"

	"cmc_performance/metrics"
	"cmc_performance/models"
	"cmc_performance/performance"
	"cmc_performance/pricing"
	"cmc_performance/store"
	"cmc_performance/utils"
)

const (
	StageFetch       = "fetch"
	StagePricing     = "pricing"
	StagePerformance = "performance"
	StageAverage     = "average"
)

// UniverseFetcher returns the full listing universe.
type UniverseFetcher interface {
	FetchUniverse(ctx context.Context) ([]models.CoinRecord, error)
}

// FetchStage downloads the universe and replaces coin_universe.csv.
type FetchStage struct {
	Fetcher UniverseFetcher
	Store   *store.Store
	Metrics *metrics.Metrics
}

func (s *FetchStage) Name() string { return StageFetch }

func (s *FetchStage) Run(ctx context.Context, run *Run) error {
	coins, err := s.Fetcher.FetchUniverse(ctx)
	if err != nil {
		return err
	}
	if err := s.Store.WriteUniverse(coins); err != nil {
		return err
	}
	s.Metrics.AddRowsWritten(StageFetch, len(coins))

	utils.Logger.Infow("Coin universe written",
		"run_id", run.ID,
		"file", store.UniverseFile,
		"coins", len(coins))
	return nil
}

// PricingStage turns the universe into a pricing snapshot of tracked coins.
type PricingStage struct {
	Store       *store.Store
	TrackedPath string
	Metrics     *metrics.Metrics
}

func (s *PricingStage) Name() string { return StagePricing }

func (s *PricingStage) Run(ctx context.Context, run *Run) error {
	universe, err := s.Store.ReadUniverse()
	if errors.Is(err, store.ErrNotFound) {
		utils.Logger.Infow("No coin universe file found, skipping pricing", "run_id", run.ID)
		return nil
	}
	if err != nil {
		return err
	}
	tracked, err := store.ReadTracked(s.TrackedPath)
	if err != nil {
		return err
	}

	loadedAt := run.Now()
	snapshot := pricing.BuildSnapshot(universe, tracked, loadedAt)

	name, err := s.Store.AppendPricing(run.ID, loadedAt, snapshot)
	if err != nil {
		return err
	}
	s.Metrics.AddRowsWritten(StagePricing, len(snapshot))

	utils.Logger.Infow("Pricing snapshot written",
		"run_id", run.ID,
		"file", name,
		"universe", len(universe),
		"tracked", len(tracked),
		"rows", len(snapshot))
	return nil
}

// PerformanceStage computes performance against the baseline for the latest
// pricing snapshot.
type PerformanceStage struct {
	Store       *store.Store
	TrackedPath string
	Metrics     *metrics.Metrics
}

func (s *PerformanceStage) Name() string { return StagePerformance }

func (s *PerformanceStage) Run(ctx context.Context, run *Run) error {
	snapshot, entry, err := s.Store.LatestPricing()
	if errors.Is(err, store.ErrNoSnapshot) {
		utils.Logger.Infow("No pricing snapshot found, skipping performance", "run_id", run.ID)
		return nil
	}
	if err != nil {
		return err
	}
	tracked, err := store.ReadTracked(s.TrackedPath)
	if err != nil {
		return err
	}

	analysedAt := run.Now()
	records, err := performance.Calculate(snapshot, tracked, analysedAt)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", entry.File, err)
	}

	name, err := s.Store.AppendPerformance(run.ID, analysedAt, records)
	if err != nil {
		return err
	}
	s.Metrics.AddRowsWritten(StagePerformance, len(records))

	utils.Logger.Infow("Performance data written",
		"run_id", run.ID,
		"snapshot", entry.File,
		"file", name,
		"rows", len(records))
	return nil
}

// AverageStage recomputes average_performance.csv from the full history.
type AverageStage struct {
	Store         *store.Store
	WarnThreshold int
	Metrics       *metrics.Metrics
}

func (s *AverageStage) Name() string { return StageAverage }

func (s *AverageStage) Run(ctx context.Context, run *Run) error {
	averages, files, err := performance.Aggregate(s.Store, run.Now())
	if errors.Is(err, performance.ErrNoHistory) {
		utils.Logger.Infow("No performance data files found, skipping averages", "run_id", run.ID)
		return nil
	}
	if err != nil {
		return err
	}
	if s.WarnThreshold > 0 && files > s.WarnThreshold {
		utils.Logger.Warnw("Performance history is large; averages are recomputed from every file on each run",
			"files", files,
			"threshold", s.WarnThreshold)
	}

	if err := s.Store.WriteAverages(averages); err != nil {
		return err
	}
	s.Metrics.AddRowsWritten(StageAverage, len(averages))

	utils.Logger.Infow("Average performance written",
		"run_id", run.ID,
		"file", store.AverageFile,
		"history_files", files,
		"symbols", len(averages))
	return nil
}
