package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"cmc_performance/metrics"
	"cmc_performance/models"
	"cmc_performance/performance"
	"cmc_performance/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	coins []models.CoinRecord
	err   error
}

func (f *fakeFetcher) FetchUniverse(ctx context.Context) ([]models.CoinRecord, error) {
	return f.coins, f.err
}

func listing(id int64, symbol string, rank int, pct24h float64) models.CoinRecord {
	c := models.CoinRecord{ID: id, Symbol: symbol, Name: symbol, CMCRank: rank}
	c.Quote.USD.Price = 100
	c.Quote.USD.PercentChange24h = pct24h
	c.Quote.USD.LastUpdated = time.Date(2024, 5, 1, 11, 59, 0, 0, time.UTC)
	return c
}

type harness struct {
	store    *store.Store
	fetcher  *fakeFetcher
	pipeline *Pipeline
	promFile string
}

func newHarness(t *testing.T, tracked string, coins ...models.CoinRecord) *harness {
	t.Helper()
	root := t.TempDir()
	trackedPath := filepath.Join(root, "coins_to_track.csv")
	require.NoError(t, os.WriteFile(trackedPath, []byte("Symbol\n"+tracked), 0644))

	s, err := store.Open(filepath.Join(root, "data"))
	require.NoError(t, err)

	m := metrics.NewMetrics()
	h := &harness{store: s, fetcher: &fakeFetcher{coins: coins}, promFile: filepath.Join(root, "pipeline.prom")}
	h.pipeline = NewWithStages(m, h.promFile,
		&FetchStage{Fetcher: h.fetcher, Store: s, Metrics: m},
		&PricingStage{Store: s, TrackedPath: trackedPath, Metrics: m},
		&PerformanceStage{Store: s, TrackedPath: trackedPath, Metrics: m},
		&AverageStage{Store: s, Metrics: m},
	)

	// distinct seconds so each run gets its own file names
	tick := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	h.pipeline.clock = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return h
}

func TestRunWritesEveryArtifact(t *testing.T) {
	h := newHarness(t, "ETH\n",
		listing(1, "BTC", 1, -2.0),
		listing(1027, "ETH", 2, 3.0),
		listing(5426, "SOL", 5, 1.0),
	)

	require.NoError(t, h.pipeline.Run(context.Background()))

	pricing, _, err := h.store.LatestPricing()
	require.NoError(t, err)
	require.Len(t, pricing, 2, "baseline plus tracked coin")

	history, err := h.store.PerformanceHistory()
	require.NoError(t, err)
	require.Len(t, history, 1)
	records, err := h.store.ReadPerformance(history[0].File)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ETH", records[0].Symbol)
	assert.Equal(t, 5.0, records[0].PerformanceVsBTC)

	averages, err := h.store.ReadAverages()
	require.NoError(t, err)
	require.Len(t, averages, 1)
	assert.Equal(t, 5.0, averages[0].PerformanceVsBTC)

	_, err = os.Stat(h.promFile)
	assert.NoError(t, err)
}

func TestRunAveragesAcrossRuns(t *testing.T) {
	h := newHarness(t, "ETH\n", listing(1, "BTC", 1, -2.0), listing(1027, "ETH", 2, 3.0))
	require.NoError(t, h.pipeline.Run(context.Background()))

	h.fetcher.coins = []models.CoinRecord{listing(1, "BTC", 1, 1.0), listing(1027, "ETH", 2, 1.0)}
	require.NoError(t, h.pipeline.Run(context.Background()))

	averages, err := h.store.ReadAverages()
	require.NoError(t, err)
	require.Len(t, averages, 1)
	assert.Equal(t, 2.5, averages[0].PerformanceVsBTC)
}

func TestRunHaltsOnFetchFailure(t *testing.T) {
	h := newHarness(t, "ETH\n")
	h.fetcher.err = errors.New("probe failed")

	err := h.pipeline.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage fetch")

	_, err = h.store.ReadUniverse()
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, _, err = h.store.LatestPricing()
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunMissingBaselineWritesNoPerformance(t *testing.T) {
	h := newHarness(t, "ETH\n", listing(1027, "ETH", 2, 3.0))

	err := h.pipeline.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, performance.ErrBaselineMissing)
	assert.Contains(t, err.Error(), "stage performance")

	history, err := h.store.PerformanceHistory()
	require.NoError(t, err)
	assert.Empty(t, history)
	matches, err := filepath.Glob(filepath.Join(h.store.Dir(), store.HistoryPrefix+"*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestAverageStageSkipsWithoutHistory(t *testing.T) {
	h := newHarness(t, "ETH\n")

	require.NoError(t, h.pipeline.RunStage(context.Background(), StageAverage))

	_, err := os.Stat(filepath.Join(h.store.Dir(), store.AverageFile))
	assert.True(t, os.IsNotExist(err), "average_performance.csv must not be written")
}

func TestRunStageUnknown(t *testing.T) {
	h := newHarness(t, "ETH\n")
	err := h.pipeline.RunStage(context.Background(), "load")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown stage")
}

type panicStage struct{}

func (panicStage) Name() string { return "explode" }

func (panicStage) Run(ctx context.Context, run *Run) error { panic("nil map") }

type countingStage struct{ calls int }

func (s *countingStage) Name() string { return "after" }

func (s *countingStage) Run(ctx context.Context, run *Run) error {
	s.calls++
	return nil
}

func TestRunRecoversPanicAndHalts(t *testing.T) {
	after := &countingStage{}
	p := NewWithStages(nil, "", panicStage{}, after)

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "explode panicked")
	assert.Zero(t, after.calls)
}

func TestRunHonoursCancelledContext(t *testing.T) {
	stage := &countingStage{}
	p := NewWithStages(nil, "", stage)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, stage.calls)
}

func TestPricingStageSkipsWithoutUniverse(t *testing.T) {
	h := newHarness(t, "ETH\n")

	require.NoError(t, h.pipeline.RunStage(context.Background(), StagePricing))

	_, _, err := h.store.LatestPricing()
	assert.ErrorIs(t, err, store.ErrNoSnapshot)
	matches, err := filepath.Glob(filepath.Join(h.store.Dir(), store.PricingPrefix+"*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestPerformanceStageSkipsWithoutSnapshot(t *testing.T) {
	h := newHarness(t, "ETH\n")

	require.NoError(t, h.pipeline.RunStage(context.Background(), StagePerformance))

	history, err := h.store.PerformanceHistory()
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestPerformanceStageFailsOnMissingIndexedSnapshot(t *testing.T) {
	h := newHarness(t, "ETH\n", listing(1, "BTC", 1, -2.0), listing(1027, "ETH", 2, 3.0))
	ctx := context.Background()
	require.NoError(t, h.pipeline.RunStage(ctx, StageFetch))
	require.NoError(t, h.pipeline.RunStage(ctx, StagePricing))

	_, entry, err := h.store.LatestPricing()
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(h.store.Dir(), entry.File)))

	err = h.pipeline.RunStage(ctx, StagePerformance)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NotErrorIs(t, err, store.ErrNoSnapshot)
}

type tickingStage struct{ calls atomic.Int32 }

func (s *tickingStage) Name() string { return "tick" }

func (s *tickingStage) Run(ctx context.Context, run *Run) error {
	s.calls.Add(1)
	return nil
}

func TestScheduleRunsUntilCancelled(t *testing.T) {
	stage := &tickingStage{}
	p := NewWithStages(nil, "", stage)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Schedule(ctx, "@every 1s") }()

	require.Eventually(t, func() bool { return stage.calls.Load() > 0 }, 5*time.Second, 20*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestScheduleRejectsInvalidSpec(t *testing.T) {
	err := NewWithStages(nil, "").Schedule(context.Background(), "every tuesday")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schedule")
}
