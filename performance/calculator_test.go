package performance

import (
	"testing"
	"time"

	"cmc_performance/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	loadedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now      = loadedAt.Add(5 * time.Minute)
)

func row(symbol string, price, pct24h float64) models.PricingRecord {
	return models.PricingRecord{
		Symbol:   symbol,
		Name:     symbol + " coin",
		Quote:    models.USDQuote{Price: price, PercentChange24h: pct24h, LastUpdated: loadedAt.Add(-time.Minute)},
		LoadedAt: loadedAt,
	}
}

func TestCalculateDropsUntrackedBaseline(t *testing.T) {
	snapshot := []models.PricingRecord{
		row("BTC", 60000, -2.0),
		row("ETH", 3000, 3.0),
	}

	got, err := Calculate(snapshot, models.TrackedSet{"ETH"}, now)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "ETH", got[0].Symbol)
	assert.Equal(t, 5.0, got[0].PerformanceVsBTC)
	assert.Equal(t, -2.0, got[0].BTCPercentChange24h)
	assert.Equal(t, now, got[0].AnalysisTimestamp)
	assert.Equal(t, loadedAt, got[0].LoadedAt)
}

func TestRelativeBaselineScoresZero(t *testing.T) {
	snapshot := []models.PricingRecord{
		row("ETH", 3000, 3.0),
		row("BTC", 60000, -2.123456789),
		row("SOL", 150, -7.5),
	}

	got, err := Relative(snapshot, now)
	require.NoError(t, err)
	require.Len(t, got, 3)

	for _, r := range got {
		assert.Equal(t, -2.123457, r.BTCPercentChange24h, "baseline broadcast to %s", r.Symbol)
		if r.Symbol == "BTC" {
			assert.Equal(t, 0.0, r.PerformanceVsBTC)
		}
	}
}

func TestRelativeSortsWorstFirst(t *testing.T) {
	snapshot := []models.PricingRecord{
		row("ETH", 3000, 3.0),
		row("BTC", 60000, 1.0),
		row("SOL", 150, -7.5),
		row("ADA", 0.45, 0.5),
	}

	got, err := Relative(snapshot, now)
	require.NoError(t, err)

	var symbols []string
	for _, r := range got {
		symbols = append(symbols, r.Symbol)
	}
	assert.Equal(t, []string{"SOL", "ADA", "BTC", "ETH"}, symbols)
}

func TestRelativeRoundsToSixPlaces(t *testing.T) {
	snapshot := []models.PricingRecord{
		row("BTC", 60000.123456789, 1.1),
		row("PEPE", 0.0000123456789, 2.2000004),
	}

	got, err := Relative(snapshot, now)
	require.NoError(t, err)

	pepe := got[1]
	require.Equal(t, "PEPE", pepe.Symbol)
	assert.Equal(t, 0.000012, pepe.Price)
	assert.Equal(t, 2.2, pepe.PricePercentChange24h)
	assert.Equal(t, 1.1, pepe.PerformanceVsBTC)
	assert.Equal(t, 60000.123457, got[0].Price)
}

func TestRelativeMissingBaseline(t *testing.T) {
	_, err := Calculate([]models.PricingRecord{row("ETH", 3000, 3.0)}, models.TrackedSet{"ETH"}, now)
	assert.ErrorIs(t, err, ErrBaselineMissing)
}

func TestRelativeAmbiguousBaseline(t *testing.T) {
	snapshot := []models.PricingRecord{row("BTC", 1, 1), row("BTC", 2, 2)}
	_, err := Relative(snapshot, now)
	assert.ErrorIs(t, err, ErrBaselineAmbiguous)
}

func TestCalculateNothingTracked(t *testing.T) {
	snapshot := []models.PricingRecord{row("BTC", 60000, -2.0), row("ETH", 3000, 3.0)}

	got, err := Calculate(snapshot, models.TrackedSet{"DOGE"}, now)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCalculateKeepsTrackedBaseline(t *testing.T) {
	snapshot := []models.PricingRecord{row("BTC", 60000, -2.0), row("ETH", 3000, 3.0)}

	got, err := Calculate(snapshot, models.TrackedSet{"BTC", "ETH"}, now)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "BTC", got[0].Symbol)
	assert.Equal(t, 0.0, got[0].PerformanceVsBTC)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.2346, Round(1.23456, 4))
	assert.Equal(t, -1.2346, Round(-1.23456, 4))
	assert.Equal(t, 5.0, Round(5, 6))
}
