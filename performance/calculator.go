package performance

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"cmc_performance/models"

	"github.com/shopspring/decimal"
)

const (
	// RecordPrecision is the number of decimals kept in performance records.
	RecordPrecision = 6
	// AveragePrecision is the number of decimals kept in averages.
	AveragePrecision = 4
)

var (
	// ErrBaselineMissing means the snapshot has no baseline row.
	ErrBaselineMissing = errors.New("baseline row missing from pricing snapshot")
	// ErrBaselineAmbiguous means the snapshot has more than one baseline row.
	ErrBaselineAmbiguous = errors.New("multiple baseline rows in pricing snapshot")
)

// Baseline returns the baseline coin's 24h percent change.
func Baseline(snapshot []models.PricingRecord) (float64, error) {
	var (
		found    bool
		baseline float64
	)
	for _, r := range snapshot {
		if r.Symbol != models.BaselineSymbol {
			continue
		}
		if found {
			return 0, fmt.Errorf("%w: symbol %s", ErrBaselineAmbiguous, models.BaselineSymbol)
		}
		found = true
		baseline = r.Quote.PercentChange24h
	}
	if !found {
		return 0, fmt.Errorf("%w: symbol %s", ErrBaselineMissing, models.BaselineSymbol)
	}
	return baseline, nil
}

// Relative computes every row's 24h change against the baseline row. The
// baseline row itself is kept and always scores exactly zero. Rows are
// ordered worst first.
func Relative(snapshot []models.PricingRecord, now time.Time) ([]models.PerformanceRecord, error) {
	baseline, err := Baseline(snapshot)
	if err != nil {
		return nil, err
	}

	records := make([]models.PerformanceRecord, 0, len(snapshot))
	for _, r := range snapshot {
		records = append(records, models.PerformanceRecord{
			Symbol:                    r.Symbol,
			Name:                      r.Name,
			Price:                     r.Quote.Price,
			PerformanceVsBTC:          r.Quote.PercentChange24h - baseline,
			PricePercentChange24h:     r.Quote.PercentChange24h,
			BTCPercentChange24h:       baseline,
			PriceLastUpdatedTimestamp: r.Quote.LastUpdated,
			LoadedAt:                  r.LoadedAt,
		})
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].PerformanceVsBTC < records[j].PerformanceVsBTC
	})

	for i := range records {
		rec := &records[i]
		rec.AnalysisTimestamp = now
		rec.Price = Round(rec.Price, RecordPrecision)
		rec.PricePercentChange24h = Round(rec.PricePercentChange24h, RecordPrecision)
		rec.BTCPercentChange24h = Round(rec.BTCPercentChange24h, RecordPrecision)
		rec.PerformanceVsBTC = Round(rec.PerformanceVsBTC, RecordPrecision)
	}
	return records, nil
}

// Retain keeps the records whose symbol is tracked. It runs after Relative
// so the baseline row is dropped only once it has served its purpose.
func Retain(records []models.PerformanceRecord, tracked models.TrackedSet) []models.PerformanceRecord {
	keep := tracked.Lookup()
	out := make([]models.PerformanceRecord, 0, len(records))
	for _, r := range records {
		if _, ok := keep[r.Symbol]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Calculate runs Relative on the full snapshot and then Retain with the
// caller's tracked set, which may not include the baseline symbol.
func Calculate(snapshot []models.PricingRecord, tracked models.TrackedSet, now time.Time) ([]models.PerformanceRecord, error) {
	records, err := Relative(snapshot, now)
	if err != nil {
		return nil, err
	}
	return Retain(records, tracked), nil
}

// Round rounds v to places decimals, half away from zero. NaN and
// infinities are returned unchanged.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
