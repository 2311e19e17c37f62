package performance

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"cmc_performance/models"
	"cmc_performance/store"
	"cmc_performance/utils"

	"github.com/shopspring/decimal"
)

// ErrNoHistory marks an aggregation with no performance files to read. It
// is not a failure: callers skip writing the averages.
var ErrNoHistory = errors.New("no performance history")

// HistorySource lists and reads persisted performance files.
type HistorySource interface {
	PerformanceHistory() ([]store.Entry, error)
	ReadPerformance(name string) ([]models.PerformanceRecord, error)
}

// Aggregate reads every recorded performance file and averages them. It
// returns ErrNoHistory when nothing has been recorded yet.
func Aggregate(src HistorySource, now time.Time) ([]models.AveragePerformance, int, error) {
	entries, err := src.PerformanceHistory()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list performance history: %w", err)
	}
	if len(entries) == 0 {
		return nil, 0, ErrNoHistory
	}

	var history []models.PerformanceRecord
	for _, e := range entries {
		records, err := src.ReadPerformance(e.File)
		if err != nil {
			return nil, 0, err
		}
		history = append(history, records...)
	}

	utils.Logger.Debugw("Performance history loaded",
		"files", len(entries),
		"rows", len(history))
	return Average(history, now), len(entries), nil
}

// Average groups records by symbol and returns each symbol's mean
// performance, lowest first. NaN values are left out of the mean.
func Average(history []models.PerformanceRecord, now time.Time) []models.AveragePerformance {
	type acc struct {
		sum   decimal.Decimal
		count int64
	}
	groups := make(map[string]*acc)
	for _, r := range history {
		a, ok := groups[r.Symbol]
		if !ok {
			a = &acc{}
			groups[r.Symbol] = a
		}
		if math.IsNaN(r.PerformanceVsBTC) || math.IsInf(r.PerformanceVsBTC, 0) {
			continue
		}
		a.sum = a.sum.Add(decimal.NewFromFloat(r.PerformanceVsBTC))
		a.count++
	}

	type mean struct {
		symbol string
		value  decimal.Decimal
		valid  bool
	}
	means := make([]mean, 0, len(groups))
	for symbol, a := range groups {
		m := mean{symbol: symbol}
		if a.count > 0 {
			m.value = a.sum.Div(decimal.NewFromInt(a.count))
			m.valid = true
		}
		means = append(means, m)
	}
	sort.Slice(means, func(i, j int) bool {
		if means[i].valid != means[j].valid {
			return means[i].valid
		}
		if c := means[i].value.Cmp(means[j].value); c != 0 {
			return c < 0
		}
		return means[i].symbol < means[j].symbol
	})

	out := make([]models.AveragePerformance, 0, len(means))
	for _, m := range means {
		value := math.NaN()
		if m.valid {
			value = m.value.Round(AveragePrecision).InexactFloat64()
		}
		out = append(out, models.AveragePerformance{
			Symbol:               m.symbol,
			PerformanceVsBTC:     value,
			CalculationTimestamp: now,
		})
	}
	return out
}
