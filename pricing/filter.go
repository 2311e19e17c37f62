package pricing

import (
	"sort"
	"time"

	"cmc_performance/models"
)

// Dedupe keeps one coin per symbol: the one with the lowest cmc_rank. Ties
// keep the coin that appears first. The result is ordered by rank, unranked
// coins last.
func Dedupe(coins []models.CoinRecord) []models.CoinRecord {
	sorted := make([]models.CoinRecord, len(coins))
	copy(sorted, coins)
	sort.SliceStable(sorted, func(i, j int) bool {
		return rankLess(sorted[i].CMCRank, sorted[j].CMCRank)
	})

	seen := make(map[string]struct{}, len(sorted))
	out := sorted[:0]
	for _, c := range sorted {
		if _, dup := seen[c.Symbol]; dup {
			continue
		}
		seen[c.Symbol] = struct{}{}
		out = append(out, c)
	}
	return out
}

// BuildSnapshot reduces the universe to the tracked coins' USD quotes. The
// baseline symbol is always retained so performance can be computed later.
func BuildSnapshot(universe []models.CoinRecord, tracked models.TrackedSet, loadedAt time.Time) []models.PricingRecord {
	keep := tracked.WithBaseline().Lookup()

	snapshot := make([]models.PricingRecord, 0, len(keep))
	for _, c := range Dedupe(universe) {
		if _, ok := keep[c.Symbol]; !ok {
			continue
		}
		snapshot = append(snapshot, models.PricingRecord{
			ID:            c.ID,
			Symbol:        c.Symbol,
			Name:          c.Name,
			CMCRank:       c.CMCRank,
			Quote:         c.Quote.USD,
			LoadedAt:      loadedAt,
			IsTopCurrency: IsTopCurrency(c.CMCRank),
		})
	}

	sort.SliceStable(snapshot, func(i, j int) bool {
		return rankLess(snapshot[i].CMCRank, snapshot[j].CMCRank)
	})
	return snapshot
}

// IsTopCurrency reports whether rank is within the top currencies. Unranked
// coins never are.
func IsTopCurrency(rank int) bool {
	return IsRanked(rank) && rank <= models.TopCurrencyRank
}

// IsRanked reports whether rank is a real cmc_rank. A missing rank decodes
// to zero.
func IsRanked(rank int) bool {
	return rank > 0
}

func rankLess(a, b int) bool {
	if IsRanked(a) != IsRanked(b) {
		return IsRanked(a)
	}
	return a < b
}
