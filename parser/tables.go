package parser

import (
	"fmt"
	"io"
	"strings"

	"cmc_performance/models"
)

var PerformanceColumns = []string{
	"symbol", "name", "price", "performance_vs_BTC", "price_percent_change_24h",
	"BTC_percent_change_24h", "price_last_updated_timestamp", "analysis_timestamp", "LoadedAt",
}

const TrackedSymbolColumn = "Symbol"

// QuoteColumns are the flattened quote.USD fields of a listing.
type QuoteColumns struct {
	Price                 float64   `csv:"quote.USD.price"`
	Volume24h             float64   `csv:"quote.USD.volume_24h"`
	VolumeChange24h       float64   `csv:"quote.USD.volume_change_24h"`
	PercentChange1h       float64   `csv:"quote.USD.percent_change_1h"`
	PercentChange24h      float64   `csv:"quote.USD.percent_change_24h"`
	PercentChange7d       float64   `csv:"quote.USD.percent_change_7d"`
	PercentChange30d      float64   `csv:"quote.USD.percent_change_30d"`
	PercentChange60d      float64   `csv:"quote.USD.percent_change_60d"`
	PercentChange90d      float64   `csv:"quote.USD.percent_change_90d"`
	MarketCap             float64   `csv:"quote.USD.market_cap"`
	MarketCapDominance    float64   `csv:"quote.USD.market_cap_dominance"`
	FullyDilutedMarketCap float64   `csv:"quote.USD.fully_diluted_market_cap"`
	LastUpdated           Timestamp `csv:"quote.USD.last_updated"`
}

func toQuoteColumns(q models.USDQuote) QuoteColumns {
	return QuoteColumns{
		Price:                 q.Price,
		Volume24h:             q.Volume24h,
		VolumeChange24h:       q.VolumeChange24h,
		PercentChange1h:       q.PercentChange1h,
		PercentChange24h:      q.PercentChange24h,
		PercentChange7d:       q.PercentChange7d,
		PercentChange30d:      q.PercentChange30d,
		PercentChange60d:      q.PercentChange60d,
		PercentChange90d:      q.PercentChange90d,
		MarketCap:             q.MarketCap,
		MarketCapDominance:    q.MarketCapDominance,
		FullyDilutedMarketCap: q.FullyDilutedMarketCap,
		LastUpdated:           Timestamp{q.LastUpdated},
	}
}

func (q QuoteColumns) quote() models.USDQuote {
	return models.USDQuote{
		Price:                 q.Price,
		Volume24h:             q.Volume24h,
		VolumeChange24h:       q.VolumeChange24h,
		PercentChange1h:       q.PercentChange1h,
		PercentChange24h:      q.PercentChange24h,
		PercentChange7d:       q.PercentChange7d,
		PercentChange30d:      q.PercentChange30d,
		PercentChange60d:      q.PercentChange60d,
		PercentChange90d:      q.PercentChange90d,
		MarketCap:             q.MarketCap,
		MarketCapDominance:    q.MarketCapDominance,
		FullyDilutedMarketCap: q.FullyDilutedMarketCap,
		LastUpdated:           q.LastUpdated.Time,
	}
}

type coinRow struct {
	ID                int64     `csv:"id"`
	Name              string    `csv:"name"`
	Symbol            string    `csv:"symbol"`
	Slug              string    `csv:"slug"`
	CMCRank           int       `csv:"cmc_rank"`
	NumMarketPairs    int       `csv:"num_market_pairs"`
	CirculatingSupply float64   `csv:"circulating_supply"`
	TotalSupply       float64   `csv:"total_supply"`
	MaxSupply         *float64  `csv:"max_supply,omitempty"`
	DateAdded         Timestamp `csv:"date_added"`
	LastUpdated       Timestamp `csv:"last_updated"`
	QuoteColumns
}

type pricingRow struct {
	ID      int64  `csv:"id"`
	Symbol  string `csv:"symbol"`
	Name    string `csv:"name"`
	CMCRank int    `csv:"cmc_rank"`
	QuoteColumns
	LoadedAt      Timestamp `csv:"LoadedAt"`
	IsTopCurrency bool      `csv:"IsTopCurrency"`
}

type performanceRow struct {
	Symbol                    string    `csv:"symbol"`
	Name                      string    `csv:"name"`
	Price                     float64   `csv:"price"`
	PerformanceVsBTC          float64   `csv:"performance_vs_BTC"`
	PricePercentChange24h     float64   `csv:"price_percent_change_24h"`
	BTCPercentChange24h       float64   `csv:"BTC_percent_change_24h"`
	PriceLastUpdatedTimestamp Timestamp `csv:"price_last_updated_timestamp"`
	AnalysisTimestamp         Timestamp `csv:"analysis_timestamp"`
	LoadedAt                  Timestamp `csv:"LoadedAt"`
}

type averageRow struct {
	Symbol               string    `csv:"symbol"`
	PerformanceVsBTC     float64   `csv:"performance_vs_BTC"`
	CalculationTimestamp Timestamp `csv:"calculation_timestamp"`
}

type trackedRow struct {
	Symbol string `csv:"Symbol"`
}

// WriteCoins writes the flattened coin universe.
func WriteCoins(w io.Writer, coins []models.CoinRecord) error {
	rows := make([]*coinRow, 0, len(coins))
	for _, c := range coins {
		rows = append(rows, &coinRow{
			ID:                c.ID,
			Name:              c.Name,
			Symbol:            c.Symbol,
			Slug:              c.Slug,
			CMCRank:           c.CMCRank,
			NumMarketPairs:    c.NumMarketPairs,
			CirculatingSupply: c.CirculatingSupply,
			TotalSupply:       c.TotalSupply,
			MaxSupply:         c.MaxSupply,
			DateAdded:         Timestamp{c.DateAdded},
			LastUpdated:       Timestamp{c.LastUpdated},
			QuoteColumns:      toQuoteColumns(c.Quote.USD),
		})
	}
	return encode(w, &rows)
}

// ReadCoins reads a coin universe file. Timestamp columns must parse.
func ReadCoins(r io.Reader) ([]models.CoinRecord, error) {
	var rows []*coinRow
	if err := decode(r, &rows, "id", "symbol", "name", "cmc_rank",
		"date_added", "last_updated", "quote.USD.last_updated"); err != nil {
		return nil, err
	}

	coins := make([]models.CoinRecord, 0, len(rows))
	for _, row := range rows {
		c := models.CoinRecord{
			ID:                row.ID,
			Name:              row.Name,
			Symbol:            row.Symbol,
			Slug:              row.Slug,
			CMCRank:           row.CMCRank,
			NumMarketPairs:    row.NumMarketPairs,
			CirculatingSupply: row.CirculatingSupply,
			TotalSupply:       row.TotalSupply,
			MaxSupply:         row.MaxSupply,
			DateAdded:         row.DateAdded.Time,
			LastUpdated:       row.LastUpdated.Time,
		}
		c.Quote.USD = row.quote()
		coins = append(coins, c)
	}
	return coins, nil
}

// WritePricing writes a pricing snapshot.
func WritePricing(w io.Writer, records []models.PricingRecord) error {
	rows := make([]*pricingRow, 0, len(records))
	for _, p := range records {
		rows = append(rows, &pricingRow{
			ID:            p.ID,
			Symbol:        p.Symbol,
			Name:          p.Name,
			CMCRank:       p.CMCRank,
			QuoteColumns:  toQuoteColumns(p.Quote),
			LoadedAt:      Timestamp{p.LoadedAt},
			IsTopCurrency: p.IsTopCurrency,
		})
	}
	return encode(w, &rows)
}

// ReadPricing reads a pricing snapshot.
func ReadPricing(r io.Reader) ([]models.PricingRecord, error) {
	var rows []*pricingRow
	if err := decode(r, &rows, "id", "symbol", "name", "quote.USD.price",
		"quote.USD.percent_change_24h", "quote.USD.last_updated", "LoadedAt"); err != nil {
		return nil, err
	}

	records := make([]models.PricingRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, models.PricingRecord{
			ID:            row.ID,
			Symbol:        row.Symbol,
			Name:          row.Name,
			CMCRank:       row.CMCRank,
			Quote:         row.quote(),
			LoadedAt:      row.LoadedAt.Time,
			IsTopCurrency: row.IsTopCurrency,
		})
	}
	return records, nil
}

// WritePerformance writes performance records in their published column order.
func WritePerformance(w io.Writer, records []models.PerformanceRecord) error {
	rows := make([]*performanceRow, 0, len(records))
	for _, p := range records {
		rows = append(rows, &performanceRow{
			Symbol:                    p.Symbol,
			Name:                      p.Name,
			Price:                     p.Price,
			PerformanceVsBTC:          p.PerformanceVsBTC,
			PricePercentChange24h:     p.PricePercentChange24h,
			BTCPercentChange24h:       p.BTCPercentChange24h,
			PriceLastUpdatedTimestamp: Timestamp{p.PriceLastUpdatedTimestamp},
			AnalysisTimestamp:         Timestamp{p.AnalysisTimestamp},
			LoadedAt:                  Timestamp{p.LoadedAt},
		})
	}
	return encode(w, &rows)
}

// ReadPerformance reads one performance history file.
func ReadPerformance(r io.Reader) ([]models.PerformanceRecord, error) {
	var rows []*performanceRow
	if err := decode(r, &rows, "symbol", "performance_vs_BTC"); err != nil {
		return nil, err
	}

	records := make([]models.PerformanceRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, models.PerformanceRecord{
			Symbol:                    row.Symbol,
			Name:                      row.Name,
			Price:                     row.Price,
			PerformanceVsBTC:          row.PerformanceVsBTC,
			PricePercentChange24h:     row.PricePercentChange24h,
			BTCPercentChange24h:       row.BTCPercentChange24h,
			PriceLastUpdatedTimestamp: row.PriceLastUpdatedTimestamp.Time,
			AnalysisTimestamp:         row.AnalysisTimestamp.Time,
			LoadedAt:                  row.LoadedAt.Time,
		})
	}
	return records, nil
}

// WriteAverages writes the aggregated averages.
func WriteAverages(w io.Writer, records []models.AveragePerformance) error {
	rows := make([]*averageRow, 0, len(records))
	for _, a := range records {
		rows = append(rows, &averageRow{
			Symbol:               a.Symbol,
			PerformanceVsBTC:     a.PerformanceVsBTC,
			CalculationTimestamp: Timestamp{a.CalculationTimestamp},
		})
	}
	return encode(w, &rows)
}

// ReadAverages reads an aggregated averages file.
func ReadAverages(r io.Reader) ([]models.AveragePerformance, error) {
	var rows []*averageRow
	if err := decode(r, &rows, "symbol", "performance_vs_BTC", "calculation_timestamp"); err != nil {
		return nil, err
	}

	records := make([]models.AveragePerformance, 0, len(rows))
	for _, row := range rows {
		records = append(records, models.AveragePerformance{
			Symbol:               row.Symbol,
			PerformanceVsBTC:     row.PerformanceVsBTC,
			CalculationTimestamp: row.CalculationTimestamp.Time,
		})
	}
	return records, nil
}

// ReadTracked reads the Symbol column of the tracked coins file, skipping
// blanks and repeats.
func ReadTracked(r io.Reader) (models.TrackedSet, error) {
	var rows []*trackedRow
	if err := decode(r, &rows, TrackedSymbolColumn); err != nil {
		return nil, fmt.Errorf("invalid tracked coins file: %w", err)
	}

	var tracked models.TrackedSet
	for _, row := range rows {
		symbol := strings.TrimSpace(row.Symbol)
		if symbol == "" || tracked.Contains(symbol) {
			continue
		}
		tracked = append(tracked, symbol)
	}
	return tracked, nil
}
