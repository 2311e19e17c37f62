package models

import "time"

// TopCurrencyRank is the highest rank still flagged as a top currency.
const TopCurrencyRank = 10

// PricingRecord is one tracked coin in a pricing snapshot.
type PricingRecord struct {
	ID            int64
	Symbol        string
	Name          string
	CMCRank       int
	Quote         USDQuote
	LoadedAt      time.Time
	IsTopCurrency bool
}

// PerformanceRecord is a coin's 24h move measured against the baseline.
type PerformanceRecord struct {
	Symbol                    string
	Name                      string
	Price                     float64
	PerformanceVsBTC          float64
	PricePercentChange24h     float64
	BTCPercentChange24h       float64
	PriceLastUpdatedTimestamp time.Time
	AnalysisTimestamp         time.Time
	LoadedAt                  time.Time
}

// AveragePerformance is the all-time mean PerformanceVsBTC of a symbol.
type AveragePerformance struct {
	Symbol               string
	PerformanceVsBTC     float64
	CalculationTimestamp time.Time
}
