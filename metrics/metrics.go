package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters of one pipeline process. A batch job has no
// scrape endpoint, so the registry is flushed to a node_exporter textfile.
// All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	coinsFetched  prometheus.Counter
	pagesFailed   prometheus.Counter
	stageDuration *prometheus.HistogramVec
	stageErrors   *prometheus.CounterVec
	rowsWritten   *prometheus.CounterVec
	lastSuccess   prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		coinsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coins_fetched_total",
			Help: "The total number of listings retrieved from the API",
		}),
		pagesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pages_failed_total",
			Help: "Listing pages abandoned after retries were exhausted",
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stage_duration_seconds",
			Help:    "Time spent in each pipeline stage",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		stageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stage_errors_total",
			Help: "Total number of failed stages by name",
		}, []string{"stage"}),
		rowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rows_written_total",
			Help: "Rows persisted per artifact",
		}, []string{"artifact"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "last_success_timestamp_seconds",
			Help: "Unix time of the last fully successful run",
		}),
	}
	m.registry.MustRegister(
		m.coinsFetched,
		m.pagesFailed,
		m.stageDuration,
		m.stageErrors,
		m.rowsWritten,
		m.lastSuccess,
	)
	return m
}

func (m *Metrics) AddCoinsFetched(n int) {
	if m == nil {
		return
	}
	m.coinsFetched.Add(float64(n))
}

func (m *Metrics) IncrementPagesFailed() {
	if m == nil {
		return
	}
	m.pagesFailed.Inc()
}

func (m *Metrics) RecordStage(stage string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
	if err != nil {
		m.stageErrors.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) AddRowsWritten(artifact string, n int) {
	if m == nil {
		return
	}
	m.rowsWritten.WithLabelValues(artifact).Add(float64(n))
}

func (m *Metrics) MarkSuccess(at time.Time) {
	if m == nil {
		return
	}
	m.lastSuccess.Set(float64(at.Unix()))
}

// Gatherer exposes the registry, mainly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile atomically writes all metrics in text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
