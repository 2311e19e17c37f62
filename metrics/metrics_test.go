package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordStageCountsErrors(t *testing.T) {
	m := NewMetrics()
	m.RecordStage("fetch", time.Second, nil)
	m.RecordStage("fetch", time.Second, errors.New("boom"))

	families, err := m.Gatherer().Gather()
	require.NoError(t, err)

	found := map[string]float64{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			switch f.GetName() {
			case "stage_errors_total":
				found[f.GetName()] = metric.GetCounter().GetValue()
			case "stage_duration_seconds":
				found[f.GetName()] = float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	assert.Equal(t, 1.0, found["stage_errors_total"])
	assert.Equal(t, 2.0, found["stage_duration_seconds"])
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.AddCoinsFetched(42)
	m.AddRowsWritten("pricing", 3)

	path := filepath.Join(t.TempDir(), "pipeline.prom")
	require.NoError(t, m.WriteTextfile(path))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "coins_fetched_total 42")
	assert.Contains(t, string(body), `rows_written_total{artifact="pricing"} 3`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AddCoinsFetched(1)
		m.IncrementPagesFailed()
		m.RecordStage("x", time.Second, nil)
		m.AddRowsWritten("x", 1)
		m.MarkSuccess(time.Now())
		assert.NoError(t, m.WriteTextfile("ignored"))
	})
}
