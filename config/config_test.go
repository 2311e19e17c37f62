package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("COINMARKETCAP_API_KEY", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COINMARKETCAP_API_KEY")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("COINMARKETCAP_API_KEY", "secret")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.API.Key)
	assert.Equal(t, DefaultBaseURL, cfg.API.BaseURL)
	assert.Equal(t, DefaultPageSize, cfg.API.PageSize)
	assert.Equal(t, 3, cfg.API.RetryAttempts)
	assert.Equal(t, 20*time.Second, cfg.API.RetryDelay)
	assert.Equal(t, DefaultDataDir, cfg.Storage.DataDir)
	assert.Equal(t, DefaultTrackedPath, cfg.Storage.TrackedCoinsPath)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte(`
api:
  key: from-file
  page_size: 250
  retry_delay: 5s
storage:
  data_dir: /tmp/from-file
`)
	require.NoError(t, os.WriteFile(path, body, 0644))

	t.Setenv("COINMARKETCAP_API_KEY", "")
	t.Setenv("DATA_DIR", "/tmp/from-env")
	t.Setenv("CMC_RETRY_DELAY_SECS", "2")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.API.Key)
	assert.Equal(t, 250, cfg.API.PageSize)
	assert.Equal(t, 2*time.Second, cfg.API.RetryDelay)
	assert.Equal(t, "/tmp/from-env", cfg.Storage.DataDir)
}

func TestValidateRejectsBadPageSize(t *testing.T) {
	cfg := defaults()
	cfg.API.Key = "k"
	cfg.API.PageSize = 0
	assert.Error(t, cfg.Validate())
}

func TestMetricsTextfileFollowsDataDir(t *testing.T) {
	t.Setenv("COINMARKETCAP_API_KEY", "secret")
	t.Setenv("DATA_DIR", "/var/lib/cmc")
	t.Setenv("METRICS_TEXTFILE", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/var/lib/cmc", "pipeline.prom"), cfg.Metrics.Textfile)
}

func TestValidateBreakerMustOutlastRetries(t *testing.T) {
	cfg := defaults()
	cfg.API.Key = "k"
	cfg.API.RetryAttempts = 5
	cfg.API.BreakerThreshold = 5
	assert.ErrorContains(t, cfg.Validate(), "breaker threshold")

	cfg.API.BreakerThreshold = 6
	assert.NoError(t, cfg.Validate())
}

func TestLoadRejectsBreakerBelowRetries(t *testing.T) {
	t.Setenv("COINMARKETCAP_API_KEY", "secret")
	t.Setenv("CMC_RETRY_ATTEMPTS", "4")
	t.Setenv("CMC_BREAKER_THRESHOLD", "3")

	_, err := Load("")
	assert.Error(t, err)
}
