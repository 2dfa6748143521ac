package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FINNHUB_API_KEY", "k")
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, []string{"EURUSD", "USDJPY", "GBPUSD", "USDCHF", "AUDUSD", "USDCAD", "NZDUSD"}, c.Factor.Assets)
	assert.Equal(t, 360, c.Factor.Lookback)
	assert.Equal(t, 30, c.Factor.Period)
	assert.Equal(t, []int{1, 5, 10}, c.Analysis.Periods)
	assert.Equal(t, 5, c.Analysis.Quantiles)
	assert.InDelta(t, 0.1, c.Analysis.MaxLoss, 1e-12)
	assert.True(t, c.Analysis.LongShort)
	assert.Equal(t, 15*time.Second, c.Finnhub.Timeout)
	assert.Equal(t, "none", c.Sink)
	assert.Equal(t, "k", c.Finnhub.APIKey)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
environment: production
source: clickhouse
factor:
  assets: [EURUSD, GBPUSD]
  lookback: 120
  period: 14
analysis:
  quantiles: 3
  max_loss: 0.35
clickhouse:
  host: ch.internal
`)
	t.Setenv("SINK", "kafka")
	t.Setenv("KAFKA_BROKERS", "b1:9092, b2:9092")
	t.Setenv("LOG_LEVEL", "DEBUG")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, "clickhouse", c.Source)
	assert.Equal(t, []string{"EURUSD", "GBPUSD"}, c.Factor.Assets)
	assert.Equal(t, 120, c.Factor.Lookback)
	assert.Equal(t, 14, c.Factor.Period)
	assert.Equal(t, 3, c.Analysis.Quantiles)
	assert.Equal(t, "ch.internal", c.ClickHouse.Host)
	assert.Equal(t, 9000, c.ClickHouse.Port)
	assert.Equal(t, "kafka", c.Sink)
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"period not below lookback": "source: clickhouse\nfactor:\n  lookback: 30\n  period: 30\n",
		"unknown sink":              "source: clickhouse\nsink: s3\n",
		"too few quantiles":         "source: clickhouse\nanalysis:\n  quantiles: 1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_FinnhubNeedsKey(t *testing.T) {
	t.Setenv("FINNHUB_API_KEY", "")
	_, err := Load(writeConfig(t, "source: finnhub\n"))
	assert.ErrorContains(t, err, "api_key")
}

func TestLoad_ExplicitFalseSurvivesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, "source: clickhouse\nanalysis:\n  long_short: false\n"))
	require.NoError(t, err)
	assert.False(t, c.Analysis.LongShort)
}
