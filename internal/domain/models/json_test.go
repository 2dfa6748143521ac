package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodReturnsJSON_NaNBecomesNull(t *testing.T) {
	pr := PeriodReturns{
		Period:   5,
		Label:    "5D",
		AnnAlpha: math.NaN(),
		Beta:     0.5,
		QuantileReturns: []QuantileReturn{
			{Quantile: 1, Mean: 0.001, StdErr: math.Inf(1), Count: 3},
		},
		FactorReturns: []DatedValue{{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Value: math.NaN()}},
	}

	b, err := json.Marshal(pr)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Nil(t, got["ann_alpha"])
	assert.Equal(t, 0.5, got["beta"])
	assert.Equal(t, "5D", got["label"])

	q := got["quantile_returns"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, 0.001, q["mean"])
	assert.Nil(t, q["std_err"])
	assert.Equal(t, float64(3), q["count"])

	fr := got["factor_returns"].([]interface{})[0].(map[string]interface{})
	assert.Nil(t, fr["value"])
	assert.Equal(t, "2024-01-02T00:00:00Z", fr["date"])
}

func TestFactorRowJSON(t *testing.T) {
	r := FactorRow{FactorKey: FactorKey{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Asset: "EURUSD"}, Value: 48.5}
	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-01-02T00:00:00Z","asset":"EURUSD","value":48.5}`, string(b))
}
