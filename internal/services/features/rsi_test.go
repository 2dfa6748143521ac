package features

import (
	"math"
	"testing"
	"time"

	"FinFactor/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bars(closes ...float64) []models.Bar {
	out := make([]models.Bar, len(closes))
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		out[i] = models.Bar{Time: t0.AddDate(0, 0, i), Symbol: "EURUSD OANDA", Close: c}
	}
	return out
}

func TestRSI_WilderSmoothing(t *testing.T) {
	in := bars(1, 2, 1, 2)
	// shuffled input is sorted by time before computing
	in[0], in[3] = in[3], in[0]

	recs := NewRSI(2).Compute(in)
	require.Len(t, recs, 2)

	assert.Equal(t, "EURUSD OANDA", recs[0].Asset)
	assert.Equal(t, bars(1, 2, 1, 2)[2].Time, recs[0].Time)
	assert.InDelta(t, 0.5, recs[0].AverageGain, 1e-12)
	assert.InDelta(t, 0.5, recs[0].AverageLoss, 1e-12)
	assert.InDelta(t, 50, recs[0].Current, 1e-12)

	assert.InDelta(t, 0.75, recs[1].AverageGain, 1e-12)
	assert.InDelta(t, 0.25, recs[1].AverageLoss, 1e-12)
	assert.InDelta(t, 75, recs[1].Current, 1e-12)
}

func TestRSI_NoLosses(t *testing.T) {
	recs := NewRSI(3).Compute(bars(1, 2, 3, 4, 5))
	require.Len(t, recs, 2)
	for _, r := range recs {
		assert.Equal(t, 100.0, r.Current)
	}
}

func TestRSI_ShortSeries(t *testing.T) {
	r := NewRSI(30)
	assert.Equal(t, "rsi_30", r.Name())
	assert.Equal(t, 30, r.WarmUp())
	assert.Nil(t, r.Compute(bars(1, 2, 3)))
	assert.Nil(t, NewRSI(0).Compute(bars(1, 2, 3)))
}

func TestSimpleReturn(t *testing.T) {
	assert.InDelta(t, 0.1, SimpleReturn(100, 110), 1e-12)
	assert.True(t, math.IsNaN(SimpleReturn(0, 110)))
	assert.True(t, math.IsNaN(SimpleReturn(100, math.NaN())))
	assert.True(t, math.IsNaN(SimpleReturn(math.Inf(1), 1)))
}

func TestRateConversions(t *testing.T) {
	assert.Equal(t, 0.05, RateOfReturn(0.05, 1, 1))
	assert.InDelta(t, math.Pow(1.05, 0.2)-1, RateOfReturn(0.05, 5, 1), 1e-15)
	assert.InDelta(t, 0.01/math.Sqrt(10), StdConversion(0.01, 10, 1), 1e-15)
	assert.InDelta(t, math.Pow(1.001, 252)-1, AnnualizeAlpha(0.001, 1), 1e-12)
	assert.InDelta(t, math.Pow(1.001, 252.0/5)-1, AnnualizeAlpha(0.001, 5), 1e-12)
}
