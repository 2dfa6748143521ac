package analysis

import (
	"bytes"
	"context"
	"math"
	"testing"

	"FinFactor/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linearData builds clean factor data where the period-j return of asset k on
// date d is scale[j]*(k+1) + 0.01*d. Assets 0,1 sit in quantile 1 / group "a",
// assets 2,3 in quantile 2 / group "b".
func linearData(dates int, periods []int, scale []float64) *models.FactorData {
	data := &models.FactorData{Periods: periods, Quantiles: 2}
	for d := 0; d < dates; d++ {
		for k, a := range assets4 {
			rets := make([]float64, len(periods))
			for j := range periods {
				rets[j] = scale[j]*float64(k+1) + 0.01*float64(d)
			}
			q, g := 1, "a"
			if k >= 2 {
				q, g = 2, "b"
			}
			data.Rows = append(data.Rows, models.FactorDatum{
				Date:     day(d),
				Asset:    a,
				Factor:   float64(k + 1),
				Quantile: q,
				Group:    g,
				Returns:  rets,
			})
		}
	}
	data.Loss = models.LossSummary{Initial: len(data.Rows)}
	return data
}

func TestRanks_AverageTies(t *testing.T) {
	assert.Equal(t, []float64{2, 3.5, 3.5, 1}, ranks([]float64{10, 20, 20, 5}))
}

func TestSpearman(t *testing.T) {
	assert.InDelta(t, 1, spearman([]float64{1, 2, 3, 4}, []float64{10, 20, 35, 100}), 1e-12)
	assert.InDelta(t, -1, spearman([]float64{1, 2, 3, 4}, []float64{4, 3, 2, 1}), 1e-12)
	assert.True(t, math.IsNaN(spearman([]float64{1, 2}, []float64{5, 5})))
}

func TestFactorWeights(t *testing.T) {
	rows := linearData(1, []int{1}, []float64{0.001}).Rows

	w := factorWeights(rows, true, false)
	want := []float64{-0.375, -0.125, 0.125, 0.375}
	for i := range want {
		assert.InDelta(t, want[i], w[i], 1e-12)
	}

	w = factorWeights(rows, true, true)
	want = []float64{-0.25, 0.25, -0.25, 0.25}
	for i := range want {
		assert.InDelta(t, want[i], w[i], 1e-12)
	}

	w = factorWeights(rows, false, false)
	assert.InDelta(t, 0.1, w[0], 1e-12)
	assert.InDelta(t, 0.4, w[3], 1e-12)
}

func TestReturnsTearSheet_LongShort(t *testing.T) {
	data := linearData(10, []int{1}, []float64{0.001})
	sheet, err := NewReporter().ReturnsTearSheet(context.Background(), data, models.TearSheetOptions{LongShort: true})
	require.NoError(t, err)
	require.Len(t, sheet.Periods, 1)

	p := sheet.Periods[0]
	assert.Equal(t, "1D", p.Label)
	// demeaned weights cancel the market move: the portfolio earns 0.00125 every day
	assert.InDelta(t, 0, p.Beta, 1e-9)
	assert.InDelta(t, math.Pow(1.00125, 252)-1, p.AnnAlpha, 1e-6)
	require.Len(t, p.FactorReturns, 10)
	assert.InDelta(t, 0.00125, p.FactorReturns[3].Value, 1e-12)

	require.Len(t, p.QuantileReturns, 2)
	assert.Equal(t, 1, p.QuantileReturns[0].Quantile)
	assert.InDelta(t, -0.001, p.QuantileReturns[0].Mean, 1e-12)
	assert.InDelta(t, 0.001, p.QuantileReturns[1].Mean, 1e-12)
	assert.InDelta(t, 0, p.QuantileReturns[1].StdErr, 1e-12)
	assert.Equal(t, 10, p.QuantileReturns[1].Count)

	assert.InDelta(t, 0.002, p.SpreadMean, 1e-12)
	assert.InDelta(t, 0, p.SpreadStdErr, 1e-12)

	assert.InDelta(t, 1, p.MeanIC, 1e-12)
	assert.InDelta(t, 0, p.ICStd, 1e-12)
	assert.Empty(t, sheet.ByGroup)
}

func TestReturnsTearSheet_NotDemeaned(t *testing.T) {
	data := linearData(10, []int{1}, []float64{0.001})
	sheet, err := NewReporter().ReturnsTearSheet(context.Background(), data, models.TearSheetOptions{LongShort: false})
	require.NoError(t, err)

	// mean of 0.0015 + 0.01*d over d = 0..9
	assert.InDelta(t, 0.0465, sheet.Periods[0].QuantileReturns[0].Mean, 1e-12)
}

func TestReturnsTearSheet_RateOfReturnConversion(t *testing.T) {
	data := linearData(10, []int{1, 5}, []float64{0.001, 0.002})
	sheet, err := NewReporter().ReturnsTearSheet(context.Background(), data, models.TearSheetOptions{LongShort: true})
	require.NoError(t, err)
	require.Len(t, sheet.Periods, 2)

	p5 := sheet.Periods[1]
	assert.Equal(t, "5D", p5.Label)
	assert.InDelta(t, math.Pow(1.002, 0.2)-1, p5.QuantileReturns[1].Mean, 1e-12)
	assert.InDelta(t, math.Pow(0.998, 0.2)-1, p5.QuantileReturns[0].Mean, 1e-12)
	assert.InDelta(t, math.Pow(1.0025, 252.0/5)-1, p5.AnnAlpha, 1e-6)
}

func TestReturnsTearSheet_ByGroup(t *testing.T) {
	data := linearData(6, []int{1}, []float64{0.001})
	sheet, err := NewReporter().ReturnsTearSheet(context.Background(), data, models.TearSheetOptions{LongShort: true, ByGroup: true})
	require.NoError(t, err)
	require.Len(t, sheet.ByGroup, 2)

	a, b := sheet.ByGroup[0], sheet.ByGroup[1]
	assert.Equal(t, "a", a.Group)
	assert.Equal(t, "b", b.Group)
	require.Len(t, a.QuantileReturns, 1)
	assert.Equal(t, 1, a.QuantileReturns[0].Quantile)
	assert.InDelta(t, -0.001, a.QuantileReturns[0].Mean, 1e-12)
	assert.InDelta(t, 0.001, b.QuantileReturns[0].Mean, 1e-12)
}

func TestReturnsTearSheet_GroupNeutral(t *testing.T) {
	data := linearData(6, []int{1}, []float64{0.001})
	sheet, err := NewReporter().ReturnsTearSheet(context.Background(), data, models.TearSheetOptions{LongShort: true, GroupNeutral: true})
	require.NoError(t, err)

	// within each group the factor spread is 1, so weights are -0.25/+0.25
	// and the portfolio earns 0.25*0.001*2 per day
	p := sheet.Periods[0]
	assert.InDelta(t, 0.0005, p.FactorReturns[0].Value, 1e-12)
	// returns demeaned per group: every bucket averages zero
	for _, q := range p.QuantileReturns {
		assert.InDelta(t, 0, q.Mean, 1e-12)
	}
}

func TestReturnsTearSheet_Empty(t *testing.T) {
	_, err := NewReporter().ReturnsTearSheet(context.Background(), &models.FactorData{Periods: []int{1}}, models.TearSheetOptions{})
	assert.ErrorIs(t, err, ErrNoFactorData)
}

func TestRender(t *testing.T) {
	data := linearData(10, []int{1, 5}, []float64{0.001, 0.002})
	sheet, err := NewReporter().ReturnsTearSheet(context.Background(), data, models.TearSheetOptions{LongShort: true, ByGroup: true})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sheet))
	out := buf.String()
	for _, want := range []string{
		"Returns Analysis", "1D", "5D", "Ann. alpha", "beta",
		"Mean Period Wise Spread (bps)", "20.000", "Mean Return by Quantile (bps)",
		"Mean Return by Group (bps)", "rows: 40 initial",
	} {
		assert.Contains(t, out, want)
	}

	buf.Reset()
	require.NoError(t, RenderFactorDataHead(&buf, data, 3))
	assert.Contains(t, buf.String(), "factor_quantile")
	assert.Contains(t, buf.String(), "2024-01-01")
}
