package analysis

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"FinFactor/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var assets4 = []string{"AUDUSD", "EURUSD", "GBPUSD", "USDJPY"}

func day(i int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

// fixture builds n dates x 4 assets; asset k has factor k+1 and its close
// grows by (k+1)% per day.
func fixture(n int) (models.FactorTable, models.PriceTable) {
	var rows []models.FactorRow
	var points []models.PricePoint
	for i := 0; i < n; i++ {
		for k, a := range assets4 {
			rows = append(rows, models.FactorRow{
				FactorKey: models.FactorKey{Date: day(i), Asset: a},
				Value:     float64(k + 1),
			})
			points = append(points, models.PricePoint{
				Date:  day(i),
				Asset: a,
				Close: 100 * math.Pow(1+0.01*float64(k+1), float64(i)),
			})
		}
	}
	return models.NewFactorTable(rows), models.NewPriceTable(points)
}

func TestQuantileEdges(t *testing.T) {
	edges, ok := quantileEdges([]float64{5, 3, 1, 4, 2}, 5)
	require.True(t, ok)
	want := []float64{1, 1.8, 2.6, 3.4, 4.2, 5}
	for i := range want {
		assert.InDelta(t, want[i], edges[i], 1e-12)
	}

	for x, label := range map[float64]int{1: 1, 2: 2, 3: 3, 4: 4, 5: 5} {
		assert.Equal(t, label, binOf(edges, x), "x=%v", x)
	}

	_, ok = quantileEdges([]float64{1, 1, 1, 2}, 4)
	assert.False(t, ok, "repeated edges must be rejected")

	_, ok = quantileEdges([]float64{7}, 1)
	assert.False(t, ok)
}

func TestBinOf_RightClosed(t *testing.T) {
	edges := []float64{0, 1, 2}
	assert.Equal(t, 1, binOf(edges, 0))
	assert.Equal(t, 1, binOf(edges, 1))
	assert.Equal(t, 2, binOf(edges, 1.5))
	assert.Equal(t, 2, binOf(edges, 2))
}

func TestMaskOutliers(t *testing.T) {
	cube := [][]float64{{0.01}, {0.01}, {0.01}, {0.01}, {10}, {math.NaN()}}
	maskOutliers(cube, 1, 1)
	assert.True(t, math.IsNaN(cube[4][0]))
	assert.Equal(t, 0.01, cube[0][0])
}

func TestAlign_ForwardReturnsAndQuantiles(t *testing.T) {
	factors, prices := fixture(6)
	a := NewAligner()

	data, err := a.Align(context.Background(), factors, prices, models.AlignOptions{
		Periods:      []int{1, 2},
		Quantiles:    2,
		MaxLoss:      0.5,
		FilterZScore: 20,
	})
	require.NoError(t, err)

	// the last two dates lack a 2-bar forward return
	assert.Equal(t, 24, data.Loss.Initial)
	assert.Equal(t, 8, data.Loss.ForwardReturns)
	assert.Equal(t, 0, data.Loss.Binning)
	assert.Equal(t, 16, data.Loss.Kept())
	assert.InDelta(t, 8.0/24.0, data.Loss.Total, 1e-12)
	require.Len(t, data.Rows, 16)

	first := data.Rows[0]
	assert.Equal(t, day(0), first.Date)
	assert.Equal(t, "AUDUSD", first.Asset)
	assert.InDelta(t, 0.01, first.Returns[0], 1e-12)
	assert.InDelta(t, 1.01*1.01-1, first.Returns[1], 1e-12)

	for _, r := range data.Rows {
		want := 1
		if r.Factor > 2.5 {
			want = 2
		}
		assert.Equal(t, want, r.Quantile, "%s %s", r.Date, r.Asset)
	}
}

func TestAlign_MaxLossExceeded(t *testing.T) {
	factors, prices := fixture(6)
	_, err := NewAligner().Align(context.Background(), factors, prices, models.AlignOptions{
		Periods:   []int{1},
		Quantiles: 2,
		MaxLoss:   0.1,
	})

	var mle *MaxLossExceededError
	require.True(t, errors.As(err, &mle))
	assert.InDelta(t, 4.0/24.0, mle.Loss, 1e-12)
	assert.Equal(t, "max_loss (10.0%) exceeded 16.7%, consider increasing it.", err.Error())
}

func TestAlign_BinningLossOnFlatDate(t *testing.T) {
	_, prices := fixture(5)
	var rows []models.FactorRow
	for i := 0; i < 5; i++ {
		for k, a := range assets4 {
			v := float64(k + 1)
			if i == 1 {
				v = 50
			}
			rows = append(rows, models.FactorRow{FactorKey: models.FactorKey{Date: day(i), Asset: a}, Value: v})
		}
	}

	data, err := NewAligner().Align(context.Background(), models.NewFactorTable(rows), prices, models.AlignOptions{
		Periods:   []int{1},
		Quantiles: 2,
		MaxLoss:   0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, data.Loss.ForwardReturns)
	assert.Equal(t, 4, data.Loss.Binning)
	for _, r := range data.Rows {
		assert.NotEqual(t, day(1), r.Date)
	}
}

func TestAlign_UnmatchedFactorRowsAreLoss(t *testing.T) {
	factors, prices := fixture(6)
	extra := factors.Rows()
	extra = append(extra, models.FactorRow{FactorKey: models.FactorKey{Date: day(40), Asset: "EURUSD"}, Value: 3})
	extra = append(extra, models.FactorRow{FactorKey: models.FactorKey{Date: day(0), Asset: "NZDUSD"}, Value: math.NaN()})

	data, err := NewAligner().Align(context.Background(), models.NewFactorTable(extra), prices, models.AlignOptions{
		Periods:   []int{1},
		Quantiles: 2,
		MaxLoss:   0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, 26, data.Loss.Initial)
	assert.Equal(t, 6, data.Loss.ForwardReturns)
}

func TestAlign_Errors(t *testing.T) {
	factors, prices := fixture(4)
	ctx := context.Background()
	a := NewAligner()

	_, err := a.Align(ctx, models.NewFactorTable(nil), prices, models.AlignOptions{})
	assert.ErrorIs(t, err, ErrEmptyFactor)

	shifted := models.NewPriceTable([]models.PricePoint{{Date: day(100), Asset: "EURUSD", Close: 1}})
	_, err = a.Align(ctx, factors, shifted, models.AlignOptions{MaxLoss: 1})
	assert.ErrorIs(t, err, ErrIndexMismatch)

	_, err = a.Align(ctx, factors, prices, models.AlignOptions{Periods: []int{0}})
	assert.ErrorIs(t, err, ErrBadOptions)

	_, err = a.Align(ctx, factors, prices, models.AlignOptions{MaxLoss: 1.5})
	assert.ErrorIs(t, err, ErrBadOptions)

	_, err = a.Align(ctx, factors, prices, models.AlignOptions{
		MaxLoss: 1,
		Groups:  map[string]string{"EURUSD": "usd_quote"},
	})
	assert.ErrorIs(t, err, ErrBadOptions)
	assert.ErrorContains(t, err, "AUDUSD")
}

func TestAlign_GroupsAttached(t *testing.T) {
	factors, prices := fixture(4)
	groups := map[string]string{"AUDUSD": "a", "EURUSD": "a", "GBPUSD": "b", "USDJPY": "b"}
	data, err := NewAligner().Align(context.Background(), factors, prices, models.AlignOptions{
		Periods:   []int{1},
		Quantiles: 2,
		MaxLoss:   0.5,
		Groups:    groups,
	})
	require.NoError(t, err)
	for _, r := range data.Rows {
		assert.Equal(t, groups[r.Asset], r.Group)
	}
}

func TestAlign_CancelledContext(t *testing.T) {
	factors, prices := fixture(4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewAligner().Align(ctx, factors, prices, models.AlignOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}
