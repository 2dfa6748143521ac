package repository

import (
	"context"
	"testing"
	"time"

	"FinFactor/internal/domain/models"
	domrepo "FinFactor/internal/domain/repository"
	domsvc "FinFactor/internal/domain/service"
	"FinFactor/internal/services/features"
	"FinFactor/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	resolves, histories, indicators int
}

func (c *countingSource) Resolve(_ context.Context, asset string) (models.Symbol, error) {
	c.resolves++
	return models.Symbol{Ticker: asset, Venue: "OANDA", Code: "OANDA:" + asset}, nil
}

func zigzag(sym models.Symbol, bars int) []models.Bar {
	out := make([]models.Bar, 0, bars)
	for i := 0; i < bars; i++ {
		out = append(out, models.Bar{Time: day(i), Symbol: sym.String(), Close: 1 + float64(i%2)*0.5 + float64(i)*0.1})
	}
	return out
}

func (c *countingSource) History(_ context.Context, syms []models.Symbol, bars int, _ domrepo.Resolution) ([]models.Bar, error) {
	c.histories++
	return zigzag(syms[0], bars), nil
}

func (c *countingSource) Indicator(_ context.Context, ind domsvc.Indicator, sym models.Symbol, bars int, _ domrepo.Resolution) ([]models.IndicatorRecord, error) {
	c.indicators++
	return ind.Compute(zigzag(sym, bars)), nil
}

func TestCachedMarketData_ServesRepeatsFromCache(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()
	inner := &countingSource{}
	src := NewCachedMarketData(inner, mem, time.Hour, nil, nil)
	ctx := context.Background()

	sym, err := src.Resolve(ctx, "EURUSD")
	require.NoError(t, err)
	again, err := src.Resolve(ctx, "eurusd")
	require.NoError(t, err)
	assert.Equal(t, sym, again)
	assert.Equal(t, 1, inner.resolves)

	first, err := src.History(ctx, []models.Symbol{sym}, 5, domrepo.Daily)
	require.NoError(t, err)
	second, err := src.History(ctx, []models.Symbol{sym}, 5, domrepo.Daily)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.histories)

	_, err = src.History(ctx, []models.Symbol{sym}, 6, domrepo.Daily)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.histories, "a different bar count is a different key")

	rsi := features.NewRSI(2)
	a, err := src.Indicator(ctx, rsi, sym, 5, domrepo.Daily)
	require.NoError(t, err)
	b, err := src.Indicator(ctx, rsi, sym, 5, domrepo.Daily)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, inner.indicators)
}

func TestCachedMarketData_FreshDataBypassesAndRewrites(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()
	inner := &countingSource{}
	src := NewCachedMarketData(inner, mem, time.Hour, nil, nil)
	ctx := context.Background()
	fresh := domrepo.WithFreshData(ctx)
	assert.True(t, domrepo.FreshData(fresh))
	assert.False(t, domrepo.FreshData(ctx))

	sym, err := src.Resolve(ctx, "EURUSD")
	require.NoError(t, err)
	_, err = src.Resolve(fresh, "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.resolves)

	_, err = src.History(ctx, []models.Symbol{sym}, 5, domrepo.Daily)
	require.NoError(t, err)
	_, err = src.History(fresh, []models.Symbol{sym}, 5, domrepo.Daily)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.histories)

	rsi := features.NewRSI(2)
	_, err = src.Indicator(fresh, rsi, sym, 5, domrepo.Daily)
	require.NoError(t, err)
	_, err = src.Indicator(fresh, rsi, sym, 5, domrepo.Daily)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.indicators)

	// the fresh result was stored, plain reads hit it
	_, err = src.Indicator(ctx, rsi, sym, 5, domrepo.Daily)
	require.NoError(t, err)
	_, err = src.History(ctx, []models.Symbol{sym}, 5, domrepo.Daily)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.indicators)
	assert.Equal(t, 2, inner.histories)
}
