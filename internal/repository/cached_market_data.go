package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"FinFactor/internal/domain/models"
	domrepo "FinFactor/internal/domain/repository"
	domsvc "FinFactor/internal/domain/service"
	"FinFactor/pkg/cache"
	applogger "FinFactor/pkg/logger"
)

// CachedMarketData memoizes another MarketData. Cache failures are logged
// and fall through to the wrapped source. A context marked with
// domrepo.WithFreshData skips lookups but still stores the fresh result.
type CachedMarketData struct {
	inner   domrepo.MarketData
	cache   cache.Service
	ttl     time.Duration
	l       *applogger.Logger
	metrics domrepo.Metrics
}

func NewCachedMarketData(inner domrepo.MarketData, c cache.Service, ttl time.Duration, l *applogger.Logger, m domrepo.Metrics) *CachedMarketData {
	if l == nil {
		l = applogger.Nop()
	}
	return &CachedMarketData{inner: inner, cache: c, ttl: ttl, l: l, metrics: m}
}

func (c *CachedMarketData) Resolve(ctx context.Context, asset string) (models.Symbol, error) {
	key := cache.GenerateKeyWithParams("resolve", strings.ToUpper(asset))
	var sym models.Symbol
	if c.lookup(ctx, key, "resolve", &sym) {
		return sym, nil
	}
	sym, err := c.inner.Resolve(ctx, asset)
	if err != nil {
		return models.Symbol{}, err
	}
	c.store(ctx, key, sym)
	return sym, nil
}

func (c *CachedMarketData) History(ctx context.Context, symbols []models.Symbol, bars int, res domrepo.Resolution) ([]models.Bar, error) {
	codes := make([]string, len(symbols))
	for i, s := range symbols {
		codes[i] = s.Code
	}
	key := cache.GenerateKeyWithParams("history", cache.HashKey(strings.Join(codes, ",")), bars, res)
	var out []models.Bar
	if c.lookup(ctx, key, "history", &out) {
		return out, nil
	}
	out, err := c.inner.History(ctx, symbols, bars, res)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, out)
	return out, nil
}

func (c *CachedMarketData) Indicator(ctx context.Context, ind domsvc.Indicator, sym models.Symbol, bars int, res domrepo.Resolution) ([]models.IndicatorRecord, error) {
	key := cache.GenerateKeyWithParams("indicator", ind.Name(), sym.Code, bars, res)
	var out []models.IndicatorRecord
	if c.lookup(ctx, key, "indicator", &out) {
		return out, nil
	}
	out, err := c.inner.Indicator(ctx, ind, sym, bars, res)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, out)
	return out, nil
}

func (c *CachedMarketData) lookup(ctx context.Context, key, kind string, dest interface{}) bool {
	if domrepo.FreshData(ctx) {
		return false
	}
	err := c.cache.Get(ctx, key, dest)
	switch {
	case err == nil:
		if c.metrics != nil {
			c.metrics.RecordFetch("cache", kind)
		}
		return true
	case errors.Is(err, cache.ErrCacheMiss):
	default:
		c.l.Warn("cache get failed", applogger.String("key", key), applogger.Error(err))
	}
	return false
}

func (c *CachedMarketData) store(ctx context.Context, key string, v interface{}) {
	if err := c.cache.Set(ctx, key, v, c.ttl); err != nil {
		c.l.Warn("cache set failed", applogger.String("key", key), applogger.Error(err))
	}
}

var _ domrepo.MarketData = (*CachedMarketData)(nil)
