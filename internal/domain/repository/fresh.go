package repository

import "context"

type freshKey struct{}

// WithFreshData marks ctx so caching MarketData layers go to the upstream
// source and overwrite their entries with the result.
func WithFreshData(ctx context.Context) context.Context {
	return context.WithValue(ctx, freshKey{}, true)
}

// FreshData reports whether ctx asks for uncached market data.
func FreshData(ctx context.Context) bool {
	v, _ := ctx.Value(freshKey{}).(bool)
	return v
}
