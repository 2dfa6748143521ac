package repository

import (
	"context"

	"FinFactor/internal/domain/models"
	"FinFactor/internal/domain/service"
)

// MarketData is the upstream data-access collaborator.
type MarketData interface {
	// Resolve maps an asset identifier to a venue-qualified handle.
	Resolve(ctx context.Context, asset string) (models.Symbol, error)
	// History returns the latest bars for every symbol, indexed by (time, symbol).
	History(ctx context.Context, symbols []models.Symbol, bars int, res Resolution) ([]models.Bar, error)
	// Indicator computes ind over the latest bars of one symbol.
	Indicator(ctx context.Context, ind service.Indicator, symbol models.Symbol, bars int, res Resolution) ([]models.IndicatorRecord, error)
}

// FactorSink persists clean factor data produced by a run.
type FactorSink interface {
	Write(ctx context.Context, runID string, data *models.FactorData) error
	Close() error
}

type Metrics interface {
	RecordFetch(source, kind string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordRows(table string, n int)
	RecordLoss(fraction float64)
}
