package service

import (
	"context"

	"FinFactor/internal/domain/models"
)

// Indicator turns a bar series into indicator readings.
type Indicator interface {
	Name() string
	// WarmUp is the number of bars consumed before the first reading.
	WarmUp() int
	Compute(bars []models.Bar) []models.IndicatorRecord
}

// Aligner computes forward returns, drops unalignable rows and buckets the
// factor into quantiles.
type Aligner interface {
	Align(ctx context.Context, factors models.FactorTable, prices models.PriceTable, opts models.AlignOptions) (*models.FactorData, error)
}

// Reporter produces the returns diagnostics for clean factor data.
type Reporter interface {
	ReturnsTearSheet(ctx context.Context, data *models.FactorData, opts models.TearSheetOptions) (*models.ReturnsTearSheet, error)
}
