package models

import "time"

// Requests for factor HTTP endpoints. Defined in domain for consistency and reuse.

type FactorsRequest struct {
	Limit int `query:"limit" json:"limit" default:"0" validate:"gte=0,lte=100000"`
}

type PricesRequest struct {
	Limit int `query:"limit" json:"limit" default:"0" validate:"gte=0,lte=100000"`
}

type FactorDataRequest struct {
	MaxLoss   float64 `query:"max_loss" json:"max_loss" validate:"gte=0,lte=1"`
	Quantiles int     `query:"quantiles" json:"quantiles" validate:"omitempty,gte=2,lte=20"`
	Periods   string  `query:"periods" json:"periods"`
	Limit     int     `query:"limit" json:"limit" default:"0" validate:"gte=0,lte=100000"`
}

type TearSheetRequest struct {
	MaxLoss      float64 `query:"max_loss" json:"max_loss" validate:"gte=0,lte=1"`
	Quantiles    int     `query:"quantiles" json:"quantiles" validate:"omitempty,gte=2,lte=20"`
	Periods      string  `query:"periods" json:"periods"`
	LongShort    string  `query:"long_short" json:"long_short" default:"true" validate:"oneof=true false"`
	GroupNeutral bool    `query:"group_neutral" json:"group_neutral"`
	ByGroup      bool    `query:"by_group" json:"by_group"`
	Format       string  `query:"format" json:"format" default:"json" validate:"oneof=json text"`
}

// PriceRow is one date of the wide close table.
type PriceRow struct {
	Date   time.Time          `json:"date"`
	Closes map[string]float64 `json:"closes"`
}

// BuildInfo describes the factor table currently served.
type BuildInfo struct {
	BuiltAt time.Time `json:"built_at"`
	Assets  []string  `json:"assets"`
	Rows    int       `json:"rows"`
	Mean    float64   `json:"band_mean"`
	Std     float64   `json:"band_std"`
}
