package models

import (
	"fmt"
	"time"
)

// AlignOptions configures forward-return alignment and quantile binning.
type AlignOptions struct {
	Periods      []int
	Quantiles    int
	MaxLoss      float64
	FilterZScore float64           // 0 disables the outlier mask
	Groups       map[string]string // asset -> group label
}

// TearSheetOptions mirrors the display switches of a returns tear sheet.
type TearSheetOptions struct {
	LongShort    bool `json:"long_short"`
	GroupNeutral bool `json:"group_neutral"`
	ByGroup      bool `json:"by_group"`
}

// FactorDatum is one merged row: factor, its quantile and forward returns.
type FactorDatum struct {
	Date     time.Time `json:"date"`
	Asset    string    `json:"asset"`
	Factor   float64   `json:"factor"`
	Quantile int       `json:"factor_quantile"`
	Group    string    `json:"group,omitempty"`
	Returns  []float64 `json:"returns"` // index-aligned with FactorData.Periods
}

// LossSummary accounts for rows dropped while cleaning factor data.
type LossSummary struct {
	Initial        int     `json:"initial"`
	ForwardReturns int     `json:"dropped_forward_returns"`
	Binning        int     `json:"dropped_binning"`
	Total          float64 `json:"total_fraction"`
}

// Kept is the number of surviving rows.
func (l LossSummary) Kept() int { return l.Initial - l.ForwardReturns - l.Binning }

// FactorData is the clean, aligned table handed to the reporting stage.
type FactorData struct {
	Periods   []int         `json:"periods"`
	Quantiles int           `json:"quantiles"`
	Rows      []FactorDatum `json:"rows"`
	Loss      LossSummary   `json:"loss"`
}

// PeriodLabel renders a holding period the way reports name it ("5D").
func PeriodLabel(period int) string { return fmt.Sprintf("%dD", period) }

// QuantileReturn is the mean forward return of one quantile bucket.
type QuantileReturn struct {
	Quantile int     `json:"quantile"`
	Mean     float64 `json:"mean"`
	StdErr   float64 `json:"std_err"`
	Count    int     `json:"count"`
}

// DatedValue is one point of a date-indexed series.
type DatedValue struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// PeriodReturns holds the return diagnostics of a single holding period.
type PeriodReturns struct {
	Period          int              `json:"period"`
	Label           string           `json:"label"`
	AnnAlpha        float64          `json:"ann_alpha"`
	Beta            float64          `json:"beta"`
	QuantileReturns []QuantileReturn `json:"quantile_returns"`
	SpreadMean      float64          `json:"spread_mean"`
	SpreadStdErr    float64          `json:"spread_std_err"`
	MeanIC          float64          `json:"mean_ic"`
	ICStd           float64          `json:"ic_std"`
	RiskAdjustedIC  float64          `json:"risk_adjusted_ic"`
	FactorReturns   []DatedValue     `json:"factor_returns"`
}

// GroupQuantileReturns holds per-group quantile returns for one period.
type GroupQuantileReturns struct {
	Group           string           `json:"group"`
	Period          int              `json:"period"`
	QuantileReturns []QuantileReturn `json:"quantile_returns"`
}

// ReturnsTearSheet is the full returns report.
type ReturnsTearSheet struct {
	Options TearSheetOptions       `json:"options"`
	Periods []PeriodReturns        `json:"periods"`
	ByGroup []GroupQuantileReturns `json:"by_group,omitempty"`
	Loss    LossSummary            `json:"loss"`
}
