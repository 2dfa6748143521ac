package models

import (
	"encoding/json"
	"math"
)

// nullable maps NaN and ±Inf to JSON null.
func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func (q QuantileReturn) MarshalJSON() ([]byte, error) {
	type alias QuantileReturn
	return json.Marshal(struct {
		alias
		Mean   *float64 `json:"mean"`
		StdErr *float64 `json:"std_err"`
	}{alias(q), nullable(q.Mean), nullable(q.StdErr)})
}

func (d DatedValue) MarshalJSON() ([]byte, error) {
	type alias DatedValue
	return json.Marshal(struct {
		alias
		Value *float64 `json:"value"`
	}{alias(d), nullable(d.Value)})
}

func (p PeriodReturns) MarshalJSON() ([]byte, error) {
	type alias PeriodReturns
	return json.Marshal(struct {
		alias
		AnnAlpha       *float64 `json:"ann_alpha"`
		Beta           *float64 `json:"beta"`
		SpreadMean     *float64 `json:"spread_mean"`
		SpreadStdErr   *float64 `json:"spread_std_err"`
		MeanIC         *float64 `json:"mean_ic"`
		ICStd          *float64 `json:"ic_std"`
		RiskAdjustedIC *float64 `json:"risk_adjusted_ic"`
	}{
		alias(p),
		nullable(p.AnnAlpha),
		nullable(p.Beta),
		nullable(p.SpreadMean),
		nullable(p.SpreadStdErr),
		nullable(p.MeanIC),
		nullable(p.ICStd),
		nullable(p.RiskAdjustedIC),
	})
}

func (r FactorRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		FactorKey
		Value *float64 `json:"value"`
	}{r.FactorKey, nullable(r.Value)})
}

func (b BuildInfo) MarshalJSON() ([]byte, error) {
	type alias BuildInfo
	return json.Marshal(struct {
		alias
		Mean *float64 `json:"band_mean"`
		Std  *float64 `json:"band_std"`
	}{alias(b), nullable(b.Mean), nullable(b.Std)})
}
