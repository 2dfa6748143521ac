package features

import (
	"fmt"
	"sort"

	"FinFactor/internal/domain/models"
	domsvc "FinFactor/internal/domain/service"
)

// RSI is the relative strength index with Wilder smoothing.
type RSI struct {
	Period int
}

// NewRSI creates an RSI indicator of the given period.
func NewRSI(period int) *RSI { return &RSI{Period: period} }

func (r *RSI) Name() string { return fmt.Sprintf("rsi_%d", r.Period) }

// WarmUp is the number of bars consumed before the first reading.
func (r *RSI) WarmUp() int { return r.Period }

// Compute emits one record per bar once Period price changes have been seen.
// The first averages are simple means of the first Period gains/losses,
// afterwards avg = (prev*(n-1) + x) / n.
func (r *RSI) Compute(bars []models.Bar) []models.IndicatorRecord {
	if r.Period <= 0 || len(bars) <= r.Period {
		return nil
	}
	sorted := make([]models.Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	n := float64(r.Period)
	out := make([]models.IndicatorRecord, 0, len(sorted)-r.Period)
	var sumGain, sumLoss, avgGain, avgLoss float64
	for i := 1; i < len(sorted); i++ {
		change := sorted[i].Close - sorted[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}

		switch {
		case i < r.Period:
			sumGain += gain
			sumLoss += loss
			continue
		case i == r.Period:
			avgGain = (sumGain + gain) / n
			avgLoss = (sumLoss + loss) / n
		default:
			avgGain = (avgGain*(n-1) + gain) / n
			avgLoss = (avgLoss*(n-1) + loss) / n
		}

		out = append(out, models.IndicatorRecord{
			Time:        sorted[i].Time,
			Asset:       sorted[i].Symbol,
			AverageGain: avgGain,
			AverageLoss: avgLoss,
			Current:     rsiValue(avgGain, avgLoss),
		})
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

var _ domsvc.Indicator = (*RSI)(nil)
