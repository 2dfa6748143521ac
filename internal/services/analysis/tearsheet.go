package analysis

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"FinFactor/internal/domain/models"
	domsvc "FinFactor/internal/domain/service"
	"FinFactor/internal/services/features"
	applogger "FinFactor/pkg/logger"

	"gonum.org/v1/gonum/stat"
)

var ErrNoFactorData = errors.New("analysis: factor data is empty")

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithReporterLogger injects a logger.
func WithReporterLogger(l *applogger.Logger) ReporterOption {
	return func(r *Reporter) { r.l = l }
}

// Reporter computes return diagnostics of clean factor data.
type Reporter struct {
	l *applogger.Logger
}

// NewReporter creates a Reporter.
func NewReporter(opts ...ReporterOption) *Reporter {
	r := &Reporter{l: applogger.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReturnsTearSheet computes, per holding period, the factor-weighted
// portfolio returns with alpha/beta against the equal-weight universe, the
// mean return by quantile, the top-minus-bottom spread and the mean rank IC.
// Quantile returns are expressed per Periods[0] bars.
func (r *Reporter) ReturnsTearSheet(ctx context.Context, data *models.FactorData, opts models.TearSheetOptions) (*models.ReturnsTearSheet, error) {
	if data == nil || len(data.Rows) == 0 || len(data.Periods) == 0 {
		return nil, ErrNoFactorData
	}

	blocks := splitByDate(data.Rows)
	base := data.Periods[0]
	sheet := &models.ReturnsTearSheet{
		Options: opts,
		Periods: make([]models.PeriodReturns, 0, len(data.Periods)),
		Loss:    data.Loss,
	}

	for j, p := range data.Periods {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pr := models.PeriodReturns{Period: p, Label: models.PeriodLabel(p)}

		portfolio, universe := portfolioReturns(blocks, j, opts.LongShort, opts.GroupNeutral)
		pr.FactorReturns = portfolio
		alpha, beta := alphaBeta(universe, portfolio)
		pr.AnnAlpha = features.AnnualizeAlpha(alpha, p)
		pr.Beta = beta

		byDate := quantileMeansByDate(blocks, j, opts.LongShort, opts.GroupNeutral, false)
		pr.QuantileReturns = summarizeQuantiles(byDate, p, base)
		pr.SpreadMean, pr.SpreadStdErr = spread(byDate, p, base)

		ics := dailyIC(blocks, j, opts.GroupNeutral)
		pr.MeanIC, pr.ICStd = meanStd(ics)
		pr.RiskAdjustedIC = math.NaN()
		if pr.ICStd > 0 {
			pr.RiskAdjustedIC = pr.MeanIC / pr.ICStd
		}

		sheet.Periods = append(sheet.Periods, pr)
		r.l.Debug("period analysed",
			applogger.String("period", pr.Label),
			applogger.Float64("ann_alpha", pr.AnnAlpha),
			applogger.Float64("beta", pr.Beta),
			applogger.Float64("mean_ic", pr.MeanIC),
		)
	}

	if opts.ByGroup {
		sheet.ByGroup = byGroupReturns(blocks, data.Periods, opts)
	}
	return sheet, nil
}

type dateBlock struct {
	date time.Time
	rows []models.FactorDatum
}

func splitByDate(rows []models.FactorDatum) []dateBlock {
	sorted := append([]models.FactorDatum(nil), rows...)
	sort.SliceStable(sorted, func(a, b int) bool {
		if !sorted[a].Date.Equal(sorted[b].Date) {
			return sorted[a].Date.Before(sorted[b].Date)
		}
		return sorted[a].Asset < sorted[b].Asset
	})
	var out []dateBlock
	for start := 0; start < len(sorted); {
		end := start + 1
		for end < len(sorted) && sorted[end].Date.Equal(sorted[start].Date) {
			end++
		}
		out = append(out, dateBlock{date: sorted[start].Date, rows: sorted[start:end]})
		start = end
	}
	return out
}

// factorWeights demeans (optionally) and scales the factor so that absolute
// weights sum to one, per date or per (date, group) followed by a date-level
// rescale.
func factorWeights(rows []models.FactorDatum, demeaned, groupAdjust bool) []float64 {
	w := make([]float64, len(rows))
	if !groupAdjust {
		for i, r := range rows {
			w[i] = r.Factor
		}
		normalizeWeights(w, demeaned)
		return w
	}

	for _, idx := range groupIndices(rows) {
		sub := make([]float64, len(idx))
		for i, k := range idx {
			sub[i] = rows[k].Factor
		}
		normalizeWeights(sub, demeaned)
		for i, k := range idx {
			w[k] = sub[i]
		}
	}
	normalizeWeights(w, false)
	return w
}

func normalizeWeights(w []float64, demean bool) {
	if demean {
		m := stat.Mean(w, nil)
		for i := range w {
			w[i] -= m
		}
	}
	var gross float64
	for _, v := range w {
		gross += math.Abs(v)
	}
	for i := range w {
		if gross == 0 {
			w[i] = 0
			continue
		}
		w[i] /= gross
	}
}

func groupIndices(rows []models.FactorDatum) [][]int {
	pos := make(map[string]int)
	var out [][]int
	for i, r := range rows {
		g, ok := pos[r.Group]
		if !ok {
			g = len(out)
			pos[r.Group] = g
			out = append(out, nil)
		}
		out[g] = append(out[g], i)
	}
	return out
}

// portfolioReturns returns the factor-weighted return and the equal-weight
// universe return of every date for period index j.
func portfolioReturns(blocks []dateBlock, j int, demeaned, groupAdjust bool) ([]models.DatedValue, []float64) {
	portfolio := make([]models.DatedValue, len(blocks))
	universe := make([]float64, len(blocks))
	for d, b := range blocks {
		w := factorWeights(b.rows, demeaned, groupAdjust)
		var ret, sum float64
		for i, r := range b.rows {
			ret += w[i] * r.Returns[j]
			sum += r.Returns[j]
		}
		portfolio[d] = models.DatedValue{Date: b.date, Value: ret}
		universe[d] = sum / float64(len(b.rows))
	}
	return portfolio, universe
}

// alphaBeta regresses the portfolio on the universe with an intercept.
func alphaBeta(universe []float64, portfolio []models.DatedValue) (float64, float64) {
	if len(universe) < 2 {
		return math.NaN(), math.NaN()
	}
	if stat.Variance(universe, nil) == 0 {
		return math.NaN(), math.NaN()
	}
	y := make([]float64, len(portfolio))
	for i, v := range portfolio {
		y[i] = v.Value
	}
	alpha, beta := stat.LinearRegression(universe, y, nil, false)
	return alpha, beta
}

// demeanedReturns returns the period-j returns of rows, demeaned over the
// whole date or within each group.
func demeanedReturns(rows []models.FactorDatum, j int, demeaned, groupAdjust bool) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Returns[j]
	}
	switch {
	case groupAdjust:
		for _, idx := range groupIndices(rows) {
			var m float64
			for _, k := range idx {
				m += out[k]
			}
			m /= float64(len(idx))
			for _, k := range idx {
				out[k] -= m
			}
		}
	case demeaned:
		m := stat.Mean(out, nil)
		for i := range out {
			out[i] -= m
		}
	}
	return out
}

type quantileKey struct {
	quantile int
	group    string
}

// quantileMeansByDate maps (quantile[, group]) to the per-date mean return of
// that bucket, in date order.
func quantileMeansByDate(blocks []dateBlock, j int, demeaned, groupAdjust, byGroup bool) map[quantileKey][]models.DatedValue {
	out := make(map[quantileKey][]models.DatedValue)
	for _, b := range blocks {
		rets := demeanedReturns(b.rows, j, demeaned, groupAdjust)
		sums := make(map[quantileKey]float64)
		counts := make(map[quantileKey]int)
		for i, r := range b.rows {
			k := quantileKey{quantile: r.Quantile}
			if byGroup {
				k.group = r.Group
			}
			sums[k] += rets[i]
			counts[k]++
		}
		for k, s := range sums {
			out[k] = append(out[k], models.DatedValue{Date: b.date, Value: s / float64(counts[k])})
		}
	}
	return out
}

// summarizeQuantiles averages the daily bucket means over dates, converted to
// base-period rates. Std error is the std of the daily means over sqrt(n).
func summarizeQuantiles(byDate map[quantileKey][]models.DatedValue, period, base int) []models.QuantileReturn {
	keys := make([]quantileKey, 0, len(byDate))
	for k := range byDate {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a].quantile < keys[b].quantile })

	out := make([]models.QuantileReturn, 0, len(keys))
	for _, k := range keys {
		vals := values(byDate[k])
		mean, std := meanStd(vals)
		stderr := std / math.Sqrt(float64(len(vals)))
		out = append(out, models.QuantileReturn{
			Quantile: k.quantile,
			Mean:     features.RateOfReturn(mean, period, base),
			StdErr:   features.StdConversion(stderr, period, base),
			Count:    len(vals),
		})
	}
	return out
}

// spread is the mean and std error of the daily top-minus-bottom quantile
// return, on dates where both buckets exist.
func spread(byDate map[quantileKey][]models.DatedValue, period, base int) (float64, float64) {
	top, bottom := 0, 0
	for k := range byDate {
		if top == 0 || k.quantile > top {
			top = k.quantile
		}
		if bottom == 0 || k.quantile < bottom {
			bottom = k.quantile
		}
	}
	if top == bottom {
		return math.NaN(), math.NaN()
	}

	lower := make(map[int64]float64)
	for _, v := range byDate[quantileKey{quantile: bottom}] {
		lower[v.Date.Unix()] = features.RateOfReturn(v.Value, period, base)
	}
	var diffs []float64
	for _, v := range byDate[quantileKey{quantile: top}] {
		lo, ok := lower[v.Date.Unix()]
		if !ok {
			continue
		}
		diffs = append(diffs, features.RateOfReturn(v.Value, period, base)-lo)
	}
	mean, std := meanStd(diffs)
	return mean, std / math.Sqrt(float64(len(diffs)))
}

// dailyIC is the Spearman rank correlation between factor and period-j
// return on every date with at least two rows.
func dailyIC(blocks []dateBlock, j int, groupAdjust bool) []float64 {
	out := make([]float64, 0, len(blocks))
	for _, b := range blocks {
		if len(b.rows) < 2 {
			continue
		}
		f := make([]float64, len(b.rows))
		for i, r := range b.rows {
			f[i] = r.Factor
		}
		rets := demeanedReturns(b.rows, j, false, groupAdjust)
		if ic := spearman(f, rets); !math.IsNaN(ic) {
			out = append(out, ic)
		}
	}
	return out
}

func spearman(x, y []float64) float64 {
	rx, ry := ranks(x), ranks(y)
	if stat.Variance(rx, nil) == 0 || stat.Variance(ry, nil) == 0 {
		return math.NaN()
	}
	return stat.Correlation(rx, ry, nil)
}

// ranks assigns 1-based ranks, ties get the average rank.
func ranks(x []float64) []float64 {
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return x[idx[a]] < x[idx[b]] })

	out := make([]float64, len(x))
	for i := 0; i < len(idx); {
		k := i + 1
		for k < len(idx) && x[idx[k]] == x[idx[i]] {
			k++
		}
		avg := float64(i+k+1) / 2
		for m := i; m < k; m++ {
			out[idx[m]] = avg
		}
		i = k
	}
	return out
}

func byGroupReturns(blocks []dateBlock, periods []int, opts models.TearSheetOptions) []models.GroupQuantileReturns {
	base := periods[0]
	var out []models.GroupQuantileReturns
	for j, p := range periods {
		byDate := quantileMeansByDate(blocks, j, opts.LongShort, opts.GroupNeutral, true)
		grouped := make(map[string]map[quantileKey][]models.DatedValue)
		for k, v := range byDate {
			if grouped[k.group] == nil {
				grouped[k.group] = make(map[quantileKey][]models.DatedValue)
			}
			grouped[k.group][quantileKey{quantile: k.quantile}] = v
		}
		names := make([]string, 0, len(grouped))
		for g := range grouped {
			names = append(names, g)
		}
		sort.Strings(names)
		for _, g := range names {
			out = append(out, models.GroupQuantileReturns{
				Group:           g,
				Period:          p,
				QuantileReturns: summarizeQuantiles(grouped[g], p, base),
			})
		}
	}
	return out
}

func values(series []models.DatedValue) []float64 {
	out := make([]float64, len(series))
	for i, v := range series {
		out[i] = v.Value
	}
	return out
}

// meanStd returns mean and sample std; NaN where undefined.
func meanStd(x []float64) (float64, float64) {
	switch len(x) {
	case 0:
		return math.NaN(), math.NaN()
	case 1:
		return x[0], math.NaN()
	}
	return stat.MeanStdDev(x, nil)
}

var _ domsvc.Reporter = (*Reporter)(nil)
