package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"FinFactor/internal/domain/models"
	domsvc "FinFactor/internal/domain/service"
	"FinFactor/internal/services/features"
	applogger "FinFactor/pkg/logger"

	"gonum.org/v1/gonum/stat"
)

var (
	ErrEmptyFactor   = errors.New("analysis: factor table is empty")
	ErrIndexMismatch = errors.New("analysis: factor and price dates do not overlap; check date convention and asset names")
	ErrBadOptions    = errors.New("analysis: invalid options")
)

// MaxLossExceededError is returned when cleaning drops more than MaxLoss of
// the factor rows.
type MaxLossExceededError struct {
	MaxLoss float64
	Loss    float64
}

func (e *MaxLossExceededError) Error() string {
	return fmt.Sprintf("max_loss (%.1f%%) exceeded %.1f%%, consider increasing it.", e.MaxLoss*100, e.Loss*100)
}

var DefaultPeriods = []int{1, 5, 10}

const (
	DefaultQuantiles    = 5
	DefaultFilterZScore = 20
)

// AlignerOption configures an Aligner.
type AlignerOption func(*Aligner)

// WithAlignerLogger injects a logger.
func WithAlignerLogger(l *applogger.Logger) AlignerOption {
	return func(a *Aligner) { a.l = l }
}

// Aligner joins a factor with forward returns and assigns per-date quantiles.
type Aligner struct {
	l *applogger.Logger
}

// NewAligner creates an Aligner.
func NewAligner(opts ...AlignerOption) *Aligner {
	a := &Aligner{l: applogger.Nop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Align computes forward returns over the rows of prices, merges them with the
// factor, drops incomplete rows, bins each date into quantiles and enforces
// the loss budget.
func (a *Aligner) Align(ctx context.Context, factors models.FactorTable, prices models.PriceTable, opts models.AlignOptions) (*models.FactorData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts, err := normalizeAlignOptions(opts)
	if err != nil {
		return nil, err
	}
	if factors.Len() == 0 {
		return nil, ErrEmptyFactor
	}
	if !datesOverlap(factors.Dates(), prices.Dates()) {
		return nil, ErrIndexMismatch
	}
	if opts.Groups != nil {
		if missing := ungrouped(factors.Assets(), opts.Groups); len(missing) > 0 {
			return nil, fmt.Errorf("%w: assets %s not in group mapping", ErrBadOptions, strings.Join(missing, ", "))
		}
	}

	fwd := computeForwardReturns(prices, opts.Periods, opts.FilterZScore)

	initial := factors.Len()
	merged := make([]models.FactorDatum, 0, initial)
	for _, r := range factors.Rows() {
		if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
			continue
		}
		rets, ok := fwd.lookup(r.Date, r.Asset)
		if !ok {
			continue
		}
		merged = append(merged, models.FactorDatum{
			Date:    r.Date,
			Asset:   r.Asset,
			Factor:  r.Value,
			Group:   opts.Groups[r.Asset],
			Returns: rets,
		})
	}
	afterFwd := len(merged)

	binned := quantizeByDate(merged, opts.Quantiles)

	loss := models.LossSummary{
		Initial:        initial,
		ForwardReturns: initial - afterFwd,
		Binning:        afterFwd - len(binned),
	}
	loss.Total = float64(initial-len(binned)) / float64(initial)
	fwdLoss := float64(loss.ForwardReturns) / float64(initial)

	a.l.Info(fmt.Sprintf("Dropped %.1f%% entries from factor data: %.1f%% in forward returns computation and %.1f%% in binning phase.",
		loss.Total*100, fwdLoss*100, (loss.Total-fwdLoss)*100),
		applogger.Int("initial", initial),
		applogger.Int("kept", len(binned)),
	)
	if loss.Total > opts.MaxLoss {
		err := &MaxLossExceededError{MaxLoss: opts.MaxLoss, Loss: loss.Total}
		a.l.Error("factor data rejected", applogger.Error(err))
		return nil, err
	}
	a.l.Info(fmt.Sprintf("max_loss is %.1f%%, not exceeded: OK!", opts.MaxLoss*100))

	return &models.FactorData{
		Periods:   append([]int(nil), opts.Periods...),
		Quantiles: opts.Quantiles,
		Rows:      binned,
		Loss:      loss,
	}, nil
}

func normalizeAlignOptions(opts models.AlignOptions) (models.AlignOptions, error) {
	if len(opts.Periods) == 0 {
		opts.Periods = DefaultPeriods
	}
	seen := make(map[int]struct{}, len(opts.Periods))
	for _, p := range opts.Periods {
		if p <= 0 {
			return opts, fmt.Errorf("%w: period %d must be positive", ErrBadOptions, p)
		}
		if _, dup := seen[p]; dup {
			return opts, fmt.Errorf("%w: duplicate period %d", ErrBadOptions, p)
		}
		seen[p] = struct{}{}
	}
	if opts.Quantiles == 0 {
		opts.Quantiles = DefaultQuantiles
	}
	if opts.Quantiles < 1 {
		return opts, fmt.Errorf("%w: quantiles %d", ErrBadOptions, opts.Quantiles)
	}
	if opts.MaxLoss < 0 || opts.MaxLoss > 1 || math.IsNaN(opts.MaxLoss) {
		return opts, fmt.Errorf("%w: max_loss %v outside [0, 1]", ErrBadOptions, opts.MaxLoss)
	}
	if opts.FilterZScore < 0 {
		return opts, fmt.Errorf("%w: filter_zscore %v", ErrBadOptions, opts.FilterZScore)
	}
	return opts, nil
}

func datesOverlap(a, b []time.Time) bool {
	set := make(map[int64]struct{}, len(b))
	for _, d := range b {
		set[d.Unix()] = struct{}{}
	}
	for _, d := range a {
		if _, ok := set[d.Unix()]; ok {
			return true
		}
	}
	return false
}

func ungrouped(assets []string, groups map[string]string) []string {
	var missing []string
	for _, a := range assets {
		if _, ok := groups[a]; !ok {
			missing = append(missing, a)
		}
	}
	return missing
}

// forwardReturns is a dense [period][date][asset] cube over the price table.
type forwardReturns struct {
	dayIndex   map[int64]int
	assetIndex map[string]int
	values     [][][]float64
}

func computeForwardReturns(prices models.PriceTable, periods []int, zscore float64) *forwardReturns {
	dates := prices.Dates()
	assets := prices.Assets()

	closes := make([][]float64, len(dates))
	dayIndex := make(map[int64]int, len(dates))
	for i, d := range dates {
		dayIndex[d.Unix()] = i
		closes[i] = make([]float64, len(assets))
		for k, a := range assets {
			c, ok := prices.Close(d, a)
			if !ok {
				c = math.NaN()
			}
			closes[i][k] = c
		}
	}
	assetIndex := make(map[string]int, len(assets))
	for k, a := range assets {
		assetIndex[a] = k
	}

	values := make([][][]float64, len(periods))
	for j, p := range periods {
		cube := make([][]float64, len(dates))
		for i := range dates {
			cube[i] = make([]float64, len(assets))
			for k := range assets {
				if i+p >= len(dates) {
					cube[i][k] = math.NaN()
					continue
				}
				cube[i][k] = features.SimpleReturn(closes[i][k], closes[i+p][k])
			}
		}
		if zscore > 0 {
			maskOutliers(cube, len(assets), zscore)
		}
		values[j] = cube
	}
	return &forwardReturns{dayIndex: dayIndex, assetIndex: assetIndex, values: values}
}

// maskOutliers sets to NaN every return farther than z sample standard
// deviations from its asset's mean.
func maskOutliers(cube [][]float64, nAssets int, z float64) {
	col := make([]float64, 0, len(cube))
	for k := 0; k < nAssets; k++ {
		col = col[:0]
		for i := range cube {
			if v := cube[i][k]; !math.IsNaN(v) {
				col = append(col, v)
			}
		}
		if len(col) < 2 {
			continue
		}
		mean, std := stat.MeanStdDev(col, nil)
		for i := range cube {
			if v := cube[i][k]; !math.IsNaN(v) && math.Abs(v-mean) > z*std {
				cube[i][k] = math.NaN()
			}
		}
	}
}

// lookup returns the forward returns of (date, asset) for every period, or
// false if any is missing.
func (f *forwardReturns) lookup(date time.Time, asset string) ([]float64, bool) {
	i, ok := f.dayIndex[date.Unix()]
	if !ok {
		return nil, false
	}
	k, ok := f.assetIndex[asset]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(f.values))
	for j := range f.values {
		v := f.values[j][i][k]
		if math.IsNaN(v) {
			return nil, false
		}
		out[j] = v
	}
	return out, true
}

// quantizeByDate assigns 1..q labels per date with equal-frequency bins over
// linearly interpolated quantile edges. A date whose edges are not strictly
// increasing is dropped whole. rows must be sorted by date.
func quantizeByDate(rows []models.FactorDatum, q int) []models.FactorDatum {
	out := make([]models.FactorDatum, 0, len(rows))
	for start := 0; start < len(rows); {
		end := start + 1
		for end < len(rows) && rows[end].Date.Equal(rows[start].Date) {
			end++
		}
		block := rows[start:end]
		start = end

		values := make([]float64, len(block))
		for i, r := range block {
			values[i] = r.Factor
		}
		edges, ok := quantileEdges(values, q)
		if !ok {
			continue
		}
		for _, r := range block {
			r.Quantile = binOf(edges, r.Factor)
			out = append(out, r)
		}
	}
	return out
}

// quantileEdges returns q+1 edges at probabilities 0, 1/q, ..., 1 using
// linear interpolation between order statistics (h = (n-1)p). ok is false
// when the edges are not unique.
func quantileEdges(values []float64, q int) ([]float64, bool) {
	if len(values) == 0 || q < 1 {
		return nil, false
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	edges := make([]float64, q+1)
	for i := 0; i <= q; i++ {
		edges[i] = linearQuantile(sorted, float64(i)/float64(q))
	}
	for i := 1; i < len(edges); i++ {
		if !(edges[i] > edges[i-1]) {
			return nil, false
		}
	}
	return edges, true
}

func linearQuantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// binOf returns the 1-based bin of x: the first k with x <= edges[k]. The
// first bin is closed on the left.
func binOf(edges []float64, x float64) int {
	k := sort.SearchFloat64s(edges[1:], x) + 1
	if k > len(edges)-1 {
		k = len(edges) - 1
	}
	return k
}

var _ domsvc.Aligner = (*Aligner)(nil)
