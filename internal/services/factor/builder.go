package factor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FinFactor/internal/domain/models"
	domrepo "FinFactor/internal/domain/repository"
	domsvc "FinFactor/internal/domain/service"
	"FinFactor/internal/services/features"
	applogger "FinFactor/pkg/logger"
)

const (
	DefaultLookback   = 360
	DefaultRSIPeriod  = 30
	DefaultMaxLoss    = 0.10
	DefaultQuantiles  = 5
	DefaultAssetClass = "forex"
	DefaultZScore     = 20
)

var (
	ErrNoAssets             = errors.New("factor: asset list is empty")
	ErrInsufficientLookback = errors.New("factor: lookback must exceed the indicator period")
	ErrNoAligner            = errors.New("factor: no aligner configured")
)

// Params describes what to build.
type Params struct {
	Assets     []string
	Lookback   int    // daily bars
	Period     int    // RSI smoothing period
	AssetClass string // informational; default group label
	Resolution domrepo.Resolution
}

func (p *Params) applyDefaults() {
	if p.Lookback <= 0 {
		p.Lookback = DefaultLookback
	}
	if p.Period <= 0 {
		p.Period = DefaultRSIPeriod
	}
	if p.AssetClass == "" {
		p.AssetClass = DefaultAssetClass
	}
	if p.Resolution == "" {
		p.Resolution = domrepo.DefaultResolution()
	}
}

// Option configures a Builder.
type Option func(*Builder)

// WithAligner sets the collaborator used by CleanFactorAndForwardReturns.
func WithAligner(a domsvc.Aligner) Option {
	return func(b *Builder) { b.aligner = a }
}

// WithLogger injects a structured logger.
func WithLogger(l *applogger.Logger) Option {
	return func(b *Builder) { b.l = l }
}

// WithMetrics injects a metrics recorder.
func WithMetrics(m domrepo.Metrics) Option {
	return func(b *Builder) { b.metrics = m }
}

// WithGroups maps assets to group labels; unmapped assets use the asset class.
func WithGroups(groups map[string]string) Option {
	return func(b *Builder) { b.groups = groups }
}

// WithFilterZScore sets the forward-return outlier threshold passed to the
// aligner; 0 disables it.
func WithFilterZScore(z float64) Option {
	return func(b *Builder) { b.zscore = z }
}

// WithIndicator replaces the default RSI(Period).
func WithIndicator(ind domsvc.Indicator) Option {
	return func(b *Builder) { b.indicator = ind }
}

// Builder holds the fetched history and the factor table derived from it.
// All external calls happen in NewBuilder; accessors are pure.
type Builder struct {
	params    Params
	symbols   []models.Symbol
	history   []models.Bar
	factors   models.FactorTable
	band      Band
	aligner   domsvc.Aligner
	indicator domsvc.Indicator
	groups    map[string]string
	zscore    float64
	metrics   domrepo.Metrics
	l         *applogger.Logger
}

// NewBuilder resolves the assets, fetches the bulk history once and one
// indicator series per asset (sequentially), then builds the factor table.
func NewBuilder(ctx context.Context, src domrepo.MarketData, p Params, opts ...Option) (*Builder, error) {
	if len(p.Assets) == 0 {
		return nil, ErrNoAssets
	}
	p.applyDefaults()
	if p.Lookback <= p.Period {
		return nil, fmt.Errorf("%w: lookback=%d period=%d", ErrInsufficientLookback, p.Lookback, p.Period)
	}

	b := &Builder{params: p, zscore: DefaultZScore}
	for _, opt := range opts {
		opt(b)
	}
	if b.indicator == nil {
		b.indicator = features.NewRSI(p.Period)
	}

	start := time.Now()
	b.symbols = make([]models.Symbol, 0, len(p.Assets))
	for _, a := range p.Assets {
		sym, err := src.Resolve(ctx, a)
		if err != nil {
			b.recordError("resolve")
			return nil, fmt.Errorf("resolve %s: %w", a, err)
		}
		b.symbols = append(b.symbols, sym)
	}

	history, err := src.History(ctx, b.symbols, p.Lookback, p.Resolution)
	if err != nil {
		b.recordError("history")
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	b.history = history

	combined := make([]models.IndicatorRecord, 0, len(b.symbols)*(p.Lookback-p.Period))
	for _, sym := range b.symbols {
		recs, err := src.Indicator(ctx, b.indicator, sym, p.Lookback, p.Resolution)
		if err != nil {
			b.recordError("indicator")
			return nil, fmt.Errorf("fetch %s for %s: %w", b.indicator.Name(), sym, err)
		}
		combined = append(combined, normalizeRecords(recs, models.NormalizeAsset(sym.String()))...)
	}

	b.factors, b.band = computeFactors(combined)

	if b.metrics != nil {
		b.metrics.RecordLatency("build_factors", time.Since(start).Seconds())
		b.metrics.RecordRows("history", len(b.history))
		b.metrics.RecordRows("factors", b.factors.Len())
	}
	if b.l != nil {
		b.l.Info("factor table built",
			applogger.Strings("assets", p.Assets),
			applogger.String("asset_class", p.AssetClass),
			applogger.String("indicator", b.indicator.Name()),
			applogger.Int("lookback", p.Lookback),
			applogger.Int("history_rows", len(b.history)),
			applogger.Int("factor_rows", b.factors.Len()),
			applogger.Float64("mean", b.band.Mean),
			applogger.Float64("std", b.band.Std),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return b, nil
}

// Factors returns the factor table built at construction.
func (b *Builder) Factors() models.FactorTable { return b.factors }

// Prices rebuilds the wide close table from the captured history on every
// call, restricted to the factor table's dates.
func (b *Builder) Prices() models.PriceTable {
	return computePrices(b.history, b.factors.Dates())
}

// Band returns the mean/std used by the reflection transform.
func (b *Builder) Band() Band { return b.band }

// Params returns the effective construction parameters.
func (b *Builder) Params() Params { return b.params }

// Groups returns the asset -> group mapping used for by-group analysis.
func (b *Builder) Groups() map[string]string {
	out := make(map[string]string)
	for _, a := range b.factors.Assets() {
		g, ok := b.groups[a]
		if !ok || g == "" {
			g = b.params.AssetClass
		}
		out[a] = g
	}
	return out
}

// CleanFactorAndForwardReturns hands the factor and price tables to the
// aligner. A negative maxLoss selects DefaultMaxLoss, 0 tolerates no loss.
// quantiles <= 0 selects DefaultQuantiles; periods defaults to 1, 5, 10.
func (b *Builder) CleanFactorAndForwardReturns(ctx context.Context, maxLoss float64, quantiles int, periods ...int) (*models.FactorData, error) {
	if b.aligner == nil {
		return nil, ErrNoAligner
	}
	if maxLoss < 0 {
		maxLoss = DefaultMaxLoss
	}
	if quantiles <= 0 {
		quantiles = DefaultQuantiles
	}
	if len(periods) == 0 {
		periods = []int{1, 5, 10}
	}
	start := time.Now()
	data, err := b.aligner.Align(ctx, b.factors, b.Prices(), models.AlignOptions{
		Periods:      periods,
		Quantiles:    quantiles,
		MaxLoss:      maxLoss,
		FilterZScore: b.zscore,
		Groups:       b.Groups(),
	})
	if err != nil {
		b.recordError("align")
		return nil, fmt.Errorf("clean factor and forward returns: %w", err)
	}
	if b.metrics != nil {
		b.metrics.RecordLatency("align", time.Since(start).Seconds())
		b.metrics.RecordLoss(data.Loss.Total)
		b.metrics.RecordRows("factor_data", len(data.Rows))
	}
	return data, nil
}

func (b *Builder) recordError(kind string) {
	if b.metrics != nil {
		b.metrics.RecordError(kind)
	}
}
