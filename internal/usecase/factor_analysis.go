package usecase

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"FinFactor/internal/domain/models"
	domrepo "FinFactor/internal/domain/repository"
	domsvc "FinFactor/internal/domain/service"
	"FinFactor/internal/services/analysis"
	"FinFactor/internal/services/factor"
	applogger "FinFactor/pkg/logger"

	"github.com/google/uuid"
)

// AnalysisSettings are the defaults of one analysis run.
type AnalysisSettings struct {
	Periods      []int
	Quantiles    int
	MaxLoss      float64
	FilterZScore float64
	TearSheet    models.TearSheetOptions
	HeadRows     int
}

// FactorAnalysis builds the RSI factor and evaluates it.
type FactorAnalysis struct {
	src      domrepo.MarketData
	aligner  domsvc.Aligner
	reporter domsvc.Reporter
	sink     domrepo.FactorSink
	metrics  domrepo.Metrics
	l        *applogger.Logger

	params   factor.Params
	groups   map[string]string
	settings AnalysisSettings

	mu      sync.Mutex
	builder *factor.Builder
	builtAt time.Time
}

func NewFactorAnalysis(
	src domrepo.MarketData,
	aligner domsvc.Aligner,
	reporter domsvc.Reporter,
	sink domrepo.FactorSink,
	metrics domrepo.Metrics,
	l *applogger.Logger,
	params factor.Params,
	groups map[string]string,
	settings AnalysisSettings,
) *FactorAnalysis {
	if l == nil {
		l = applogger.Nop()
	}
	return &FactorAnalysis{
		src: src, aligner: aligner, reporter: reporter, sink: sink, metrics: metrics, l: l,
		params: params, groups: groups, settings: settings,
	}
}

// RunResult is the outcome of a full run.
type RunResult struct {
	RunID string
	Data  *models.FactorData
	Sheet *models.ReturnsTearSheet
}

// Builder returns the current factor builder, building it on first use.
func (uc *FactorAnalysis) Builder(ctx context.Context) (*factor.Builder, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.builder != nil {
		return uc.builder, nil
	}
	return uc.rebuildLocked(ctx)
}

// Refresh refetches the history past any market data cache and rebuilds
// the factor table.
func (uc *FactorAnalysis) Refresh(ctx context.Context) (*factor.Builder, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.rebuildLocked(domrepo.WithFreshData(ctx))
}

func (uc *FactorAnalysis) rebuildLocked(ctx context.Context) (*factor.Builder, error) {
	opts := []factor.Option{
		factor.WithAligner(uc.aligner),
		factor.WithLogger(uc.l),
		factor.WithGroups(uc.groups),
		factor.WithFilterZScore(uc.settings.FilterZScore),
	}
	if uc.metrics != nil {
		opts = append(opts, factor.WithMetrics(uc.metrics))
	}
	b, err := factor.NewBuilder(ctx, uc.src, uc.params, opts...)
	if err != nil {
		return nil, err
	}
	uc.builder = b
	uc.builtAt = time.Now().UTC()
	return b, nil
}

// BuiltAt is when the current factor table was built; zero before the first build.
func (uc *FactorAnalysis) BuiltAt() time.Time {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.builtAt
}

// FactorDataParams overrides the run defaults; nil and zero values keep them.
type FactorDataParams struct {
	MaxLoss   *float64
	Quantiles int
	Periods   []int
}

func (uc *FactorAnalysis) resolve(p FactorDataParams) FactorDataParams {
	if p.MaxLoss == nil {
		p.MaxLoss = &uc.settings.MaxLoss
	}
	if p.Quantiles <= 0 {
		p.Quantiles = uc.settings.Quantiles
	}
	if len(p.Periods) == 0 {
		p.Periods = uc.settings.Periods
	}
	return p
}

// FactorData aligns the factor with forward returns.
func (uc *FactorAnalysis) FactorData(ctx context.Context, p FactorDataParams) (*models.FactorData, error) {
	b, err := uc.Builder(ctx)
	if err != nil {
		return nil, err
	}
	p = uc.resolve(p)
	return b.CleanFactorAndForwardReturns(ctx, *p.MaxLoss, p.Quantiles, p.Periods...)
}

// TearSheet aligns the factor and computes the returns tear sheet.
func (uc *FactorAnalysis) TearSheet(ctx context.Context, p FactorDataParams, opts models.TearSheetOptions) (*models.ReturnsTearSheet, error) {
	data, err := uc.FactorData(ctx, p)
	if err != nil {
		return nil, err
	}
	sheet, err := uc.reporter.ReturnsTearSheet(ctx, data, opts)
	if err != nil {
		return nil, fmt.Errorf("returns tear sheet: %w", err)
	}
	return sheet, nil
}

// Run performs the full pipeline and prints the heads of the factor, price
// and factor data tables followed by the tear sheet to w. The clean factor
// data is written to the sink under a fresh run id.
func (uc *FactorAnalysis) Run(ctx context.Context, w io.Writer) (*RunResult, error) {
	start := time.Now()
	runID := uuid.NewString()
	l := uc.l.With(applogger.String("run_id", runID))

	b, err := uc.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("build factors: %w", err)
	}
	n := uc.settings.HeadRows

	section(w, "factors")
	if err := analysis.RenderFactorsHead(w, b.Factors().Head(n)); err != nil {
		return nil, err
	}
	section(w, "prices")
	if err := analysis.RenderPricesHead(w, b.Prices(), n); err != nil {
		return nil, err
	}

	data, err := uc.FactorData(ctx, FactorDataParams{})
	if err != nil {
		return nil, err
	}
	section(w, "factor data")
	if err := analysis.RenderFactorDataHead(w, data, n); err != nil {
		return nil, err
	}

	sheet, err := uc.reporter.ReturnsTearSheet(ctx, data, uc.settings.TearSheet)
	if err != nil {
		return nil, fmt.Errorf("returns tear sheet: %w", err)
	}
	section(w, "returns tear sheet")
	if err := analysis.Render(w, sheet); err != nil {
		return nil, err
	}

	if uc.sink != nil {
		if err := uc.sink.Write(ctx, runID, data); err != nil {
			if uc.metrics != nil {
				uc.metrics.RecordError("sink")
			}
			return nil, fmt.Errorf("write factor data: %w", err)
		}
	}

	l.Info("analysis run complete",
		applogger.Int("factor_rows", b.Factors().Len()),
		applogger.Int("clean_rows", len(data.Rows)),
		applogger.Any("periods", data.Periods),
		applogger.Percent("loss", data.Loss.Total),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return &RunResult{RunID: runID, Data: data, Sheet: sheet}, nil
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n== %s ==\n", title)
}
