package usecase

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"FinFactor/internal/domain/models"
	domrepo "FinFactor/internal/domain/repository"
	domsvc "FinFactor/internal/domain/service"
	"FinFactor/internal/services/analysis"
	"FinFactor/internal/repository"
	"FinFactor/internal/services/factor"
	"FinFactor/pkg/cache"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAssets = []string{"EURUSD", "USDJPY", "GBPUSD", "AUDUSD"}

// waveSource serves deterministic oscillating closes for every asset.
type waveSource struct {
	days     int
	resolves int
}

func (s *waveSource) Resolve(_ context.Context, asset string) (models.Symbol, error) {
	s.resolves++
	return models.Symbol{Ticker: asset, Venue: "OANDA", Code: "OANDA:" + asset}, nil
}

func (s *waveSource) series(sym models.Symbol) []models.Bar {
	k := 0
	for i, a := range testAssets {
		if a == sym.Ticker {
			k = i
		}
	}
	out := make([]models.Bar, s.days)
	for i := range out {
		c := 100 + float64(k+1)*math.Sin(float64(i*(k+1))*0.7) + float64(i)*0.1*(float64(k)-1.5)
		out[i] = models.Bar{
			Time:   time.Date(2024, 1, 1, 21, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Symbol: sym.String(),
			Close:  c,
		}
	}
	return out
}

func (s *waveSource) History(_ context.Context, syms []models.Symbol, _ int, _ domrepo.Resolution) ([]models.Bar, error) {
	var out []models.Bar
	for _, sym := range syms {
		out = append(out, s.series(sym)...)
	}
	return out, nil
}

func (s *waveSource) Indicator(_ context.Context, ind domsvc.Indicator, sym models.Symbol, _ int, _ domrepo.Resolution) ([]models.IndicatorRecord, error) {
	return ind.Compute(s.series(sym)), nil
}

type memorySink struct {
	runID string
	data  *models.FactorData
	err   error
}

func (m *memorySink) Write(_ context.Context, runID string, data *models.FactorData) error {
	m.runID, m.data = runID, data
	return m.err
}

func (m *memorySink) Close() error { return nil }

func newAnalysis(src domrepo.MarketData, sink domrepo.FactorSink, settings AnalysisSettings) *FactorAnalysis {
	return NewFactorAnalysis(src, analysis.NewAligner(), analysis.NewReporter(), sink, nil, nil,
		factor.Params{Assets: testAssets, Lookback: 40, Period: 3},
		map[string]string{"USDJPY": "usd_base"},
		settings,
	)
}

func defaultSettings() AnalysisSettings {
	return AnalysisSettings{
		Periods:      []int{1, 2},
		Quantiles:    2,
		MaxLoss:      0.5,
		FilterZScore: 20,
		TearSheet:    models.TearSheetOptions{LongShort: true, ByGroup: true},
		HeadRows:     3,
	}
}

func TestFactorAnalysis_Run(t *testing.T) {
	sink := &memorySink{}
	uc := newAnalysis(&waveSource{days: 40}, sink, defaultSettings())

	var out bytes.Buffer
	res, err := uc.Run(context.Background(), &out)
	require.NoError(t, err)

	_, err = uuid.Parse(res.RunID)
	assert.NoError(t, err)
	assert.Equal(t, res.RunID, sink.runID)
	assert.Same(t, res.Data, sink.data)
	assert.Equal(t, []int{1, 2}, res.Data.Periods)
	assert.NotEmpty(t, res.Data.Rows)
	require.Len(t, res.Sheet.Periods, 2)
	assert.NotEmpty(t, res.Sheet.ByGroup)
	assert.False(t, uc.BuiltAt().IsZero())

	text := out.String()
	for _, want := range []string{"== factors ==", "== prices ==", "== factor data ==", "== returns tear sheet ==", "Returns Analysis", "usd_base"} {
		assert.Contains(t, text, want)
	}
}

func TestFactorAnalysis_BuilderIsMemoized(t *testing.T) {
	src := &waveSource{days: 40}
	uc := newAnalysis(src, nil, defaultSettings())

	b1, err := uc.Builder(context.Background())
	require.NoError(t, err)
	b2, err := uc.Builder(context.Background())
	require.NoError(t, err)
	assert.Same(t, b1, b2)
	assert.Equal(t, len(testAssets), src.resolves)

	b3, err := uc.Refresh(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, b1, b3)
	assert.Equal(t, 2*len(testAssets), src.resolves)
}

func TestFactorAnalysis_FactorDataOverrides(t *testing.T) {
	uc := newAnalysis(&waveSource{days: 40}, nil, defaultSettings())

	data, err := uc.FactorData(context.Background(), FactorDataParams{Periods: []int{3}})
	require.NoError(t, err)
	assert.Equal(t, []int{3}, data.Periods)
	assert.Equal(t, 2, data.Quantiles)

	tiny := 0.0001
	_, err = uc.FactorData(context.Background(), FactorDataParams{MaxLoss: &tiny, Periods: []int{5}})
	var mle *analysis.MaxLossExceededError
	assert.True(t, errors.As(err, &mle))

	// zero tolerance is honored, not replaced by the default
	zero := 0.0
	_, err = uc.FactorData(context.Background(), FactorDataParams{MaxLoss: &zero, Periods: []int{1}})
	require.True(t, errors.As(err, &mle))
	assert.Equal(t, 0.0, mle.MaxLoss)

	_, err = uc.FactorData(context.Background(), FactorDataParams{Periods: []int{1}})
	assert.NoError(t, err)
}

func TestFactorAnalysis_SinkError(t *testing.T) {
	sink := &memorySink{err: errors.New("disk full")}
	uc := newAnalysis(&waveSource{days: 40}, sink, defaultSettings())
	_, err := uc.Run(context.Background(), &bytes.Buffer{})
	assert.ErrorContains(t, err, "disk full")
}

func TestFactorAnalysis_RefreshBypassesMarketDataCache(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()
	src := &waveSource{days: 60}
	cached := repository.NewCachedMarketData(src, mem, time.Hour, nil, nil)
	uc := newAnalysis(cached, nil, defaultSettings())
	ctx := context.Background()

	b, err := uc.Builder(ctx)
	require.NoError(t, err)
	assert.Equal(t, (60-3)*len(testAssets), b.Factors().Len())

	src.days = 80
	b, err = uc.Builder(ctx)
	require.NoError(t, err)
	assert.Equal(t, (60-3)*len(testAssets), b.Factors().Len())

	b, err = uc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, (80-3)*len(testAssets), b.Factors().Len())

	// the refreshed series replaced the cached entries
	other := newAnalysis(cached, nil, defaultSettings())
	b, err = other.Builder(ctx)
	require.NoError(t, err)
	assert.Equal(t, (80-3)*len(testAssets), b.Factors().Len())
}
