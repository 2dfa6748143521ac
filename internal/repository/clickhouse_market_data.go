package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"FinFactor/internal/domain/models"
	domrepo "FinFactor/internal/domain/repository"
	domsvc "FinFactor/internal/domain/service"
	pkgch "FinFactor/pkg/clickhouse"
	applogger "FinFactor/pkg/logger"
)

var ErrUnknownAsset = errors.New("repository: asset has no stored candles")

// CandlesSchema returns the DDL of a candle table.
func CandlesSchema(table string) []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            bucket DateTime,
            symbol LowCardinality(String),
            venue  LowCardinality(String),
            open   Float64,
            high   Float64,
            low    Float64,
            close  Float64,
            vol    Float64
        ) ENGINE = ReplacingMergeTree
        ORDER BY (symbol, bucket)
    `, table)}
}

// CHMarketOption configures CHMarketData.
type CHMarketOption func(*CHMarketData)

// WithCandlesTable maps a resolution to its candle table.
func WithCandlesTable(res domrepo.Resolution, table string) CHMarketOption {
	return func(s *CHMarketData) { s.tables[res] = table }
}

// WithVenue labels resolved symbols.
func WithVenue(venue string) CHMarketOption {
	return func(s *CHMarketData) { s.venue = venue }
}

func WithMarketLogger(l *applogger.Logger) CHMarketOption {
	return func(s *CHMarketData) { s.l = l }
}

func WithMarketMetrics(m domrepo.Metrics) CHMarketOption {
	return func(s *CHMarketData) { s.metrics = m }
}

// CHMarketData implements MarketData over stored candle tables.
type CHMarketData struct {
	db      *sql.DB
	tables  map[domrepo.Resolution]string
	venue   string
	l       *applogger.Logger
	metrics domrepo.Metrics
}

func NewCHMarketData(ch *pkgch.Client, opts ...CHMarketOption) *CHMarketData {
	s := &CHMarketData{
		db: ch.DB(),
		tables: map[domrepo.Resolution]string{
			domrepo.Daily:  "candles_1d",
			domrepo.Hour:   "candles_1h",
			domrepo.Minute: "candles_1m",
		},
		l: applogger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve checks that the ticker has stored daily candles.
func (s *CHMarketData) Resolve(ctx context.Context, asset string) (models.Symbol, error) {
	ticker := strings.ToUpper(models.NormalizeAsset(asset))
	if ticker == "" {
		return models.Symbol{}, fmt.Errorf("%w: %q", ErrUnknownAsset, asset)
	}
	table, err := s.tableFor(domrepo.Daily)
	if err != nil {
		return models.Symbol{}, err
	}
	var n uint64
	q := fmt.Sprintf("SELECT count() FROM %s WHERE symbol = ?", table)
	if err := s.db.QueryRowContext(ctx, q, ticker).Scan(&n); err != nil {
		s.recordError("clickhouse_resolve")
		return models.Symbol{}, fmt.Errorf("resolve %s: %w", ticker, err)
	}
	if n == 0 {
		return models.Symbol{}, fmt.Errorf("%w: %s", ErrUnknownAsset, ticker)
	}
	return models.Symbol{Ticker: ticker, Venue: s.venue, Code: ticker}, nil
}

// History returns the latest bars of every symbol, sorted by time then symbol.
func (s *CHMarketData) History(ctx context.Context, symbols []models.Symbol, bars int, res domrepo.Resolution) ([]models.Bar, error) {
	out := make([]models.Bar, 0, len(symbols)*bars)
	for _, sym := range symbols {
		b, err := s.latest(ctx, sym, bars, res)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Time.Equal(out[j].Time) {
			return out[i].Time.Before(out[j].Time)
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out, nil
}

// Indicator runs ind over the latest bars of sym.
func (s *CHMarketData) Indicator(ctx context.Context, ind domsvc.Indicator, sym models.Symbol, bars int, res domrepo.Resolution) ([]models.IndicatorRecord, error) {
	b, err := s.latest(ctx, sym, bars, res)
	if err != nil {
		return nil, err
	}
	return ind.Compute(b), nil
}

func (s *CHMarketData) latest(ctx context.Context, sym models.Symbol, n int, res domrepo.Resolution) ([]models.Bar, error) {
	start := time.Now()
	table, err := s.tableFor(res)
	if err != nil {
		return nil, err
	}
	const qtpl = `
        SELECT bucket, open, high, low, close, vol
        FROM %s
        WHERE symbol = ?
        ORDER BY bucket DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, table), sym.Code, n)
	if err != nil {
		s.logFailure("query", table, sym, err)
		return nil, fmt.Errorf("latest candles %s: %w", sym.Code, err)
	}
	defer rows.Close()

	label := sym.String()
	tmp := make([]models.Bar, 0, n)
	for rows.Next() {
		b := models.Bar{Symbol: label}
		if err := rows.Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			s.logFailure("scan", table, sym, err)
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		b.Time = b.Time.UTC()
		tmp = append(tmp, b)
	}
	if err := rows.Err(); err != nil {
		s.logFailure("rows", table, sym, err)
		return nil, fmt.Errorf("rows: %w", err)
	}
	// reverse to ASC
	for i, j := 0, len(tmp)-1; i < j; i, j = i+1, j-1 {
		tmp[i], tmp[j] = tmp[j], tmp[i]
	}
	if s.metrics != nil {
		s.metrics.RecordFetch("clickhouse", "candles")
	}
	s.l.Debug("clickhouse latest candles ok",
		applogger.String("table", table),
		applogger.String("symbol", sym.Code),
		applogger.Int("limit", n),
		applogger.Int("rows", len(tmp)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return tmp, nil
}

func (s *CHMarketData) tableFor(res domrepo.Resolution) (string, error) {
	t, ok := s.tables[res]
	if !ok || t == "" {
		return "", fmt.Errorf("unsupported resolution: %s", res)
	}
	return t, nil
}

func (s *CHMarketData) logFailure(stage, table string, sym models.Symbol, err error) {
	s.recordError("clickhouse_candles")
	s.l.Error("clickhouse latest candles "+stage+" error",
		applogger.String("table", table),
		applogger.String("symbol", sym.Code),
		applogger.Error(err),
	)
}

func (s *CHMarketData) recordError(kind string) {
	if s.metrics != nil {
		s.metrics.RecordError(kind)
	}
}

var _ domrepo.MarketData = (*CHMarketData)(nil)
