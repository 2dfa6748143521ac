package di

import (
	"context"
	"fmt"
	"time"

	domrepo "FinFactor/internal/domain/repository"
	domsvc "FinFactor/internal/domain/service"
	"FinFactor/internal/handler/api"
	internalrepo "FinFactor/internal/repository"
	"FinFactor/internal/service/finnhub"
	"FinFactor/internal/service/ratelimit"
	"FinFactor/internal/services/analysis"
	"FinFactor/internal/services/factor"
	"FinFactor/internal/usecase"
	"FinFactor/pkg/cache"
	pkgch "FinFactor/pkg/clickhouse"
	"FinFactor/pkg/config"
	xhttp "FinFactor/pkg/http"
	pkgkafka "FinFactor/pkg/kafka"
	applogger "FinFactor/pkg/logger"
	"FinFactor/pkg/metrics"
	"FinFactor/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideRegistry creates a private Prometheus registry with runtime collectors.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) domrepo.Metrics {
	return metrics.NewWithRegisterer(reg)
}

func usesClickHouse(cfg *config.Config) bool {
	return cfg.Source == "clickhouse" || cfg.Sink == "clickhouse"
}

// ProvideClickHouseClient connects to ClickHouse when the source or the sink
// needs it, and returns nil otherwise.
func ProvideClickHouseClient(ctx context.Context, cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if !usesClickHouse(cfg) {
		return nil, func() {}, nil
	}
	ch := cfg.ClickHouse
	client, err := pkgch.NewClient(ctx,
		pkgch.WithAddress(ch.Host, ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithAsyncInsert(ch.AsyncInsert, ch.WaitForAsync),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
		pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if ch.InitSchema {
		schemaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		stmts := append(internalrepo.CandlesSchema(ch.CandlesTable), internalrepo.FactorSchema(ch.FactorTable)...)
		if err := client.InitSchema(schemaCtx, stmts); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	l.Info("clickhouse connected", applogger.String("database", ch.Database))

	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close", applogger.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvideCache creates the market data cache selected by cache.mode; nil for "none".
func ProvideCache(ctx context.Context, cfg *config.Config) (cache.Service, func(), error) {
	c := cfg.Cache
	memory := func() *cache.MemoryCache {
		return cache.NewMemoryCache(
			cache.WithMemoryMaxSize(c.MaxSize),
			cache.WithMemoryCleanup(time.Minute),
		)
	}
	redis := func() (*cache.RedisCache, error) {
		rc, err := cache.NewRedisCache(ctx,
			cache.WithRedisAddr(c.RedisHost, c.RedisPort),
			cache.WithRedisAuth(c.Password, c.RedisDB),
			cache.WithRedisPrefix(c.Prefix),
			cache.WithRedisPool(10, 2, 5*time.Second),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return rc, nil
	}

	var svc cache.Service
	switch c.Mode {
	case "memory":
		svc = memory()
	case "redis":
		rc, err := redis()
		if err != nil {
			return nil, nil, err
		}
		svc = rc
	case "layered":
		rc, err := redis()
		if err != nil {
			return nil, nil, err
		}
		svc = cache.NewLayeredCache(rc, cache.WithLayeredMemory(c.MaxSize, c.TTL/4))
	default:
		return nil, func() {}, nil
	}
	return svc, func() { _ = svc.Close() }, nil
}

// ProvideMarketData selects the upstream source and wraps it with the cache.
func ProvideMarketData(cfg *config.Config, ch *pkgch.Client, c cache.Service, l *applogger.Logger, m domrepo.Metrics) (domrepo.MarketData, error) {
	var src domrepo.MarketData
	switch cfg.Source {
	case "clickhouse":
		if ch == nil {
			return nil, fmt.Errorf("clickhouse source requires a clickhouse client")
		}
		src = internalrepo.NewCHMarketData(ch,
			internalrepo.WithCandlesTable(domrepo.NormalizeResolution(cfg.Factor.Resolution), cfg.ClickHouse.CandlesTable),
			internalrepo.WithVenue(cfg.Finnhub.Venue),
			internalrepo.WithMarketLogger(l),
			internalrepo.WithMarketMetrics(m),
		)
	default:
		fh := cfg.Finnhub
		src = finnhub.New(fh.APIKey,
			finnhub.WithBaseURL(fh.BaseURL),
			finnhub.WithVenue(fh.Venue),
			finnhub.WithAssetClass(cfg.Factor.AssetClass),
			finnhub.WithHTTPClient(xhttp.NewClient(
				xhttp.WithTimeout(fh.Timeout),
				xhttp.WithRateLimit(fh.RatePerSec, fh.Burst),
			)),
			finnhub.WithMetrics(m),
			finnhub.WithLogger(l),
		)
	}
	if c == nil {
		return src, nil
	}
	return internalrepo.NewCachedMarketData(src, c, cfg.Cache.TTL, l, m), nil
}

// ProvideFactorSink creates the destination of clean factor data.
func ProvideFactorSink(cfg *config.Config, ch *pkgch.Client) (domrepo.FactorSink, func(), error) {
	var sink domrepo.FactorSink
	switch cfg.Sink {
	case "clickhouse":
		if ch == nil {
			return nil, nil, fmt.Errorf("clickhouse sink requires a clickhouse client")
		}
		sink = internalrepo.NewCHFactorSink(ch.DB(), cfg.ClickHouse.FactorTable)
	case "kafka":
		k := cfg.Kafka
		producer, err := pkgkafka.NewProducer(
			pkgkafka.WithBrokers(k.Brokers),
			pkgkafka.WithTopic(k.Topic),
			pkgkafka.WithCompression(k.Compression),
			pkgkafka.WithRequiredAcks(k.RequiredAcks),
			pkgkafka.WithBatch(k.BatchSize, 0, k.BatchTimeout),
			pkgkafka.WithWriteTimeout(k.WriteTimeout),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("kafka producer: %w", err)
		}
		sink = internalrepo.NewKafkaFactorSink(producer)
	default:
		sink = internalrepo.NoopSink{}
	}
	return sink, func() { _ = sink.Close() }, nil
}

func ProvideAligner(l *applogger.Logger) domsvc.Aligner {
	return analysis.NewAligner(analysis.WithAlignerLogger(l))
}

func ProvideReporter(l *applogger.Logger) domsvc.Reporter {
	return analysis.NewReporter(analysis.WithReporterLogger(l))
}

// ProvideFactorAnalysis creates the analysis use case from the factor and
// analysis config sections.
func ProvideFactorAnalysis(
	cfg *config.Config,
	src domrepo.MarketData,
	aligner domsvc.Aligner,
	reporter domsvc.Reporter,
	sink domrepo.FactorSink,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.FactorAnalysis {
	f, a := cfg.Factor, cfg.Analysis
	params := factor.Params{
		Assets:     f.Assets,
		Lookback:   f.Lookback,
		Period:     f.Period,
		AssetClass: f.AssetClass,
		Resolution: domrepo.NormalizeResolution(f.Resolution),
	}
	settings := usecase.AnalysisSettings{
		Periods:      a.Periods,
		Quantiles:    a.Quantiles,
		MaxLoss:      a.MaxLoss,
		FilterZScore: a.FilterZScore,
		HeadRows:     a.HeadRows,
	}
	settings.TearSheet.LongShort = a.LongShort
	settings.TearSheet.GroupNeutral = a.GroupNeutral
	settings.TearSheet.ByGroup = a.ByGroup
	return usecase.NewFactorAnalysis(src, aligner, reporter, sink, m, l, params, f.Groups, settings)
}

// ProvideHandler creates the HTTP handler; /healthz pings ClickHouse when connected.
func ProvideHandler(cfg *config.Config, l *applogger.Logger, uc *usecase.FactorAnalysis, ch *pkgch.Client) xhttp.Handler {
	h := api.NewFactorsEchoHandler(l, uc).
		WithRefreshLimit(ratelimit.New(cfg.Server.RefreshRate, cfg.Server.RefreshBurst))
	if ch != nil {
		h.WithHealthCheck(ch.Health)
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	uc *usecase.FactorAnalysis,
	handler xhttp.Handler,
	reg *prometheus.Registry,
) *server.App {
	return server.New(cfg, l, uc, handler, reg)
}
