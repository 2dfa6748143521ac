package finnhub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"FinFactor/internal/domain/models"
	drepo "FinFactor/internal/domain/repository"
	dsvc "FinFactor/internal/domain/service"
	apphttp "FinFactor/pkg/http"
	applogger "FinFactor/pkg/logger"

	"github.com/sony/gobreaker"
)

const DefaultBaseURL = "https://finnhub.io/api/v1"

var (
	ErrUnknownAsset = errors.New("finnhub: unknown asset")
	ErrBadCandles   = errors.New("finnhub: malformed candle response")
)

// Option configures Client.
type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithVenue sets the exchange prefix used for forex and crypto codes.
func WithVenue(v string) Option {
	return func(c *Client) { c.venue = strings.ToUpper(v) }
}

// WithAssetClass selects the candle endpoint: forex, stock or crypto.
func WithAssetClass(class string) Option {
	return func(c *Client) { c.assetClass = class }
}

func WithHTTPClient(h *apphttp.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithMetrics(m drepo.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) { c.l = l }
}

// WithClock overrides the reference time for candle windows.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithBreaker opens the circuit after failures consecutive upstream errors
// and probes again after cooldown.
func WithBreaker(failures uint32, cooldown time.Duration) Option {
	return func(c *Client) {
		c.breakerFailures = failures
		c.breakerCooldown = cooldown
	}
}

// Client implements MarketData over the Finnhub REST candle endpoints.
type Client struct {
	apiKey     string
	baseURL    string
	venue      string
	assetClass string

	http    *apphttp.Client
	breaker *gobreaker.CircuitBreaker
	now     func() time.Time
	metrics drepo.Metrics
	l       *applogger.Logger

	breakerFailures uint32
	breakerCooldown time.Duration
}

// New creates a Finnhub market data source.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:          apiKey,
		baseURL:         DefaultBaseURL,
		venue:           "OANDA",
		assetClass:      "forex",
		now:             time.Now,
		l:               applogger.Nop(),
		breakerFailures: 5,
		breakerCooldown: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = apphttp.NewClient(apphttp.WithTimeout(15*time.Second), apphttp.WithRateLimit(1, 5))
	}
	failures := c.breakerFailures
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "finnhub",
		Timeout: c.breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.l.Warn("circuit breaker state change",
				applogger.String("breaker", name),
				applogger.String("from", from.String()),
				applogger.String("to", to.String()),
			)
		},
	})
	return c
}

// isSuccessful keeps client-side request errors from tripping the breaker.
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	var se *apphttp.StatusError
	if errors.As(err, &se) {
		return se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests
	}
	return errors.Is(err, context.Canceled)
}

// Resolve maps a ticker to the provider code of the configured asset class.
// Forex pairs must be six letters: EURUSD -> OANDA:EUR_USD.
func (c *Client) Resolve(_ context.Context, asset string) (models.Symbol, error) {
	ticker := strings.ToUpper(strings.TrimSpace(models.NormalizeAsset(asset)))
	if ticker == "" {
		return models.Symbol{}, fmt.Errorf("%w: %q", ErrUnknownAsset, asset)
	}
	switch c.assetClass {
	case "forex":
		if len(ticker) != 6 {
			return models.Symbol{}, fmt.Errorf("%w: forex pair %q", ErrUnknownAsset, asset)
		}
		return models.Symbol{
			Ticker: ticker,
			Venue:  c.venue,
			Code:   c.venue + ":" + ticker[:3] + "_" + ticker[3:],
		}, nil
	case "crypto":
		return models.Symbol{Ticker: ticker, Venue: c.venue, Code: c.venue + ":" + ticker}, nil
	default:
		return models.Symbol{Ticker: ticker, Venue: "US", Code: ticker}, nil
	}
}

// History fetches the latest bars of every symbol, sorted by time then symbol.
func (c *Client) History(ctx context.Context, symbols []models.Symbol, bars int, res drepo.Resolution) ([]models.Bar, error) {
	out := make([]models.Bar, 0, len(symbols)*bars)
	for _, sym := range symbols {
		candles, err := c.candles(ctx, sym, bars, res)
		if err != nil {
			return nil, err
		}
		out = append(out, candles...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Time.Equal(out[j].Time) {
			return out[i].Time.Before(out[j].Time)
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out, nil
}

// Indicator fetches the latest bars of one symbol and runs ind over them.
func (c *Client) Indicator(ctx context.Context, ind dsvc.Indicator, sym models.Symbol, bars int, res drepo.Resolution) ([]models.IndicatorRecord, error) {
	candles, err := c.candles(ctx, sym, bars, res)
	if err != nil {
		return nil, err
	}
	return ind.Compute(candles), nil
}

type candleResponse struct {
	Close  []float64 `json:"c"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Open   []float64 `json:"o"`
	Status string    `json:"s"`
	Time   []int64   `json:"t"`
	Volume []float64 `json:"v"`
}

func (c *Client) candles(ctx context.Context, sym models.Symbol, bars int, res drepo.Resolution) ([]models.Bar, error) {
	start := time.Now()
	to := c.now().UTC()
	from := to.Add(-window(bars, res))

	opts := &apphttp.RequestOptions{
		Method:  http.MethodGet,
		URL:     c.baseURL + endpoint(c.assetClass),
		Headers: map[string]string{"X-Finnhub-Token": c.apiKey},
		QueryParams: map[string][]string{
			"symbol":     {sym.Code},
			"resolution": {resolutionCode(res)},
			"from":       {strconv.FormatInt(from.Unix(), 10)},
			"to":         {strconv.FormatInt(to.Unix(), 10)},
		},
	}

	raw, err := c.breaker.Execute(func() (interface{}, error) {
		var resp candleResponse
		if err := c.http.SendAndParse(ctx, opts, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
	if err != nil {
		c.recordError("finnhub_candles")
		c.l.Error("finnhub candles request failed",
			applogger.String("symbol", sym.Code),
			applogger.String("resolution", string(res)),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("finnhub candles %s: %w", sym.Code, err)
	}
	if c.metrics != nil {
		c.metrics.RecordFetch("finnhub", "candles")
	}

	out, err := toBars(raw.(*candleResponse), sym.String())
	if err != nil {
		c.recordError("finnhub_decode")
		return nil, fmt.Errorf("%s: %w", sym.Code, err)
	}
	if len(out) > bars {
		out = out[len(out)-bars:]
	}
	c.l.Debug("finnhub candles ok",
		applogger.String("symbol", sym.Code),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func toBars(r *candleResponse, symbol string) ([]models.Bar, error) {
	switch r.Status {
	case "no_data":
		return []models.Bar{}, nil
	case "ok":
	default:
		return nil, fmt.Errorf("%w: status %q", ErrBadCandles, r.Status)
	}
	n := len(r.Time)
	if len(r.Close) != n || len(r.Open) != n || len(r.High) != n || len(r.Low) != n {
		return nil, fmt.Errorf("%w: column lengths differ", ErrBadCandles)
	}
	out := make([]models.Bar, n)
	for i := range r.Time {
		out[i] = models.Bar{
			Time:   time.Unix(r.Time[i], 0).UTC(),
			Symbol: symbol,
			Open:   r.Open[i],
			High:   r.High[i],
			Low:    r.Low[i],
			Close:  r.Close[i],
		}
		if i < len(r.Volume) {
			out[i].Volume = r.Volume[i]
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

// window is the calendar span requested for bars candles. Markets close on
// weekends, so daily requests ask for 7/5 of the count plus a week.
func window(bars int, res drepo.Resolution) time.Duration {
	span := time.Duration(bars) * res.Duration()
	return span*7/5 + 7*24*time.Hour
}

func endpoint(assetClass string) string {
	switch assetClass {
	case "stock":
		return "/stock/candle"
	case "crypto":
		return "/crypto/candle"
	default:
		return "/forex/candle"
	}
}

func resolutionCode(res drepo.Resolution) string {
	switch res {
	case drepo.Minute:
		return "1"
	case drepo.Hour:
		return "60"
	default:
		return "D"
	}
}

func (c *Client) recordError(kind string) {
	if c.metrics != nil {
		c.metrics.RecordError(kind)
	}
}

var _ drepo.MarketData = (*Client)(nil)
