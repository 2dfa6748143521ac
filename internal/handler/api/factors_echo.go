package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	models "FinFactor/internal/domain/models"
	"FinFactor/internal/service/ratelimit"
	"FinFactor/internal/services/analysis"
	"FinFactor/internal/services/factor"
	"FinFactor/internal/usecase"
	xhttp "FinFactor/pkg/http"
	xlogger "FinFactor/pkg/logger"
	"FinFactor/pkg/util"

	"github.com/labstack/echo/v4"
)

// FactorsEchoHandler serves the factor tables and their evaluation.
type FactorsEchoHandler struct {
	logger *xlogger.Logger
	uc     *usecase.FactorAnalysis
	health func(ctx context.Context) error
	limit  *ratelimit.Limiter
}

func NewFactorsEchoHandler(logger *xlogger.Logger, uc *usecase.FactorAnalysis) *FactorsEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &FactorsEchoHandler{logger: logger, uc: uc}
}

// WithHealthCheck adds a dependency probe to /healthz.
func (h *FactorsEchoHandler) WithHealthCheck(fn func(ctx context.Context) error) *FactorsEchoHandler {
	h.health = fn
	return h
}

// WithRefreshLimit throttles POST /api/refresh per client IP.
func (h *FactorsEchoHandler) WithRefreshLimit(l *ratelimit.Limiter) *FactorsEchoHandler {
	h.limit = l
	return h
}

func (h *FactorsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api")
	g.GET("/factors", h.Factors)
	g.GET("/prices", h.Prices)
	g.GET("/factor-data", h.FactorData)
	g.GET("/tearsheet", h.TearSheet)
	g.POST("/refresh", h.Refresh)
}

func (h *FactorsEchoHandler) Health(c echo.Context) error {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.health(ctx); err != nil {
			h.logger.Warn("health check failed", xlogger.Error(err))
			return xhttp.DataResponse(c, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		}
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *FactorsEchoHandler) Factors(c echo.Context) error {
	req := &models.FactorsRequest{}
	if verr := xhttp.BindAndValidate(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	b, err := h.uc.Builder(c.Request().Context())
	if err != nil {
		return h.fail(c, "factors", err)
	}
	table := b.Factors()
	rows := table.Rows()
	if req.Limit > 0 {
		rows = table.Head(req.Limit)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.ListResponse(c, rows, int64(table.Len()))
}

func (h *FactorsEchoHandler) Prices(c echo.Context) error {
	req := &models.PricesRequest{}
	if verr := xhttp.BindAndValidate(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	b, err := h.uc.Builder(c.Request().Context())
	if err != nil {
		return h.fail(c, "prices", err)
	}
	prices := b.Prices()
	dates := prices.Dates()
	if req.Limit > 0 && req.Limit < len(dates) {
		dates = dates[:req.Limit]
	}
	rows := make([]models.PriceRow, len(dates))
	for i, d := range dates {
		rows[i] = models.PriceRow{Date: d, Closes: prices.Row(d)}
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.ListResponse(c, rows, int64(prices.Len()))
}

func (h *FactorsEchoHandler) FactorData(c echo.Context) error {
	req := &models.FactorDataRequest{}
	if verr := xhttp.BindAndValidate(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	params, verr := dataParams(c, req.MaxLoss, req.Quantiles, req.Periods)
	if verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	data, err := h.uc.FactorData(c.Request().Context(), params)
	if err != nil {
		return h.fail(c, "factor data", err)
	}
	if req.Limit > 0 && req.Limit < len(data.Rows) {
		trimmed := *data
		trimmed.Rows = data.Rows[:req.Limit]
		data = &trimmed
	}
	return xhttp.SuccessResponse(c, data)
}

func (h *FactorsEchoHandler) TearSheet(c echo.Context) error {
	req := &models.TearSheetRequest{}
	if verr := xhttp.BindAndValidate(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	params, verr := dataParams(c, req.MaxLoss, req.Quantiles, req.Periods)
	if verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	opts := models.TearSheetOptions{
		LongShort:    req.LongShort == "true",
		GroupNeutral: req.GroupNeutral,
		ByGroup:      req.ByGroup,
	}
	sheet, err := h.uc.TearSheet(c.Request().Context(), params, opts)
	if err != nil {
		return h.fail(c, "tear sheet", err)
	}
	if req.Format == "text" {
		var buf bytes.Buffer
		if err := analysis.Render(&buf, sheet); err != nil {
			return h.fail(c, "tear sheet render", err)
		}
		return c.String(http.StatusOK, buf.String())
	}
	return xhttp.SuccessResponse(c, sheet)
}

func (h *FactorsEchoHandler) Refresh(c echo.Context) error {
	if !h.limit.Allow(c.RealIP()) {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_RATE_LIMITED", "", "refresh rate limit exceeded", http.StatusTooManyRequests))
	}
	b, err := h.uc.Refresh(c.Request().Context())
	if err != nil {
		return h.fail(c, "refresh", err)
	}
	return xhttp.SuccessResponse(c, models.BuildInfo{
		BuiltAt: h.uc.BuiltAt(),
		Assets:  b.Factors().Assets(),
		Rows:    b.Factors().Len(),
		Mean:    b.Band().Mean,
		Std:     b.Band().Std,
	})
}

// dataParams builds usecase overrides; max_loss counts only when present so
// max_loss=0 means no tolerated loss.
func dataParams(c echo.Context, maxLoss float64, quantiles int, periods string) (usecase.FactorDataParams, []xhttp.ValidationError) {
	p := usecase.FactorDataParams{Quantiles: quantiles}
	if c.QueryParams().Has("max_loss") {
		p.MaxLoss = &maxLoss
	}
	if periods == "" {
		return p, nil
	}
	list, err := util.ParseIntList(periods)
	if err != nil {
		return p, []xhttp.ValidationError{{
			Code:    "ERR_PERIODS",
			Field:   "periods",
			Message: "periods must be a comma separated list of positive integers: " + err.Error(),
		}}
	}
	p.Periods = list
	return p, nil
}

// fail maps usecase errors to responses.
func (h *FactorsEchoHandler) fail(c echo.Context, op string, err error) error {
	var mle *analysis.MaxLossExceededError
	switch {
	case errors.As(err, &mle):
		return xhttp.AppErrorResponse(c, xhttp.UnprocessableError("ERR_MAX_LOSS", mle.Error()).
			WithParam("max_loss", mle.MaxLoss).
			WithParam("loss", mle.Loss))
	case errors.Is(err, factor.ErrNoAssets), errors.Is(err, factor.ErrInsufficientLookback):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("%v", err))
	case errors.Is(err, analysis.ErrEmptyFactor), errors.Is(err, analysis.ErrIndexMismatch), errors.Is(err, analysis.ErrNoFactorData):
		return xhttp.AppErrorResponse(c, xhttp.UnprocessableError("ERR_NO_DATA", err.Error()))
	}
	h.logger.Error(op+" usecase error", xlogger.Error(err))
	return xhttp.AppErrorResponse(c, err)
}
