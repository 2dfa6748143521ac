package server

import (
	"context"
	"errors"
	"fmt"
	"io"

	"FinFactor/internal/usecase"
	"FinFactor/pkg/config"
	xhttp "FinFactor/pkg/http"
	applogger "FinFactor/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
)

// App owns the wired components and their shutdown.
type App struct {
	cfg      *config.Config
	l        *applogger.Logger
	analysis *usecase.FactorAnalysis
	handler  xhttp.Handler
	registry *prometheus.Registry
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	analysis *usecase.FactorAnalysis,
	handler xhttp.Handler,
	registry *prometheus.Registry,
) *App {
	return &App{cfg: cfg, l: l, analysis: analysis, handler: handler, registry: registry}
}

// Logger returns the application logger.
func (a *App) Logger() *applogger.Logger { return a.l }

// RunOnce builds the factor, evaluates it and prints the report to w.
func (a *App) RunOnce(ctx context.Context, w io.Writer) error {
	a.l.Info("analysis starting",
		applogger.Strings("assets", a.cfg.Factor.Assets),
		applogger.String("source", a.cfg.Source),
		applogger.String("sink", a.cfg.Sink),
	)
	res, err := a.analysis.Run(ctx, w)
	if err != nil {
		return err
	}
	a.l.Info("analysis finished", applogger.String("run_id", res.RunID))
	return nil
}

// Serve exposes the factor API until ctx is cancelled. The factor table is
// built up front; a failed warm-up is logged and retried on first request.
func (a *App) Serve(ctx context.Context) error {
	if a.handler == nil {
		return errors.New("no http handler configured")
	}
	if _, err := a.analysis.Builder(ctx); err != nil {
		a.l.Warn("factor warm-up failed", applogger.Error(err))
	}

	s := a.cfg.Server
	opts := []xhttp.ServerOption{
		xhttp.WithAddress(s.Host, s.Port),
		xhttp.WithTimeouts(s.ReadTimeout, s.WriteTimeout, s.ShutdownTimeout),
		xhttp.WithCORSOrigins(s.CORSOrigins...),
	}
	if a.registry != nil {
		opts = append(opts, xhttp.WithRegistry(a.registry))
	}
	srv := xhttp.NewServer(a.l, a.handler, opts...)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
