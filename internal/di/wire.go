//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"FinFactor/pkg/config"
	"FinFactor/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(ctx context.Context, cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideCache,

		// Repositories
		ProvideMarketData,
		ProvideFactorSink,

		// Services and use cases
		ProvideAligner,
		ProvideReporter,
		ProvideFactorAnalysis,

		// Transport and application
		ProvideHandler,
		ProvideApp,
	)
	return nil, nil, nil
}
