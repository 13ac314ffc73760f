//go:build wireinject
// +build wireinject

package di

import (
	"TrendPull/pkg/config"
	"TrendPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideCache,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideExchange,

		// Repositories
		ProvideCandleStore,
		ProvideTradeArchive,
		ProvideTradePublisher,
		ProvideTradeLog,
		ProvideStateStore,

		// Use cases
		ProvideTickerCollector,
		ProvideSnapshotBuilder,
		ProvideSignalEvaluator,
		ProvidePositionSizer,
		ProvideIntervalScheduler,
		ProvideTradingLoop,
		ProvideTradeEventsHandler,

		// HTTP + application server
		ProvideStatusHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
