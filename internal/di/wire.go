//go:build wireinject
// +build wireinject

package di

import (
	"MorningBrief/pkg/config"
	"MorningBrief/pkg/server"

	"github.com/google/wire"
)

// briefSet builds everything needed to produce and deliver a brief.
var briefSet = wire.NewSet(
	ProvideKafkaProducer,
	ProvideLogger,
	ProvideMetrics,
	ProvideMarketProvider,
	ProvideSignalEngine,
	ProvideAnalyzerFactory,
	ProvideReportWriter,
	ProvideTelegramNotifier,
	ProvideHub,
	ProvideFanout,
	ProvideBriefUseCase,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		briefSet,

		// Storage
		ProvideCache,
		ProvideArchive,

		// HTTP
		ProvideRateLimiter,
		ProvideBriefHandler,
		ProvideHTTPServer,

		// Background workers
		ProvideScheduler,
		ProvideRelay,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeRunner wires the one-shot CLI.
func InitializeRunner(cfg *config.Config) (*Runner, error) {
	wire.Build(
		briefSet,
		ProvideRunner,
	)
	return &Runner{}, nil
}
