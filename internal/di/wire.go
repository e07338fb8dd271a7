//go:build wireinject
// +build wireinject

package di

import (
	"Gavel/pkg/config"
	"Gavel/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideStore,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideRedisClient,
		ProvideCooldownCache,
		ProvideSnapshotCache,

		// Repositories
		ProvideAlertSink,
		ProvideHub,
		ProvideEventPublisher,
		ProvideReviewQueue,
		ProvideReviewPipeline,

		// Use cases
		ProvideLedger,
		ProvideEscrow,
		ProvideRegistry,
		ProvideScorer,
		ProvideBidProcessor,
		ProvideKafkaConsumer,
		ProvideSettlementHandler,

		// HTTP surface and application server
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
