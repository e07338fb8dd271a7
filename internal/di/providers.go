package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	domrepo "Gavel/internal/domain/repository"
	"Gavel/internal/handler"
	"Gavel/internal/handler/api"
	"Gavel/internal/handler/ws"
	mid "Gavel/internal/middleware"
	internalrepo "Gavel/internal/repository"
	icache "Gavel/internal/service/cache"
	"Gavel/internal/services/fraud"
	"Gavel/internal/usecase"
	pkgcache "Gavel/pkg/cache"
	pkgch "Gavel/pkg/clickhouse"
	"Gavel/pkg/config"
	xhttp "Gavel/pkg/http"
	pkgkafka "Gavel/pkg/kafka"
	applogger "Gavel/pkg/logger"
	"Gavel/pkg/metrics"
	pkgqueue "Gavel/pkg/queue"
	"Gavel/pkg/server"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger creates the application logger. Outside development the
// log collector aggregates repeated entries and ships them to Kafka.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment == "development" {
		level = "debug"
		format = "console"
	}
	lgr, err := applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
	if err != nil {
		return nil, err
	}
	if cfg.Environment != "development" {
		lgr.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          "gavel.logs",
			Publisher:      internalrepo.NewKafkaLogPublisher(producer),
		})
	}
	return lgr, nil
}

// ProvideSnapshotCache backs auction snapshot reads. With Redis enabled
// the cache is layered memory-over-Redis, otherwise in-process only.
func ProvideSnapshotCache(cfg *config.Config) pkgcache.Service {
	if cfg.Redis.Enabled {
		host, port := splitHostPort(cfg.Redis.Addr)
		rc, err := pkgcache.NewRedisCache(
			pkgcache.WithRedisHost(host),
			pkgcache.WithRedisPort(port),
			pkgcache.WithRedisPassword(cfg.Redis.Password),
			pkgcache.WithRedisDB(cfg.Redis.DB),
			pkgcache.WithRedisPrefix("gavel:snapshot"),
		)
		if err == nil {
			return pkgcache.NewLayeredCache(rc, pkgcache.WithLayeredMemorySize(4096))
		}
	}
	return pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(4096))
}

func splitHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideStore creates the transactional entity store.
func ProvideStore() domrepo.Store {
	return internalrepo.NewMemoryStore()
}

// ProvideClickHouseClient creates the ClickHouse audit client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.AlertSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideAlertSink creates the ClickHouse fraud-alert audit sink.
func ProvideAlertSink(ch *pkgch.Client, lgr *applogger.Logger) domrepo.AlertSink {
	sink := internalrepo.NewCHAlertStore(ch)
	sink.SetLogger(lgr)
	return sink
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideHub creates the websocket live feed hub.
func ProvideHub(lgr *applogger.Logger) *ws.Hub {
	return ws.NewHub(lgr)
}

// ProvideEventPublisher fans events out to Kafka and the websocket hub.
func ProvideEventPublisher(producer *pkgkafka.Producer, hub *ws.Hub, cfg *config.Config, lgr *applogger.Logger) domrepo.EventPublisher {
	kp := internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.EventsTopic, lgr)
	return internalrepo.NewFanoutPublisher(kp, hub)
}

// ProvideRedisClient creates the shared Redis client, or nil when Redis is
// disabled.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideCooldownCache backs velocity cooldowns with Redis when available
// so cooldowns survive restarts, falling back to process memory.
func ProvideCooldownCache(cfg *config.Config) icache.BytesCache {
	if cfg.Redis.Enabled {
		return icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	return icache.NewTTLCache()
}

// ProvideScorer assembles the fraud detectors.
func ProvideScorer(cfg *config.Config, sink domrepo.AlertSink, cooldowns icache.BytesCache, lgr *applogger.Logger) *fraud.Scorer {
	shill := fraud.NewShillDetector(
		fraud.ShillWeights{
			SameIP:      cfg.Fraud.Weights.SameIP,
			SameDevice:  cfg.Fraud.Weights.SameDevice,
			PingPong:    cfg.Fraud.Weights.PingPong,
			NewAccount:  cfg.Fraud.Weights.NewAccount,
			LastMinute:  cfg.Fraud.Weights.LastMinute,
			LowActivity: cfg.Fraud.Weights.LowActivity,
		},
		cfg.Fraud.BlockThreshold,
		cfg.Fraud.FlagThreshold,
		cfg.Fraud.NewAccountAge,
		cfg.Fraud.LastMinuteWindow,
		cfg.Fraud.LowActivityScore,
	)
	weight := fraud.NewWeightDetector(
		cfg.Fraud.WeightVariance.Block,
		cfg.Fraud.WeightVariance.Dispute,
		cfg.Fraud.WeightVariance.Warn,
	)
	velocity := fraud.NewVelocityControl(
		cfg.Fraud.Velocity.MaxPerMinute,
		cfg.Fraud.Velocity.MinSpacing,
		cfg.Fraud.Velocity.Cooldown,
		cooldowns,
	)
	return fraud.NewScorer(shill, weight, velocity, sink, lgr)
}

// ProvideLedger creates the deposit ledger.
func ProvideLedger(store domrepo.Store, cfg *config.Config) *usecase.DepositLedger {
	return usecase.NewDepositLedger(store, cfg.Auction.HoldExpiry)
}

// ProvideEscrow creates the escrow coordinator.
func ProvideEscrow(
	store domrepo.Store,
	ledger *usecase.DepositLedger,
	events domrepo.EventPublisher,
	m domrepo.Metrics,
	lgr *applogger.Logger,
	cfg *config.Config,
) *usecase.EscrowCoordinator {
	return usecase.NewEscrowCoordinator(store, ledger, events, m, lgr, cfg.Escrow.DisputeWindow)
}

// ProvideRegistry creates the auction machine registry.
func ProvideRegistry(
	store domrepo.Store,
	ledger *usecase.DepositLedger,
	escrow *usecase.EscrowCoordinator,
	events domrepo.EventPublisher,
	m domrepo.Metrics,
	lgr *applogger.Logger,
) *usecase.Registry {
	return usecase.NewRegistry(store, ledger, escrow, events, m, lgr)
}

// ProvideReviewQueue creates the Redis review queue with the intake job
// registered, or nil when Redis is disabled.
func ProvideReviewQueue(cfg *config.Config, client *redis.Client, store domrepo.Store, lgr *applogger.Logger) *pkgqueue.RedisQueue {
	if client == nil {
		return nil
	}
	q := pkgqueue.NewRedisQueue(lgr, &pkgqueue.QueueConfig{Workers: 2, RetryLimit: 3}, client, pkgqueue.ModeProducerConsumer,
		pkgqueue.WithKeyPrefix("gavel:review"))
	q.RegisterJob(usecase.NewReviewJob(internalrepo.ReviewMessageType, store, lgr))
	return q
}

// ProvideReviewPipeline buffers flagged alerts on their way to the review
// queue. Without Redis there is no queue and no pipeline.
func ProvideReviewPipeline(q *pkgqueue.RedisQueue, m domrepo.Metrics, cfg *config.Config) *mid.ReviewPipeline {
	if q == nil {
		return nil
	}
	return mid.NewReviewPipeline(
		internalrepo.NewRedisReviewQueue(q),
		m,
		mid.WithBufferSize(cfg.Fraud.ReviewBuffer),
	)
}

// ProvideBidProcessor creates the bid intake path.
func ProvideBidProcessor(
	registry *usecase.Registry,
	scorer *fraud.Scorer,
	store domrepo.Store,
	events domrepo.EventPublisher,
	m domrepo.Metrics,
	lgr *applogger.Logger,
	pipeline *mid.ReviewPipeline,
	cfg *config.Config,
) *usecase.BidProcessor {
	var review usecase.ReviewDispatcher
	if pipeline != nil {
		review = pipeline
	}
	return usecase.NewBidProcessor(registry, scorer, store, events, m, lgr, review, cfg.Auction.SubmitTimeout)
}

// ProvideKafkaConsumer creates the settlement feed consumer.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Settlement.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Settlement.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Settlement.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Settlement.RetryMax, cfg.Kafka.Settlement.BackoffMin, cfg.Kafka.Settlement.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Settlement.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Settlement.MinBytes, cfg.Kafka.Settlement.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideSettlementHandler registers the escrow transition handler for the
// settlement topic.
func ProvideSettlementHandler(escrow *usecase.EscrowCoordinator, m domrepo.Metrics, cfg *config.Config) *usecase.SettlementEventsHandler {
	return usecase.NewSettlementEventsHandler(cfg.Kafka.Settlement.Topic, escrow, m)
}

// ProvideHTTPHandler composes every route group.
func ProvideHTTPHandler(
	lgr *applogger.Logger,
	registry *usecase.Registry,
	processor *usecase.BidProcessor,
	ledger *usecase.DepositLedger,
	escrow *usecase.EscrowCoordinator,
	scorer *fraud.Scorer,
	store domrepo.Store,
	hub *ws.Hub,
	snapshots pkgcache.Service,
) xhttp.Handler {
	return handler.Composite{
		api.NewAuctionsEchoHandler(lgr, registry, snapshots),
		api.NewBidsEchoHandler(lgr, processor),
		api.NewDepositsEchoHandler(lgr, ledger),
		api.NewEscrowEchoHandler(lgr, escrow, scorer),
		api.NewAdminEchoHandler(lgr, store, ledger),
		hub,
	}
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	lgr *applogger.Logger,
	registry *usecase.Registry,
	ledger *usecase.DepositLedger,
	events domrepo.EventPublisher,
	sink domrepo.AlertSink,
	consumer *pkgkafka.Consumer,
	kh *usecase.SettlementEventsHandler,
	chClient *pkgch.Client,
	q *pkgqueue.RedisQueue,
	pipeline *mid.ReviewPipeline,
	httpHandler xhttp.Handler,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.LoggingHook{Logger: lgr, SlowThreshold: time.Second})
	}
	app := server.New(cfg, lgr, registry, ledger, events, sink, consumer, kh, chClient, q, pipeline)
	app.SetHTTPHandler(httpHandler)
	return app
}
