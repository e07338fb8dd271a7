package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "Gavel/internal/domain/repository"
	mid "Gavel/internal/middleware"
	"Gavel/internal/usecase"
	pkgch "Gavel/pkg/clickhouse"
	"Gavel/pkg/config"
	xhttp "Gavel/pkg/http"
	pkgkafka "Gavel/pkg/kafka"
	applogger "Gavel/pkg/logger"
	pkgqueue "Gavel/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg      *config.Config
	logger   *applogger.Logger
	registry *usecase.Registry
	ledger   *usecase.DepositLedger
	events   domrepo.EventPublisher
	sink     domrepo.AlertSink

	consumer *pkgkafka.Consumer
	kh       pkgkafka.MessageHandler
	chClient *pkgch.Client
	queue    *pkgqueue.RedisQueue
	pipeline *mid.ReviewPipeline

	httpServer  *xhttp.Server
	httpHandler xhttp.Handler

	sweepStop chan struct{}
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	lgr *applogger.Logger,
	registry *usecase.Registry,
	ledger *usecase.DepositLedger,
	events domrepo.EventPublisher,
	sink domrepo.AlertSink,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	queue *pkgqueue.RedisQueue,
	pipeline *mid.ReviewPipeline,
) *App {
	return &App{
		cfg:       cfg,
		logger:    lgr,
		registry:  registry,
		ledger:    ledger,
		events:    events,
		sink:      sink,
		consumer:  consumer,
		kh:        kh,
		chClient:  chClient,
		queue:     queue,
		pipeline:  pipeline,
		sweepStop: make(chan struct{}),
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.logger

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithRequestMetrics(l, time.Second),
	)

	// Review pipeline flushes flagged alerts to the review queue.
	if a.pipeline != nil {
		a.pipeline.Start(ctx)
		l.Info("review pipeline started")
	}

	// Redis queue delivers review jobs to the intake worker.
	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			l.Error("redis queue start error", applogger.Error(err))
			return err
		}
	}

	// Settlement consumer drives escrow transitions from carrier updates.
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("settlement consumer started", applogger.String("topic", a.kh.Topic()))
	}

	go a.sweepLoop(ctx)

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}
	l.Info("gavel started", applogger.Int("port", a.cfg.Server.Port))

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// sweepLoop periodically releases expired deposit holds.
func (a *App) sweepLoop(ctx context.Context) {
	interval := a.cfg.Auction.HoldSweepInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.sweepStop:
			return
		case <-ticker.C:
			n, err := a.ledger.SweepExpired(ctx, time.Now().UTC())
			if err != nil {
				a.logger.Warn("hold sweep error", applogger.Error(err))
				continue
			}
			if n > 0 {
				a.logger.Info("expired holds released", applogger.Int("count", n))
			}
		}
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	l := a.logger
	close(a.sweepStop)

	// Stop accepting new work first.
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	// Drain auction machines and decay runners.
	if err := a.registry.Shutdown(shutdownCtx); err != nil {
		l.Warn("registry shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.pipeline != nil {
		a.pipeline.Stop()
	}
	if a.queue != nil {
		if err := a.queue.Stop(shutdownCtx); err != nil {
			l.Warn("redis queue stop error", applogger.Error(err))
		}
	}

	if a.events != nil {
		if err := a.events.Close(); err != nil {
			l.Warn("event publisher close error", applogger.Error(err))
		}
	}
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			l.Warn("alert sink close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
