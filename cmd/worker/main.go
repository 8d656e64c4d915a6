// The worker runs the asynchronous side of the bid ledger: the outbox relay
// that delivers committed domain events to RabbitMQ, the notification
// consumer, and the periodic expiry sweeper.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"github.com/kisanmandi/bidledger/internal/adapters/database"
	adapterevents "github.com/kisanmandi/bidledger/internal/adapters/events"
	"github.com/kisanmandi/bidledger/internal/config"
	"github.com/kisanmandi/bidledger/internal/domain/bids"
	pkgevents "github.com/kisanmandi/bidledger/pkg/events"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("Unable to create connection pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("Unable to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("Postgres Connected")

	// RabbitMQ
	amqpConn, err := amqp091.Dial(cfg.RabbitURL)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()
	logger.Info("RabbitMQ Connected")

	publisher, err := adapterevents.NewRabbitMQPublisher(amqpConn)
	if err != nil {
		logger.Error("Failed to create RabbitMQ publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	txManager := database.NewPostgresTransactionManager(pool, 3*time.Second)
	outboxRepo := database.NewPostgresOutboxRepository(pool)

	relay := pkgevents.NewOutboxRelay(
		outboxRepo,
		publisher,
		txManager,
		cfg.OutboxBatchSize,
		cfg.OutboxInterval,
		adapterevents.Exchange,
		logger,
	)

	consumer := adapterevents.NewNotificationConsumer(
		amqpConn,
		adapterevents.NewLogSink(logger),
		logger,
	)

	// The sweeper shares the service's expire path so swept bids emit the
	// same events as lazily expired ones.
	store := database.NewPostgresBidStore(pool)
	outboxPublisher := database.NewOutboxPublisher(pool)
	lifecycle := bids.NewLifecycle(cfg.BidTTL, nil)
	service := bids.NewService(store, outboxPublisher, nil, lifecycle, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting Outbox Relay...")
		return relay.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("Starting Notification Consumer...")
		return consumer.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("Starting Expiry Sweeper...", "interval", cfg.SweepInterval)
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				expired, sweepErr := service.ExpireStale(gctx, cfg.SweepBatchSize)
				if sweepErr != nil {
					logger.Error("Expiry sweep failed", "error", sweepErr)
					continue
				}
				if expired > 0 {
					logger.Info("Expired stale bids", "count", expired)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped")
}
