package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/kisanmandi/bidledger/internal/adapters/api"
	"github.com/kisanmandi/bidledger/internal/adapters/database"
	"github.com/kisanmandi/bidledger/internal/adapters/translate"
	"github.com/kisanmandi/bidledger/internal/config"
	"github.com/kisanmandi/bidledger/internal/domain/bids"
	"github.com/kisanmandi/bidledger/pkg/auth"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load .env files (ignore errors - they're optional)
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

	if cfg.AutoMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			logger.Error("Failed to run migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("Migrations applied")
	}

	// Translator (optional): external HTTP service, cached in Redis when
	// a Redis address is configured.
	var translator bids.Translator
	if cfg.TranslateURL != "" {
		translator = translate.NewHTTPTranslator(cfg.TranslateURL, cfg.TranslateTimeout)
		if cfg.RedisAddr != "" {
			rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			if pingErr := rdb.Ping(ctx).Err(); pingErr != nil {
				logger.Warn("Redis connection failed, translation cache disabled", "error", pingErr)
			} else {
				logger.Info("Redis Connected")
				translator = translate.NewCachedTranslator(translator, rdb, cfg.TranslateCacheTTL, logger)
			}
		}
	}

	// Wiring: store -> lifecycle -> service -> HTTP. Events go through the
	// outbox; the relay worker delivers them to the broker.
	store := database.NewPostgresBidStore(pool)
	publisher := database.NewOutboxPublisher(pool)
	lifecycle := bids.NewLifecycle(cfg.BidTTL, nil)
	service := bids.NewService(store, publisher, translator, lifecycle, logger)

	signer := auth.NewSigner([]byte(cfg.JWTSecret), cfg.JWTIssuer, 15*time.Minute)
	handler := api.NewHandler(service, logger)
	router := api.NewRouter(handler, auth.Middleware(signer))

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting Bid Ledger API", "addr", cfg.ServerAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}

// runMigrations applies schema migrations over database/sql, which goose
// requires.
func runMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	return database.Migrate(db)
}
