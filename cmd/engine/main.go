package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mizizzi/inventory-engine/internal/app"
	checkoutcmd "github.com/mizizzi/inventory-engine/internal/checkout/usecase/command"
	stockhttp "github.com/mizizzi/inventory-engine/internal/stock/delivery/http"
	"github.com/mizizzi/inventory-engine/kafka"
	"github.com/mizizzi/inventory-engine/pkg/config"
	"github.com/mizizzi/inventory-engine/pkg/database"
	"github.com/mizizzi/inventory-engine/pkg/locker"
	"github.com/mizizzi/inventory-engine/pkg/logger"
	"github.com/mizizzi/inventory-engine/pkg/metrics"
	"github.com/mizizzi/inventory-engine/pkg/tracing"
)

func main() {
	cfg := config.Load()

	isDevelopment := cfg.Environment == "development"
	logger.Init(cfg.ServiceName, cfg.LogLevel, isDevelopment)

	logger.Logger.Info().
		Str("environment", cfg.Environment).
		Str("log_level", cfg.LogLevel).
		Msg("Starting inventory engine")

	// Tracing
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(cfg.ServiceName, cfg.JaegerEndpoint)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to initialize tracer")
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.Shutdown(ctx, tp); err != nil {
				logger.Logger.Error().Err(err).Msg("Failed to shut down tracer")
			}
		}()
	}

	// Database
	db, err := database.NewGormConnection(cfg.DB)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to get database instance")
	}
	defer sqlDB.Close()

	if err := app.Migrate(db); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to run migrations")
	}
	logger.Logger.Info().Msg("Database initialized successfully")

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	// Key locks: in-process table for a single instance, Redis leases when
	// several instances share the ledger.
	var locks locker.KeyLocker
	if cfg.DistributedLocks {
		locks = locker.NewRedisLeaseLocker(rdb, cfg.LockLeaseTTL)
		logger.Logger.Info().Dur("lease_ttl", cfg.LockLeaseTTL).Msg("Using Redis lease locks")
	} else {
		locks = locker.NewKeyLockTable()
	}

	m := metrics.NewDefault()

	// Kafka
	var publisher checkoutcmd.EventPublisher
	var kafkaPublisher *kafka.Publisher
	if cfg.Kafka.Enabled {
		kafkaPublisher, err = kafka.NewPublisher(cfg.Kafka.Brokers)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to create Kafka publisher")
		}
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	engine, err := app.InitializeEngine(db, rdb, locks, publisher, m, &cfg)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to initialize engine")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reservation expiry sweeper
	go engine.Sweeper.Run(ctx)

	// Order status consumer
	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		consumer, err = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.ConsumerGroupID, []string{kafka.TopicOrderStatusChanged})
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to create Kafka consumer")
		}
		defer consumer.Close()
		consumer.RegisterHandler(kafka.EventTypeOrderStatusChanged, engine.StatusEvents.Handle)
		if err := consumer.Start(ctx); err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to start Kafka consumer")
		}
	}

	// HTTP server
	router := mux.NewRouter()
	engine.Stock.RegisterRoutes(router)
	engine.Reservations.RegisterRoutes(router)
	engine.Carts.RegisterRoutes(router)
	engine.Checkout.RegisterRoutes(router)
	stockhttp.RegisterHealthCheck(router, sqlDB)
	router.Handle("/metrics", promhttp.Handler())

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: otelhttp.NewHandler(c.Handler(router), "inventory-engine"),
	}

	go func() {
		logger.Logger.Info().
			Str("port", cfg.HTTPPort).
			Str("metrics_endpoint", "/metrics").
			Msg("HTTP server started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info().Msg("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
}
