package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vaibhavgarg230/trustlens-sub001/internal/alerting"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/authenticity"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/behavioral"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/collusion"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/config"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/consensus"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/database"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/events"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/external"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/handlers"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/linguistic"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/metrics"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/trust"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/workflow"
)

const (
	serviceName = "trustlens"
	version     = "1.0.0"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Setup logging
	logger, err := setupLogging(cfg)
	if err != nil {
		fmt.Printf("Failed to setup logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting trust scoring pipeline",
		zap.String("service", serviceName),
		zap.String("version", version),
		zap.String("environment", cfg.Environment))

	// Setup database connection
	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	// Run database migrations
	if err := database.RunMigrations(cfg.Database); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Setup trust-score cache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer redisClient.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Trust-score cache unavailable, continuing without it", zap.Error(err))
		redisClient = nil
	}
	pingCancel()

	// Setup event publisher
	publisher := events.NewPublisher(cfg.Kafka, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error("Failed to close event publisher", zap.Error(err))
		}
	}()

	// Setup repositories
	actorRepo := database.NewActorRepository(db, logger)
	reviewRepo := database.NewReviewRepository(db, logger)
	alertRepo := database.NewAlertRepository(db, logger)

	// Setup metrics collector
	collector := metrics.NewCollector()

	// Setup alert emitter
	emitter := alerting.NewEmitter(alertRepo, publisher, collector, cfg.Alerting, logger)

	// Setup detection pipeline
	detector := collusion.NewDetector(actorRepo, cfg.Scoring.RegistrationBurstMin, logger)
	behavioralClassifier := behavioral.NewClassifier(logger)

	var signals linguistic.SignalService
	if cfg.External.Enabled {
		signals = external.NewClient(cfg.External, collector, logger)
	}
	textClassifier := linguistic.NewClassifier(signals, logger)
	engine := authenticity.NewEngine(textClassifier, logger)

	// Setup trust calculator
	calculator := trust.NewCalculator(
		actorRepo,
		detector,
		redisClient,
		cfg.Redis.TTL,
		emitter,
		publisher,
		cfg.Scoring,
		logger,
	)

	// Setup review authentication workflow
	aggregator := consensus.NewAggregator(cfg.Scoring.VoteQuorum, cfg.Scoring.ConsensusConfidence)
	wf := workflow.New(
		reviewRepo,
		reviewRepo,
		engine,
		behavioralClassifier,
		aggregator,
		emitter,
		publisher,
		collector,
		cfg.Scoring,
		logger,
	)

	// Setup HTTP handlers
	httpHandlers := handlers.NewHTTPHandler(wf, calculator, behavioralClassifier, alertRepo, reviewRepo, collector, logger)

	httpRouter := mux.NewRouter()
	httpRouter.Use(collector.HTTPMiddleware)
	httpHandlers.RegisterRoutes(httpRouter)
	httpRouter.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.Int("port", cfg.Server.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
	}

	logger.Info("Service shutdown complete")
}

// setupLogging configures structured logging.
func setupLogging(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Logging.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}
	if cfg.Debug {
		level = zapcore.DebugLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
