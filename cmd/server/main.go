package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trogers1052/market-forecast/internal/analytics"
	"github.com/trogers1052/market-forecast/internal/api"
	"github.com/trogers1052/market-forecast/internal/cache"
	"github.com/trogers1052/market-forecast/internal/config"
	"github.com/trogers1052/market-forecast/internal/database"
	"github.com/trogers1052/market-forecast/internal/forecast"
	"github.com/trogers1052/market-forecast/internal/inference"
	"github.com/trogers1052/market-forecast/internal/ingest"
	"github.com/trogers1052/market-forecast/internal/kafka"
	"github.com/trogers1052/market-forecast/internal/logging"
	"github.com/trogers1052/market-forecast/internal/marketdata"
	"github.com/trogers1052/market-forecast/internal/models"
	"github.com/trogers1052/market-forecast/internal/pipeline"
	"github.com/trogers1052/market-forecast/internal/scheduler"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Model
	loader := inference.NewServingLoader(cfg.Model.ServingURL, cfg.Model.Name, cfg.Model.Timeout)
	model := inference.NewHolder(nil)
	if err := model.Load(ctx, loader); err != nil {
		logger.Warn("Model not loaded, predictions disabled until it is", zap.Error(err))
	} else {
		shape, _ := model.ShapeOf()
		logger.Info("Model loaded", zap.String("name", cfg.Model.Name), zap.Int("timesteps", shape.Timesteps))
	}

	// Engines
	epoch, _ := cfg.Ingest.EpochDate()
	symbols := &ingest.TrackedSymbols{Index: cfg.Ingest.IndexSymbols, Monitored: db}
	fetcher := marketdata.NewYahooFetcher(cfg.Yahoo.BaseURL, cfg.Yahoo.Proxy, cfg.Yahoo.Timeout)
	syncer := ingest.NewSyncer(db, fetcher, symbols, ingest.Options{
		Epoch:        epoch,
		Concurrency:  cfg.Ingest.Concurrency,
		FetchTimeout: cfg.Ingest.FetchTimeout,
		RunTimeout:   cfg.Schedule.RunTimeout,
	}, logger)
	stats := analytics.NewStatistics(db, logger)
	engine := forecast.NewEngine(db, model, stats, cfg.Analytics.LongWindow, cfg.Ingest.Concurrency, logger)
	ranker := analytics.NewRanker(db, db, stats, cfg.Analytics.LongWindow, logger)

	// Optional infrastructure
	var rankCache *cache.RankCache
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = cache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Error("Failed to set up Redis, continuing without ranking cache", zap.Error(err))
		} else {
			rankCache = cache.NewRankCache(redisClient, cfg.Redis.RankKey, cfg.Redis.TTL)
			defer redisClient.Close()
		}
	}

	var producer *kafka.Producer
	if cfg.Kafka.Enabled() {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
		defer producer.Close()
	}

	var publisher pipeline.Publisher
	if producer != nil {
		publisher = producer
	}
	var rankWriter pipeline.RankCache
	var rankReader api.RankReader
	if rankCache != nil {
		rankWriter = rankCache
		rankReader = rankCache
	}

	runner := pipeline.NewRunner(db, syncer, symbols, stats, engine, ranker, publisher, rankWriter, pipeline.Options{
		Series:               models.AllSeries,
		Windows:              cfg.Analytics.Windows,
		SkipFreshPredictions: cfg.Analytics.SkipFresh,
	}, logger)

	// Daily schedule
	sched := scheduler.New(ctx, func(ctx context.Context) error {
		if !model.Loaded() {
			if err := model.Load(ctx, loader); err != nil {
				logger.Warn("Model still unavailable", zap.Error(err))
			}
		}
		_, err := runner.RunAll(ctx)
		return err
	}, cfg.Schedule.RunTimeout, logger)
	if err := sched.Register(cfg.Schedule.DailyCron); err != nil {
		logger.Fatal("Failed to schedule daily run", zap.Error(err))
	}
	sched.Start()
	defer sched.Stop()

	if cfg.Schedule.RunOnStart {
		go sched.RunNow(ctx)
	}

	// Command consumer
	if cfg.Kafka.Enabled() {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.CommandsTopic, cfg.Kafka.GroupID, runner, logger)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				logger.Error("Kafka consumer stopped", zap.Error(err))
			}
		}()
	}

	// HTTP server
	handler := api.NewHandler(db, runner, rankReader, cfg.Analytics.LongWindow, logger)
	srv := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      api.SetupRoutes(handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited properly")
}
