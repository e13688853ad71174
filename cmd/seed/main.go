package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/trogers1052/market-forecast/internal/config"
	"github.com/trogers1052/market-forecast/internal/database"
	"github.com/trogers1052/market-forecast/internal/logging"
	"github.com/trogers1052/market-forecast/internal/seed"
	"go.uber.org/zap"
)

func main() {
	file := flag.String("file", "sp500_companies.csv", "companies CSV to load")
	configPath := flag.String("config", config.DefaultPath, "config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	f, err := os.Open(*file)
	if err != nil {
		logger.Fatal("Failed to open companies file", zap.Error(err))
	}
	defer f.Close()

	stocks, err := seed.ParseCompanies(f)
	if err != nil {
		logger.Fatal("Failed to parse companies file", zap.Error(err))
	}

	result := seed.Load(context.Background(), db, stocks, logger)
	logger.Info("Seed finished",
		zap.String("file", *file),
		zap.Int("loaded", len(result.OK)),
		zap.Strings("failed", result.FailedSymbols()),
	)
	if result.AllFailed() {
		os.Exit(1)
	}
}
