package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/LavonTMCQ/bundledatabase-sub001/internal/adapter"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/config"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/ingest"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/logger"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/providers/indexer"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadIngestorConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:     cfg.Debug,
		SentryDSN: cfg.SentryDSN,
		Tags: map[string]string{
			"service": "ingestor",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting event ingestor")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err))
	}
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	if err := store.Migrate(db); err != nil {
		logger.FatalCtx(ctx, "Failed to run migrations", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database")

	dataStore := store.NewPGStore(db)

	// Event feed client
	httpClient := adapter.NewHTTPClient(30*time.Second, 2*time.Minute)
	feed := indexer.NewClient(cfg.Indexer.URL, cfg.Indexer.BatchLimit, httpClient)

	ingestor := ingest.New(ingest.Config{
		PollInterval: cfg.Indexer.PollInterval,
		ErrorBackoff: cfg.Indexer.ErrorBackoff,
	}, feed, dataStore, adapter.NewClock())

	errCh := make(chan error, 1)
	go func() {
		if err := ingestor.Run(ctx); err != nil {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "ingestor"))
		cancel()
	}

	logger.Info("Event ingestor stopped")
}
