package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up

	"tradesentry/config"
	"tradesentry/internal/adapters/binancesource"
	"tradesentry/internal/adapters/ledgerhttp"
	"tradesentry/internal/adapters/logger"
	"tradesentry/internal/adapters/metricshttp"
	"tradesentry/internal/adapters/sqlite"
	"tradesentry/internal/engine"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Expose Metrics
	if cfg.EnableMetrics {
		metricsSrv, err := metricshttp.New(cfg.MetricsAddr, appLogger)
		if err != nil {
			appLogger.Error(context.Background(), err, "FATAL: Failed to initialize metrics endpoint")
			log.Fatalf("FATAL: Failed to initialize metrics endpoint: %v", err)
		}
		metricsSrv.Start()
		defer func() {
			if err := metricsSrv.Close(); err != nil {
				appLogger.Error(context.Background(), err, "Error closing metrics endpoint")
			}
		}()
	}

	// 4. Initialize Journal (local audit trail + persisted peaks)
	journal, err := sqlite.NewJournal(sqlite.Config{
		Path:   cfg.JournalPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize journal")
		log.Fatalf("FATAL: Failed to initialize journal: %v", err)
	}
	defer func() {
		if err := journal.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing journal")
		}
	}()

	// 5. Initialize Upstream Source (Binance adapter)
	source, err := binancesource.New(binancesource.Config{
		APIKey:       cfg.APIKey,
		SecretKey:    cfg.SecretKey,
		UseTestnet:   cfg.IsTestnet,
		Symbols:      cfg.Symbols,
		StrategyID:   cfg.StrategyID,
		LookbackDays: cfg.HistoryDays,
		Logger:       appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize upstream source")
		log.Fatalf("FATAL: Failed to initialize upstream source: %v", err)
	}

	// 6. Initialize Ledger Client
	ledger, err := ledgerhttp.New(ledgerhttp.Config{
		BaseURL:   cfg.ServerURL,
		AccountID: cfg.AccountID,
		Timeout:   cfg.RequestTimeout,
		Logger:    appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize ledger client")
		log.Fatalf("FATAL: Failed to initialize ledger client: %v", err)
	}

	// 7. Initialize Engine
	// The Binance adapter offers only the snapshot model; a transition source
	// would be wired here for feed-mode sources.
	eng, err := engine.New(cfg, appLogger, source, nil, ledger, journal)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize engine")
		log.Fatalf("FATAL: Failed to initialize engine: %v", err)
	}

	// 8. Seed state, back-fill history, then run cycles
	ctx := context.Background()
	if err := eng.Initialize(ctx); err != nil {
		appLogger.Error(ctx, err, "FATAL: Engine initialization failed")
		log.Fatalf("FATAL: Engine initialization failed: %v", err)
	}
	defer eng.Close()

	if err := eng.Run(ctx); err != nil {
		appLogger.Error(ctx, err, "Engine exited with error")
		log.Fatalf("FATAL: Engine exited with error: %v", err)
	}

	appLogger.Info(ctx, "Application finished gracefully.")
}
