package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/recyclechain/indexer/internal/chain"
	"github.com/recyclechain/indexer/internal/config"
	"github.com/recyclechain/indexer/internal/contract"
	"github.com/recyclechain/indexer/internal/ingest"
	"github.com/recyclechain/indexer/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	logLevel := flag.String("log-level", "", "log level (debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("starting listener", "contract", cfg.Chain.ContractAddress)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil && ctx.Err() == nil {
		logger.Error("listener exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("listener shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := storage.New(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}

	binding, err := contract.NewBinding(cfg.Chain.ContractAddress)
	if err != nil {
		return err
	}

	client := chain.NewClient(chain.Config{
		URL:           cfg.ProviderURL(),
		DialTimeout:   cfg.Chain.DialTimeout,
		MaxRetries:    cfg.Chain.MaxRetries,
		RetryInterval: cfg.Chain.RetryInterval,
	}, logger)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	manager := ingest.NewManager(
		client,
		binding,
		chain.NewBlockTimestamps(client),
		storage.NewStore(db),
		logger,
	)
	if err := manager.Start(ctx); err != nil {
		return err
	}
	defer manager.Stop()

	<-ctx.Done()
	return ctx.Err()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
