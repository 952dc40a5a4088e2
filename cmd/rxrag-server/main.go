// Package main provides the HTTP server for rxrag.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/rxrag/internal/app"
	"github.com/raphaelgruber/rxrag/internal/config"
	"github.com/raphaelgruber/rxrag/internal/server"
)

const version = "0.1.0"

func main() {
	// Parse flags
	wipeDB := flag.Bool("wipe", false, "wipe all catalog data on startup (testing only)")
	seedFile := flag.String("seed", "", "seed the catalog from a YAML fixture on startup")
	flag.Parse()

	// Load configuration
	cfg := config.Load()

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	logger.Info("rxrag-server starting",
		"version", version,
		"port", cfg.ServerPort,
		"provider", cfg.LLMProvider,
		"model", cfg.LLMModel,
		"drug_db", cfg.DrugDBPath,
		"fhir_dir", cfg.FHIRDataDir,
	)

	// Create context with cancellation on shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *wipeDB, *seedFile); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, wipe bool, seedFile string) error {
	setupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	a, err := app.New(setupCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("failed to close catalog", "error", err)
		}
	}()

	// Wipe database if requested (via flag or env var)
	if wipe || os.Getenv("RXRAG_WIPE_DB") == "true" {
		if err := a.WipeData(setupCtx); err != nil {
			return fmt.Errorf("wipe catalog: %w", err)
		}
	}
	if seedFile != "" {
		n, err := a.DB().SeedFromFile(setupCtx, seedFile)
		if err != nil {
			return err
		}
		logger.Info("catalog seeded", "file", seedFile, "medications", n)
	}

	assistant, err := a.Assistant(setupCtx)
	if err != nil {
		return err
	}

	srv := server.New(assistant, a.Metrics(), logger)
	return srv.Run(ctx, fmt.Sprintf(":%d", cfg.ServerPort))
}
