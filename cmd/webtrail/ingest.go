package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/webtrail/internal/blocklist"
	"github.com/nao1215/webtrail/internal/classify"
	"github.com/nao1215/webtrail/internal/config"
	"github.com/nao1215/webtrail/internal/database"
	"github.com/nao1215/webtrail/internal/ingest"
	"github.com/nao1215/webtrail/internal/model"
)

// NewIngestCmd creates the ingest command.
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest browsing history into the local store",
		Long: `Ingest reads a browsing history export, filters it against the
domain blocklist, deduplicates it against the local store, and
optionally classifies each new page through the classification service.

The input is a JSON export with a top-level "items" array and an
optional "visits" map from URL to visit records.

Examples:
  # Ingest the last 90 days from an export
  webtrail ingest --input history.json

  # Ingest a shorter window and classify through a local service
  webtrail ingest --input history.json --days 14 --classifier http://127.0.0.1:8090

  # Ingest and drop rows older than the window
  webtrail ingest --input history.json --prune`,
		RunE: runIngestCmd,
	}

	cmd.Flags().StringP("input", "i", "", "Path to the history export (JSON)")
	cmd.Flags().IntP("days", "d", 0, "Lookback window in days (default from config)")
	cmd.Flags().String("db", "", "Database directory (default: XDG data dir)")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .webtrail in current or home directory)")
	cmd.Flags().String("classifier", "", "Base URL of the classification service")
	cmd.Flags().Bool("prune", false, "Delete stored rows older than the lookback window")

	if err := cmd.MarkFlagRequired("input"); err != nil {
		panic(err)
	}

	return cmd
}

// runIngestCmd executes the ingest command.
func runIngestCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if classifier, err := cmd.Flags().GetString("classifier"); err == nil && classifier != "" {
		cfg.ClassifierURL = classifier
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	input, err := cmd.Flags().GetString("input")
	if err != nil {
		return err
	}
	prune, err := cmd.Flags().GetBool("prune")
	if err != nil {
		return err
	}

	return runIngest(ctx, cmd, cfg, input, prune, logger)
}

// runIngest wires the pipeline and executes one window ingest.
func runIngest(ctx context.Context, cmd *cobra.Command, cfg *config.Config, input string, prune bool, logger *slog.Logger) error {
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	logger.Info("database opened", "dir", cfg.DBDir)

	denylist := append(blocklist.DefaultDenylist(), cfg.ExtraDenylist...)
	filter, err := blocklist.New(cfg.BlocklistURL,
		blocklist.WithHTTPClient(&http.Client{Timeout: cfg.BlocklistTimeout}),
		blocklist.WithExtraDomains(denylist),
		blocklist.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create blocklist filter: %w", err)
	}

	provider, err := ingest.NewFileProvider(input)
	if err != nil {
		return fmt.Errorf("failed to open history export: %w", err)
	}

	opts := []ingest.CoordinatorOption{
		ingest.WithConcurrency(cfg.ClassifyConcurrency),
		ingest.WithCoordinatorLogger(logger),
	}
	if cfg.ClassifierURL != "" {
		service := classify.NewHTTPService(cfg.ClassifierURL)
		gateway := classify.NewGateway(service, db, classify.NewSession(),
			classify.WithThreshold(cfg.ClassifyThreshold),
			classify.WithReadyTimeout(cfg.ClassifyReadyTimeout),
			classify.WithPollInterval(cfg.ClassifyPollInterval),
			classify.WithGatewayLogger(logger),
		)
		opts = append(opts, ingest.WithClassifier(gateway))
	} else {
		logger.Info("no classification service configured, ingesting without categories")
	}

	coordinator := ingest.NewCoordinator(provider, filter, db, opts...)

	result, err := coordinator.IngestWindow(ctx, cfg.LookbackDays)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Ingested %d of %d events (%d blocked, %d duplicates) in %s\n",
		result.Stored, result.Fetched, result.Blocked,
		result.Fetched-result.Blocked-result.Stored, result.Elapsed.Round(time.Millisecond))
	if result.Classified > 0 || result.Failed > 0 {
		fmt.Fprintf(out, "Classified %d items, %d failures skipped\n",
			result.Classified, result.Failed)
	}

	if prune {
		cutoff := model.MillisFromTime(time.Now().AddDate(0, 0, -cfg.LookbackDays))
		deleted, err := db.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("prune failed: %w", err)
		}
		fmt.Fprintf(out, "Pruned %d rows older than %d days\n", deleted, cfg.LookbackDays)
	}
	return nil
}
