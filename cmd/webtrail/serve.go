package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/webtrail/internal/analytics"
	"github.com/nao1215/webtrail/internal/config"
	"github.com/nao1215/webtrail/internal/database"
	"github.com/nao1215/webtrail/internal/query"
)

// serveShutdownTimeout bounds the graceful drain of in-flight requests.
const serveShutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query API over HTTP",
		Long: `Serve exposes the stored browsing data as a JSON query API.

A single POST /api/query endpoint accepts {"op": ..., "params": ...}
envelopes; each operation is also reachable as a GET route:

  GET /api/history?days=30
  GET /api/visits?url=...
  GET /api/most-visited?days=30&limit=10
  GET /api/top-domains?days=30&limit=10

The server binds to loopback by default; browsing history should not be
reachable off-host unless explicitly configured.`,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("addr", "a", "", "Listen address (default "+config.DefaultServeAddr+")")
	cmd.Flags().IntP("days", "d", 0, "Default lookback window in days")
	cmd.Flags().String("db", "", "Database directory (default: XDG data dir)")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .webtrail in current or home directory)")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, err := cmd.Flags().GetString("addr"); err == nil && addr != "" {
		cfg.ServeAddr = addr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg.Verbose)
	slog.SetDefault(logger)

	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	engine := analytics.NewEngine(db,
		analytics.WithSessionGap(cfg.SessionGap),
		analytics.WithEngineLogger(logger),
	)
	service := query.NewService(db, engine,
		query.WithServiceLogger(logger),
		query.WithDefaultDays(cfg.LookbackDays),
	)

	server := &http.Server{
		Addr:              cfg.ServeAddr,
		Handler:           query.NewHandler(service, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Shut down gracefully on interrupt.
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, draining...")
		case <-ctx.Done():
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serveShutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	logger.Info("query API listening", "addr", cfg.ServeAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
