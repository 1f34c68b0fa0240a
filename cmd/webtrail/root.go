// Package main provides the entry point for the webtrail CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/webtrail/internal/config"
	"github.com/nao1215/webtrail/internal/log"
)

// NewRootCmd creates the root command for webtrail.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webtrail",
		Short: "Browsing history ingestion and analytics pipeline",
		Long: `webtrail ingests browsing history events, filters them against a
domain blocklist, classifies page content through an external service,
and stores everything deduplicated in a local SQLite database.

Stored data is queryable as analytics: top domains, time spent,
cross-site transitions, category trends, and activity histograms.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewIngestCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewReportCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger creates a privacy-masking structured logger based on
// verbosity.
func setupLogger(verbose bool) *slog.Logger {
	return log.NewLogger(os.Stderr, verbose)
}

// loadConfig builds a Config from defaults, an optional YAML file, and
// shared flags. If the user explicitly specified a config file path the
// file must exist; otherwise a missing file is fine.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	found := config.FindConfigFile(configPath)
	if found != "" {
		file, err := config.LoadConfigFile(found)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", found, err)
		}
		cfg.Apply(file)
	} else if configPath != "" {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	if days, err := cmd.Flags().GetInt("days"); err == nil && days > 0 {
		cfg.LookbackDays = days
	}
	if dbDir, err := cmd.Flags().GetString("db"); err == nil && dbDir != "" {
		cfg.DBDir = dbDir
	}
	cfg.Verbose = getVerboseFlag(cmd)

	return cfg, nil
}
