package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/webtrail/internal/analytics"
	"github.com/nao1215/webtrail/internal/config"
	"github.com/nao1215/webtrail/internal/database"
	"github.com/nao1215/webtrail/internal/report"
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a browsing analytics summary",
		Long: `Report aggregates the stored browsing data over a lookback window
and renders the result: top domains by time, recency-weighted frequent
domains, per-URL engagement, cross-site transitions, category trends,
and activity histograms.

Examples:
  # Text summary of the last 30 days
  webtrail report --days 30

  # Markdown report written to a file
  webtrail report --markdown --output report.md

  # JSON for further processing
  webtrail report --json`,
		RunE: runReportCmd,
	}

	cmd.Flags().IntP("days", "d", 0, "Lookback window in days (default from config)")
	cmd.Flags().String("db", "", "Database directory (default: XDG data dir)")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .webtrail in current or home directory)")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runReportCmd executes the report command.
func runReportCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	asMarkdown, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if asJSON && asMarkdown {
		return fmt.Errorf("--json and --markdown are mutually exclusive")
	}
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Verbose)

	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	engine := analytics.NewEngine(db,
		analytics.WithSessionGap(cfg.SessionGap),
		analytics.WithEngineLogger(logger),
	)
	builder := report.NewBuilder(engine, db, report.WithTopLimit(config.DefaultTopLimit))

	summary, err := builder.Build(cmd.Context(), cfg.LookbackDays)
	if err != nil {
		return fmt.Errorf("failed to build summary: %w", err)
	}

	output, closeOutput, err := reportOutput(cmd, outputPath)
	if err != nil {
		return err
	}
	defer closeOutput()

	writer := newReportWriter(output, asJSON, asMarkdown)
	if _, err := writer.Write(summary); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// newReportWriter selects the writer for the requested format.
func newReportWriter(output io.Writer, asJSON, asMarkdown bool) report.Writer {
	switch {
	case asJSON:
		return report.NewJSONWriter(output, report.WithPrettyPrint())
	case asMarkdown:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output)
	}
}

// reportOutput resolves the report destination: a file when --output is
// given, stdout otherwise.
func reportOutput(cmd *cobra.Command, path string) (io.Writer, func(), error) {
	if path == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { f.Close() }, nil
}
