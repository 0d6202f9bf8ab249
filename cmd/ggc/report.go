package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/franz/gg-curator/internal/report"
	"github.com/franz/gg-curator/internal/util"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a summary report from the database and audit logs",
	Long: `Generate a summary report in Markdown format.

The report includes:
- Table sizes and schema version
- Records per release and per decision
- Sequence and taxonomy link coverage
- Activity recorded in the audit logs
- Top errors

The report is saved to artifacts/reports/<timestamp>/summary.md`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("out", "", "Output directory for report (default: artifacts/reports/<timestamp>)")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	util.InfoLog("=== Generating Summary Report ===")
	util.InfoLog("Database: %s", cfg.Database)

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	util.InfoLog("Analyzing data...")
	summary, err := report.GenerateSummaryReport(context.Background(), db, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	summary.DatabasePath = cfg.Database

	outputDir, _ := cmd.Flags().GetString("out")
	if outputDir == "" {
		outputDir = filepath.Join("artifacts", "reports", time.Now().Format("20060102-150405"))
	}
	outputPath := filepath.Join(outputDir, "summary.md")

	util.InfoLog("Writing report to: %s", outputPath)
	if err := report.WriteMarkdownReport(summary, outputPath); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	util.SuccessLog("Report generated successfully!")
	util.InfoLog("")
	util.InfoLog("Summary:")
	util.InfoLog("  Records: %s", util.FormatCount(summary.Stats.Records))
	util.InfoLog("  Releases: %d", len(summary.Stats.Releases))
	util.InfoLog("  OTU clusters: %s", util.FormatCount(summary.Stats.Clusters))
	if summary.Runs > 0 {
		util.InfoLog("  Logged runs: %d", summary.Runs)
	}
	if len(summary.TopErrors) > 0 {
		util.WarnLog("  Distinct errors: %d", len(summary.TopErrors))
	}
	return nil
}
