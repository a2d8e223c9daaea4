package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tjsync/config"
	"tjsync/inspect"
	"tjsync/output"
)

var (
	exportFormat string
	exportMode   string
	exportOutput string
	exportDelta  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the Toggl/Jira diff of a window to CSV/Excel",
	Long: `Inspect the rolling window and export the result.

Modes:
- raw: export each pairing with its actions and messages
- daily: export per-day aggregates (start/end, Toggl hours, Jira hours, break hours, actions)

Output format can be selected explicitly via --format or inferred from --output extension.`,
	Example: `
  # Export the current window to CSV
  tjsync export --output ./diff.csv

  # Export last week's window to Excel
  tjsync export --delta -7 --output ./diff.xlsx

  # Export daily summary to CSV
  tjsync export --mode daily --output ./daily-summary.csv

  # Force Excel format independent of extension
  tjsync export --mode daily --format excel --output ./daily-summary.out
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadAndValidate()
		if err != nil {
			return err
		}

		a, err := newApp(cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.inspector.Inspect(cmd.Context(), a.window(exportDelta))
		if err != nil {
			return err
		}
		return exportReport(report, exportOutput, exportFormat, exportMode)
	},
}

// exportReport writes report to path as raw rows or daily summaries.
func exportReport(report inspect.Report, path, format, mode string) error {
	if strings.TrimSpace(format) == "" {
		detected, err := output.FormatFromPath(path)
		if err != nil {
			return err
		}
		format = detected
	}

	switch strings.TrimSpace(strings.ToLower(mode)) {
	case "", "raw":
		writer, err := output.WriterForFormat(format)
		if err != nil {
			return err
		}
		if err := writer.Write(path, report.Rows); err != nil {
			return err
		}
		fmt.Printf("Export completed. Rows: %d, Mode: raw, Format: %s, File: %s\n", len(report.Rows), format, path)
	case "daily":
		summaries := output.BuildDailySummaries(report.Days)
		if err := output.WriteDailySummaries(path, format, summaries); err != nil {
			return err
		}
		fmt.Printf("Export completed. Days: %d, Mode: daily, Format: %s, File: %s\n", len(summaries), format, path)
	default:
		return fmt.Errorf("unsupported export mode: %s (supported: raw, daily)", mode)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().IntVar(&exportDelta, "delta", 0, "Shift the window by this many days (negative = past)")
	exportCmd.Flags().StringVar(&exportMode, "mode", "raw", "Export mode: raw|daily")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "", "Output format: csv|excel (optional, inferred from output extension)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file path")

	_ = exportCmd.MarkFlagRequired("output")
}
