package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tjsync/config"
	"tjsync/inspect"
	"tjsync/output"
	"tjsync/reconcile"
	"tjsync/web"
)

var (
	diffDelta   int
	diffOutput  string
	diffFormat  string
	diffSummary bool
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show differences between Toggl and Jira for the rolling window",
	Long: `Fetch Toggl time entries and Jira worklogs of the rolling window, pair them
and print the actions a sync would apply, grouped by working day (newest first).

Nothing is written to Toggl or Jira. With --output the report is exported to
CSV or Excel instead of being printed.`,
	Example: `
  # Show the current window
  tjsync diff

  # Show the window one week earlier
  tjsync diff --delta -7

  # Print the report as JSON (same shape as GET /api/diff)
  tjsync diff --format json

  # Print one line per day
  tjsync diff --summary

  # Export to Excel
  tjsync diff --output ./diff.xlsx
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(diffFormat)
		if err != nil {
			return err
		}

		cfg, err := config.LoadAndValidate()
		if err != nil {
			return err
		}

		a, err := newApp(cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.inspector.Inspect(cmd.Context(), a.window(diffDelta))
		if err != nil {
			return err
		}

		if strings.TrimSpace(diffOutput) != "" {
			mode := "raw"
			if diffSummary {
				mode = "daily"
			}
			return exportReport(report, diffOutput, "", mode)
		}
		return printReport(os.Stdout, output.DetectFormat(string(format)), report, diffSummary)
	},
}

func printReport(w io.Writer, format output.Format, report inspect.Report, summary bool) error {
	switch format {
	case output.FormatJSON, output.FormatYAML:
		if summary {
			return output.Encode(w, format, output.BuildDailySummaries(report.Days))
		}
		return output.Encode(w, format, web.BuildReportView(report))
	}

	if summary {
		if err := writeSummaryTable(w, report); err != nil {
			return err
		}
	} else if err := output.WriteReportTable(w, report); err != nil {
		return err
	}

	counts := report.MessageCounts()
	_, err := fmt.Fprintf(w, "\nWindow: %s  Actions: %d  Info: %d  Warnings: %d  Dangers: %d\n",
		formatWindow(report.Window), len(report.Actions()),
		counts[reconcile.LevelInfo], counts[reconcile.LevelWarning], counts[reconcile.LevelDanger])
	return err
}

func writeSummaryTable(w io.Writer, report inspect.Report) error {
	summaries := output.BuildDailySummaries(report.Days)
	rows := make([][]string, 0, len(summaries))
	for _, summary := range summaries {
		rows = append(rows, []string{
			summary.Date,
			fmt.Sprintf("%.2f", summary.TogglHours),
			fmt.Sprintf("%.2f", summary.JiraHours),
			fmt.Sprintf("%.2f", summary.BreakHours),
			fmt.Sprintf("%d", summary.Pairings),
			fmt.Sprintf("%d", summary.Actions),
			fmt.Sprintf("%d", summary.Dangers),
		})
	}
	return output.WriteTable(w, []string{"Date", "Toggl", "Jira", "Break", "Pairings", "Actions", "Dangers"}, rows)
}

func init() {
	rootCmd.AddCommand(diffCmd)

	diffCmd.Flags().IntVar(&diffDelta, "delta", 0, "Shift the window by this many days (negative = past)")
	diffCmd.Flags().StringVarP(&diffOutput, "output", "o", "", "Export to a .csv or .xlsx file instead of printing")
	diffCmd.Flags().StringVar(&diffFormat, "format", "", "Print format: table|json|yaml (default: table on a terminal, json otherwise)")
	diffCmd.Flags().BoolVar(&diffSummary, "summary", false, "Print or export one line per working day")
}
