package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"tjsync/inspect"
	"tjsync/worklog"
)

// Format selects how command results are printed to a terminal or pipe.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// DetectFormat returns the explicit format if set, a table on a terminal and
// JSON otherwise.
func DetectFormat(explicit string) Format {
	if strings.TrimSpace(explicit) != "" {
		return Format(normalizeFormat(explicit))
	}
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return FormatTable
	}
	return FormatJSON
}

func ParseFormat(value string) (Format, error) {
	format := Format(normalizeFormat(value))
	switch format {
	case FormatTable, FormatJSON, FormatYAML, "":
		return format, nil
	default:
		return "", fmt.Errorf("unsupported format %q (valid: table, json, yaml)", value)
	}
}

// Encode writes data as JSON or YAML.
func Encode(w io.Writer, format Format, data any) error {
	switch format {
	case FormatYAML:
		out, err := yaml.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		_, err = w.Write(out)
		return err
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(data)
	default:
		return fmt.Errorf("format %q cannot encode structured data", format)
	}
}

// WriteTable renders rows under headers.
func WriteTable(w io.Writer, headers []string, rows [][]string) error {
	table := tablewriter.NewTable(w)

	headerCells := make([]any, len(headers))
	for i, header := range headers {
		headerCells[i] = header
	}
	table.Header(headerCells...)

	for _, row := range rows {
		cells := make([]any, len(row))
		for i, cell := range row {
			cells[i] = cell
		}
		if err := table.Append(cells...); err != nil {
			return fmt.Errorf("append table row: %w", err)
		}
	}
	return table.Render()
}

var reportHeaders = []string{"Start", "Issue", "Toggl", "Jira", "Distance", "Actions", "Messages"}

// WriteReportTable prints one table per working day, newest first.
func WriteReportTable(w io.Writer, report inspect.Report) error {
	if len(report.Days) == 0 {
		_, err := fmt.Fprintf(w, "No entries between %s and %s.\n",
			report.Window.From.Format("2006-01-02 15:04"), report.Window.To.Format("2006-01-02 15:04"))
		return err
	}

	for i, day := range report.Days {
		summary := summarizeDay(day)
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s %s  toggl %.2fh  jira %.2fh  actions %d\n",
			summary.Date, day.Date.Weekday().String()[:3], summary.TogglHours, summary.JiraHours, summary.Actions); err != nil {
			return err
		}

		rows := make([][]string, 0, len(day.Rows))
		for _, row := range day.Rows {
			record := diffRecord(row)
			rows = append(rows, []string{
				record[1],
				record[2],
				entryCell(row.Pairing.Source),
				entryCell(row.Pairing.Reference),
				record[5],
				record[6],
				record[7],
			})
		}
		if err := WriteTable(w, reportHeaders, rows); err != nil {
			return err
		}
	}
	return nil
}

func entryCell(entry *worklog.Entry) string {
	if entry == nil {
		return "-"
	}
	cell := fmt.Sprintf("%s-%s", entry.Start.Format("15:04"), entry.Stop.Format("15:04"))
	if comment := strings.TrimSpace(entry.Comment); comment != "" {
		cell += " " + comment
	}
	return cell
}
