package output

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"tjsync/inspect"
	"tjsync/reconcile"
)

type Writer interface {
	Write(path string, rows []inspect.Row) error
}

func WriterForFormat(format string) (Writer, error) {
	switch normalizeFormat(format) {
	case "csv":
		return &CSVWriter{}, nil
	case "excel", "xlsx":
		return &ExcelWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// FormatFromPath infers the output format from the file extension.
func FormatFromPath(path string) (string, error) {
	switch ext := normalizeFormat(strings.TrimPrefix(filepath.Ext(path), ".")); ext {
	case "csv", "xlsx":
		return ext, nil
	case "":
		return "", fmt.Errorf("output file %q has no extension; use .csv or .xlsx", path)
	default:
		return "", fmt.Errorf("unsupported output extension %q; use .csv or .xlsx", ext)
	}
}

var diffHeaders = []string{"Day", "Start", "Issue", "TogglComment", "JiraComment", "Distance", "Actions", "Messages"}

func diffRecord(row inspect.Row) []string {
	pairing := row.Pairing

	issue := ""
	togglComment := ""
	jiraComment := ""
	if pairing.Source != nil {
		issue = pairing.Source.Issue
		togglComment = pairing.Source.Comment
	}
	if pairing.Reference != nil {
		if issue == "" {
			issue = pairing.Reference.Issue
		}
		jiraComment = pairing.Reference.Comment
	}

	distance := ""
	if pairing.Distance != nil {
		distance = strconv.FormatFloat(*pairing.Distance, 'f', 2, 64)
	}

	return []string{
		row.Day.Format("2006-01-02"),
		pairing.Start.Format("15:04"),
		issue,
		togglComment,
		jiraComment,
		distance,
		formatActions(row.Actions),
		formatMessages(row.Messages),
	}
}

func formatActions(actions []reconcile.Action) string {
	parts := make([]string, 0, len(actions))
	for _, action := range actions {
		part := fmt.Sprintf("%s.%s", action.Target, action.Kind)
		if action.ID != "" {
			part += " #" + action.ID
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "; ")
}

func formatMessages(messages []reconcile.Message) string {
	parts := make([]string, 0, len(messages))
	for _, message := range messages {
		parts = append(parts, fmt.Sprintf("[%s] %s", message.Level, message.Text))
	}
	return strings.Join(parts, "; ")
}

func normalizeFormat(value string) string {
	return strings.TrimSpace(strings.ToLower(value))
}
