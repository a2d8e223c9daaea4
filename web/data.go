package web

import (
	"time"

	"tjsync/inspect"
	"tjsync/reconcile"
	"tjsync/storage"
	"tjsync/worklog"
)

type ReportView struct {
	From     string         `json:"from,omitempty"`
	To       string         `json:"to,omitempty"`
	Days     []DayView      `json:"days"`
	Actions  int            `json:"actions"`
	Messages map[string]int `json:"messages"`
}

type DayView struct {
	Date       string             `json:"date"`
	TogglHours float64            `json:"togglHours"`
	JiraHours  float64            `json:"jiraHours"`
	Rows       []RowView          `json:"rows"`
	Actions    []reconcile.Action `json:"actions"`
}

type RowView struct {
	Start    string              `json:"start"`
	Distance *float64            `json:"distance,omitempty"`
	Toggl    *EntryView          `json:"toggl,omitempty"`
	Jira     *EntryView          `json:"jira,omitempty"`
	Actions  []reconcile.Action  `json:"actions"`
	Messages []reconcile.Message `json:"messages"`
}

type EntryView struct {
	ID           string `json:"id"`
	Issue        string `json:"issue"`
	Start        string `json:"start"`
	Stop         string `json:"stop"`
	DurationMins int    `json:"durationMins"`
	Comment      string `json:"comment"`
	Project      string `json:"project,omitempty"`
	Billable     *bool  `json:"billable,omitempty"`
}

type RunView struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Next      int    `json:"next"`
	Total     int    `json:"total"`
	LastError string `json:"lastError,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	CreatedAt string `json:"createdAt"`
}

// SettingsView is the non-secret configuration a client needs, such as the
// Jira user whose worklogs are compared.
type SettingsView struct {
	JiraUsername   string `json:"jiraUsername"`
	JiraURL        string `json:"jiraUrl"`
	TogglWorkspace string `json:"togglWorkspace"`
	WindowDays     int    `json:"windowDays"`
}

func BuildReportView(report inspect.Report) ReportView {
	view := ReportView{
		From:     formatOptionalTime(report.Window.From),
		To:       formatOptionalTime(report.Window.To),
		Days:     make([]DayView, 0, len(report.Days)),
		Actions:  len(report.Actions()),
		Messages: make(map[string]int),
	}
	for level, count := range report.MessageCounts() {
		view.Messages[string(level)] = count
	}

	for _, day := range report.Days {
		dayView := DayView{
			Date:    day.Date.Format("2006-01-02"),
			Rows:    make([]RowView, 0, len(day.Rows)),
			Actions: nonNilActions(day.Actions),
		}
		var togglMinutes, jiraMinutes int
		for _, row := range day.Rows {
			rowView := RowView{
				Start:    row.Pairing.Start.Format(time.RFC3339),
				Distance: row.Pairing.Distance,
				Actions:  nonNilActions(row.Actions),
				Messages: row.Messages,
			}
			if rowView.Messages == nil {
				rowView.Messages = []reconcile.Message{}
			}
			if row.Pairing.Source != nil {
				rowView.Toggl = buildEntryView(*row.Pairing.Source)
				togglMinutes += rowView.Toggl.DurationMins
			}
			if row.Pairing.Reference != nil {
				rowView.Jira = buildEntryView(*row.Pairing.Reference)
				jiraMinutes += rowView.Jira.DurationMins
			}
			dayView.Rows = append(dayView.Rows, rowView)
		}
		dayView.TogglHours = minutesToHours(togglMinutes)
		dayView.JiraHours = minutesToHours(jiraMinutes)
		view.Days = append(view.Days, dayView)
	}

	return view
}

func buildEntryView(entry worklog.Entry) *EntryView {
	view := &EntryView{
		ID:           entry.ID(),
		Issue:        entry.Issue,
		Start:        entry.Start.Format(time.RFC3339),
		Stop:         entry.Stop.Format(time.RFC3339),
		DurationMins: int(entry.Duration().Round(time.Minute) / time.Minute),
		Comment:      entry.Comment,
	}
	if tag, ok := entry.SourceTag(); ok {
		billable := tag.Billable
		view.Project = tag.ProjectName
		view.Billable = &billable
	}
	return view
}

func buildRunView(run storage.RunSummary) RunView {
	return RunView{
		ID:        run.ID,
		Status:    string(run.Status()),
		Next:      run.Next,
		Total:     run.Total,
		LastError: run.LastError,
		From:      formatOptionalTime(run.Window.From),
		To:        formatOptionalTime(run.Window.To),
		CreatedAt: run.CreatedAt.Format(time.RFC3339),
	}
}

func summarizeRun(run storage.Run) storage.RunSummary {
	return storage.RunSummary{
		ID:        run.ID,
		Window:    run.Window,
		Total:     run.Total(),
		Next:      run.Next,
		LastError: run.LastError,
		CreatedAt: run.CreatedAt,
		UpdatedAt: run.UpdatedAt,
	}
}

func nonNilActions(actions []reconcile.Action) []reconcile.Action {
	if actions == nil {
		return []reconcile.Action{}
	}
	return actions
}

func formatOptionalTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.Format(time.RFC3339)
}

func minutesToHours(minutes int) float64 {
	return float64(minutes*100/60) / 100
}
