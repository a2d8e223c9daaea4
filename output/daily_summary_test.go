package output

import (
	"testing"
	"time"

	"tjsync/inspect"
	"tjsync/matcher"
	"tjsync/reconcile"
	"tjsync/worklog"
)

func TestBuildDailySummaries_ComparesTogglAndJiraHours(t *testing.T) {
	day := inspect.Day{
		Date: mustParse(t, "2026-01-05T00:00:00+01:00"),
		Rows: []inspect.Row{
			row(
				source(t, "2026-01-05T08:00:00+01:00", "2026-01-05T09:00:00+01:00"),
				reference(t, "2026-01-05T08:00:00+01:00", "2026-01-05T09:00:00+01:00"),
			),
			row(source(t, "2026-01-05T09:30:00+01:00", "2026-01-05T10:30:00+01:00"), nil,
				reconcile.Message{Level: reconcile.LevelDanger, Text: "create"}),
			row(source(t, "2026-01-05T11:00:00+01:00", "2026-01-05T12:00:00+01:00"), nil),
			row(nil, reference(t, "2026-01-05T13:00:00+01:00", "2026-01-05T13:30:00+01:00"),
				reconcile.Message{Level: reconcile.LevelDanger, Text: "delete"}),
		},
		Actions: make([]reconcile.Action, 2),
	}

	summaries := BuildDailySummaries([]inspect.Day{day})
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}

	summary := summaries[0]
	if summary.Date != "2026-01-05" {
		t.Fatalf("unexpected date %q", summary.Date)
	}
	assertTimeEqual(t, mustParse(t, "2026-01-05T08:00:00+01:00"), summary.StartDateTime, "start time")
	assertTimeEqual(t, mustParse(t, "2026-01-05T12:00:00+01:00"), summary.EndDateTime, "end time")
	assertFloatEqual(t, 3.00, summary.TogglHours, "toggl hours")
	assertFloatEqual(t, 1.50, summary.JiraHours, "jira hours")
	assertFloatEqual(t, 1.00, summary.BreakHours, "break hours")
	if summary.Pairings != 4 || summary.Actions != 2 || summary.Dangers != 2 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
}

func TestBuildDailySummaries_UsesCoverageUnionForBreak(t *testing.T) {
	day := inspect.Day{
		Date: mustParse(t, "2026-03-04T00:00:00+01:00"),
		Rows: []inspect.Row{
			row(source(t, "2026-03-04T08:00:00+01:00", "2026-03-04T12:00:00+01:00"), nil),
			row(source(t, "2026-03-04T10:00:00+01:00", "2026-03-04T11:00:00+01:00"), nil),
			row(source(t, "2026-03-04T13:00:00+01:00", "2026-03-04T14:00:00+01:00"), nil),
		},
	}

	summary := BuildDailySummaries([]inspect.Day{day})[0]
	assertTimeEqual(t, mustParse(t, "2026-03-04T14:00:00+01:00"), summary.EndDateTime, "end time")
	assertFloatEqual(t, 6.00, summary.TogglHours, "toggl hours")
	assertFloatEqual(t, 1.00, summary.BreakHours, "break hours")
}

func TestBuildDailySummaries_JiraOnlyDayHasNoSpan(t *testing.T) {
	day := inspect.Day{
		Date: mustParse(t, "2026-03-05T00:00:00+01:00"),
		Rows: []inspect.Row{row(nil, reference(t, "2026-03-05T08:00:00+01:00", "2026-03-05T09:00:00+01:00"))},
	}

	summary := BuildDailySummaries([]inspect.Day{day})[0]
	if !summary.StartDateTime.IsZero() || !summary.EndDateTime.IsZero() {
		t.Fatalf("expected empty span, got %+v", summary)
	}
	assertFloatEqual(t, 1.00, summary.JiraHours, "jira hours")
	if record := summaryRecord(summary); record[1] != "" || record[2] != "" {
		t.Fatalf("expected empty clock columns, got %v", record)
	}
}

func row(src, ref *worklog.Entry, messages ...reconcile.Message) inspect.Row {
	pairing := matcher.Pairing{Source: src, Reference: ref}
	if src != nil {
		pairing.Start = src.Start
	} else {
		pairing.Start = ref.Start
	}
	if src != nil && ref != nil {
		distance := matcher.Distance(*src, *ref)
		pairing.Distance = &distance
	}
	return inspect.Row{
		Day: time.Date(pairing.Start.Year(), pairing.Start.Month(), pairing.Start.Day(), 0, 0, 0, 0, pairing.Start.Location()),
		Row: reconcile.Row{Pairing: pairing, Result: reconcile.Result{Messages: messages}},
	}
}

func source(t *testing.T, start, stop string) *worklog.Entry {
	t.Helper()
	entry := worklog.NewSourceEntry("ABC-1 work", mustParse(t, start), mustParse(t, stop), worklog.SourceInfo{ID: "1"})
	return &entry
}

func reference(t *testing.T, start, stop string) *worklog.Entry {
	t.Helper()
	entry := worklog.NewReferenceEntry("9", "ABC-1", "ABC-1 work", mustParse(t, start), mustParse(t, stop), nil)
	return &entry
}

func mustParse(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time %q: %v", value, err)
	}
	return parsed
}

func assertFloatEqual(t *testing.T, expected, actual float64, field string) {
	t.Helper()
	if expected != actual {
		t.Fatalf("unexpected %s: expected %.2f, got %.2f", field, expected, actual)
	}
}

func assertTimeEqual(t *testing.T, expected, actual time.Time, field string) {
	t.Helper()
	if !expected.Equal(actual) {
		t.Fatalf("unexpected %s: expected %s, got %s", field, expected.Format(time.RFC3339), actual.Format(time.RFC3339))
	}
}
