package output

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"tjsync/inspect"
	"tjsync/reconcile"
)

func sampleRows(t *testing.T) []inspect.Row {
	t.Helper()

	matched := row(
		source(t, "2026-01-05T08:00:00+01:00", "2026-01-05T09:00:00+01:00"),
		reference(t, "2026-01-05T08:00:00+01:00", "2026-01-05T09:30:00+01:00"),
		reconcile.Message{Level: reconcile.LevelDanger, Text: "Jira time spent will be changed"},
	)
	matched.Actions = []reconcile.Action{{Target: reconcile.TargetReference, Kind: reconcile.KindUpdate, ID: "9", Issue: "ABC-1"}}

	orphan := row(nil, reference(t, "2026-01-05T10:00:00+01:00", "2026-01-05T10:30:00+01:00"))
	orphan.Actions = []reconcile.Action{{Target: reconcile.TargetReference, Kind: reconcile.KindDelete, ID: "9", Issue: "ABC-1"}}

	return []inspect.Row{matched, orphan}
}

func TestCSVWriter_WritesDiffRows(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "diff.csv")
	if err := (&CSVWriter{}).Write(path, sampleRows(t)); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header and 2 rows, got %d", len(records))
	}
	if records[0][0] != "Day" || records[0][7] != "Messages" {
		t.Fatalf("unexpected headers: %v", records[0])
	}

	first := records[1]
	if first[0] != "2026-01-05" || first[1] != "08:00" || first[2] != "ABC-1" {
		t.Fatalf("unexpected first row: %v", first)
	}
	if first[5] != "0.50" {
		t.Fatalf("expected distance 0.50 for a 30 minute stop difference, got %q", first[5])
	}
	if first[6] != "reference.update #9" {
		t.Fatalf("unexpected actions column: %q", first[6])
	}
	if first[7] != "[danger] Jira time spent will be changed" {
		t.Fatalf("unexpected messages column: %q", first[7])
	}

	second := records[2]
	if second[3] != "" || second[4] != "ABC-1 work" || second[5] != "" {
		t.Fatalf("unexpected reference-only row: %v", second)
	}
}

func TestExcelWriter_WritesDiffRows(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "diff.xlsx")
	if err := (&ExcelWriter{}).Write(path, sampleRows(t)); err != nil {
		t.Fatalf("write excel: %v", err)
	}

	file, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open excel: %v", err)
	}
	defer file.Close()

	rows, err := file.GetRows("Diff")
	if err != nil {
		t.Fatalf("read excel rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header and 2 rows, got %d", len(rows))
	}
	if rows[2][6] != "reference.delete #9" {
		t.Fatalf("unexpected actions cell: %v", rows[2])
	}
}

func TestWriteDailySummaries_CSV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "summary.csv")
	summaries := []DailySummary{{Date: "2026-01-05", TogglHours: 1, JiraHours: 1.5, Pairings: 2, Actions: 2, Dangers: 1}}
	if err := WriteDailySummaries(path, "csv", summaries); err != nil {
		t.Fatalf("write summaries: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read summaries: %v", err)
	}
	want := "Date,StartTime,EndTime,TogglHours,JiraHours,BreakHours,Pairings,Actions,Dangers\n2026-01-05,,,1.00,1.50,0.00,2,2,1\n"
	if string(content) != want {
		t.Fatalf("unexpected csv:\n%s", content)
	}
}

func TestFormatFromPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{path: "diff.csv", want: "csv"},
		{path: "Diff.XLSX", want: "xlsx"},
		{path: "diff", wantErr: true},
		{path: "diff.json", wantErr: true},
	}

	for _, tc := range tests {
		got, err := FormatFromPath(tc.path)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("expected error for %q", tc.path)
			}
			continue
		}
		if err != nil {
			t.Fatalf("format from %q: %v", tc.path, err)
		}
		if got != tc.want {
			t.Fatalf("expected %q for %q, got %q", tc.want, tc.path, got)
		}
		if _, err := WriterForFormat(got); err != nil {
			t.Fatalf("expected writer for %q: %v", got, err)
		}
	}
}
