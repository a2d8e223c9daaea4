package worklog

import (
	"testing"
	"time"
)

func TestExtractIssue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		description string
		want        string
	}{
		{name: "colon separated", description: "ABC-1: fix bug", want: "ABC-1"},
		{name: "space separated", description: "ABC-12 review", want: "ABC-12"},
		{name: "surrounding whitespace", description: "  ABC-3  ", want: "ABC-3"},
		{name: "colon before space", description: "ABC-4:x y", want: "ABC-4"},
		{name: "space before colon", description: "ABC-5 x:y", want: "ABC-5"},
		{name: "no separator", description: "meeting", want: "meeting"},
		{name: "empty", description: "", want: ""},
		{name: "leading colon", description: ":ABC-6", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractIssue(tt.description); got != tt.want {
				t.Fatalf("ExtractIssue(%q) = %q, want %q", tt.description, got, tt.want)
			}
		})
	}
}

func TestProjectKey(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"ABC-1":    "ABC",
		"ABC":      "ABC",
		"":         "",
		"AB-CD-12": "AB",
	}
	for issue, want := range cases {
		if got := ProjectKey(issue); got != want {
			t.Fatalf("ProjectKey(%q) = %q, want %q", issue, got, want)
		}
	}
}

func TestStripAfterAny_AppliesNeedlesInOrder(t *testing.T) {
	t.Parallel()

	if got := StripAfterAny("a b:c", ":", " "); got != "a" {
		t.Fatalf("unexpected result %q", got)
	}
	if got := StripAfterAny("abc"); got != "abc" {
		t.Fatalf("expected unchanged value, got %q", got)
	}
}

func TestNewSourceEntry_DerivesIssueAndProjectKey(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	entry := NewSourceEntry("ABC-7: write docs", start, start.Add(time.Hour), SourceInfo{
		ID:        "42",
		ProjectID: 7,
		Billable:  true,
	})

	if entry.Issue != "ABC-7" {
		t.Fatalf("unexpected issue %q", entry.Issue)
	}
	if entry.Comment != "ABC-7: write docs" {
		t.Fatalf("comment must be kept verbatim, got %q", entry.Comment)
	}
	tag, ok := entry.SourceTag()
	if !ok {
		t.Fatalf("expected source tag")
	}
	if tag.ProjectKey != "ABC" || tag.ID != "42" || !tag.Billable || tag.ProjectID != 7 {
		t.Fatalf("unexpected tag %+v", tag)
	}
	if _, ok := entry.ReferenceTag(); ok {
		t.Fatalf("source entry must not carry a reference tag")
	}
	if entry.ID() != "42" {
		t.Fatalf("unexpected id %q", entry.ID())
	}
	if entry.Duration() != time.Hour {
		t.Fatalf("unexpected duration %s", entry.Duration())
	}
}

func TestNewReferenceEntry(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	entry := NewReferenceEntry("1001", "ABC-1", "ABC-1: fix", start, start.Add(30*time.Minute), map[string]any{"id": "1001"})

	tag, ok := entry.ReferenceTag()
	if !ok {
		t.Fatalf("expected reference tag")
	}
	if tag.ID != "1001" || tag.RawFields()["id"] != "1001" {
		t.Fatalf("unexpected tag %+v", tag)
	}
	if entry.ID() != "1001" {
		t.Fatalf("unexpected id %q", entry.ID())
	}
}

func TestReferenceTimeRoundTrip(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("CET", 3600)
	value := time.Date(2026, 3, 10, 9, 0, 0, 0, loc)

	formatted := FormatReferenceTime(value)
	if formatted != "2026-03-10T09:00:00.000+0100" {
		t.Fatalf("unexpected format %q", formatted)
	}
	parsed, err := ParseReferenceTime(formatted)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !parsed.Equal(value) {
		t.Fatalf("expected %v, got %v", value, parsed)
	}

	if _, err := ParseReferenceTime("2026-03-10T08:00:00Z"); err != nil {
		t.Fatalf("expected RFC3339 fallback, got %v", err)
	}
	if _, err := ParseReferenceTime("yesterday"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSourceTimeFormat(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("CET", 3600)
	value := time.Date(2026, 3, 10, 9, 0, 15, 500, loc)
	if got := FormatSourceTime(value); got != "2026-03-10T09:00:15+01:00" {
		t.Fatalf("unexpected format %q", got)
	}
	parsed, err := ParseSourceTime("2026-03-10T09:00:15+01:00")
	if err != nil || !parsed.Equal(value.Truncate(time.Second)) {
		t.Fatalf("unexpected parse result %v, %v", parsed, err)
	}
}
