package timeutil

import (
	"testing"
	"time"
	_ "time/tzdata"
)

func TestFloorMinute_KeepsOffsetInRepeatedHour(t *testing.T) {
	t.Parallel()

	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	// 02:30:15 CEST on 2023-10-29, the first pass through the repeated hour.
	input := time.Date(2023, 10, 29, 0, 30, 15, 0, time.UTC).In(berlin)
	if _, offset := input.Zone(); offset != 2*3600 {
		t.Fatalf("expected CEST input, got offset %d", offset)
	}

	got := FloorMinute(input)
	if want := input.Add(-15 * time.Second); !got.Equal(want) {
		t.Fatalf("expected %s, got %s (shift %s)", want, got, got.Sub(input))
	}
	if _, offset := got.Zone(); offset != 2*3600 {
		t.Fatalf("expected CEST result, got offset %d", offset)
	}
}

func TestFloorMinute(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("CET", 3600)
	input := time.Date(2026, 3, 1, 14, 37, 9, 123, loc)
	got := FloorMinute(input)

	want := time.Date(2026, 3, 1, 14, 37, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got.Location() != loc {
		t.Fatalf("expected location to be kept")
	}
	if again := FloorMinute(got); !again.Equal(got) {
		t.Fatalf("flooring twice must be a no-op, got %v", again)
	}
}

func TestStartOfDay(t *testing.T) {
	t.Parallel()

	input := time.Date(2026, 3, 1, 14, 37, 9, 123, time.Local)
	got := StartOfDay(input)

	if got.Year() != 2026 || got.Month() != time.March || got.Day() != 1 {
		t.Fatalf("unexpected date: %v", got)
	}
	if got.Hour() != 0 || got.Minute() != 0 || got.Second() != 0 || got.Nanosecond() != 0 {
		t.Fatalf("expected midnight, got %v", got)
	}
}

func TestDayBin_DateOfHonorsTurnpoint(t *testing.T) {
	t.Parallel()

	bin := NewDayBin(time.UTC, DefaultTurnpoint)

	lateNight := time.Date(2026, 3, 2, 2, 30, 0, 0, time.UTC)
	if got := bin.DateOf(lateNight); !got.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("02:30 must belong to previous day, got %v", got)
	}

	morning := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	if got := bin.DateOf(morning); !got.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("06:00 must start a new day, got %v", got)
	}
}

func TestDayBin_StartAndEnd(t *testing.T) {
	t.Parallel()

	bin := NewDayBin(time.UTC, DefaultTurnpoint)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	if got := bin.StartOf(day); !got.Equal(time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %v", got)
	}
	if got := bin.EndOf(day); !got.Equal(time.Date(2026, 3, 3, 6, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end %v", got)
	}
}

func TestRollingWindow(t *testing.T) {
	t.Parallel()

	bin := NewDayBin(time.UTC, DefaultTurnpoint)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	window := RollingWindow(now, 7, 0, bin)
	if !window.From.Equal(time.Date(2026, 3, 3, 6, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected from %v", window.From)
	}
	if !window.To.Equal(time.Date(2026, 3, 11, 6, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected to %v", window.To)
	}

	shifted := RollingWindow(now, 7, -7, bin)
	if !shifted.To.Equal(time.Date(2026, 3, 4, 6, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected shifted to %v", shifted.To)
	}
}

func TestWindow_ContainsIsHalfOpen(t *testing.T) {
	t.Parallel()

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	window := Window{From: from, To: to}

	if !window.Contains(from) {
		t.Fatalf("from must be included")
	}
	if window.Contains(to) {
		t.Fatalf("to must be excluded")
	}
	if window.Contains(from.Add(-time.Second)) {
		t.Fatalf("values before from must be excluded")
	}
	if !(Window{}).Contains(from) {
		t.Fatalf("open window must contain everything")
	}
}
