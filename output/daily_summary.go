package output

import (
	"fmt"
	"math"
	"sort"
	"time"

	"tjsync/inspect"
	"tjsync/reconcile"
	"tjsync/worklog"
)

// DailySummary compares the booked time of both systems for one working day.
type DailySummary struct {
	Date          string
	StartDateTime time.Time
	EndDateTime   time.Time
	TogglHours    float64
	JiraHours     float64
	BreakHours    float64
	Pairings      int
	Actions       int
	Dangers       int
}

type interval struct {
	start time.Time
	end   time.Time
}

// BuildDailySummaries summarizes report days in the order given.
func BuildDailySummaries(days []inspect.Day) []DailySummary {
	summaries := make([]DailySummary, 0, len(days))
	for _, day := range days {
		summaries = append(summaries, summarizeDay(day))
	}
	return summaries
}

func summarizeDay(day inspect.Day) DailySummary {
	summary := DailySummary{
		Date:     day.Date.Format("2006-01-02"),
		Pairings: len(day.Rows),
		Actions:  len(day.Actions),
	}

	togglIntervals := make([]interval, 0, len(day.Rows))
	togglDuration := time.Duration(0)
	jiraDuration := time.Duration(0)
	for _, row := range day.Rows {
		if entry := row.Pairing.Source; entry != nil {
			togglIntervals = append(togglIntervals, entryInterval(*entry))
			togglDuration += positive(entry.Duration())
		}
		if entry := row.Pairing.Reference; entry != nil {
			jiraDuration += positive(entry.Duration())
		}
		for _, message := range row.Messages {
			if message.Level == reconcile.LevelDanger {
				summary.Dangers++
			}
		}
	}

	summary.TogglHours = roundHours(togglDuration.Hours())
	summary.JiraHours = roundHours(jiraDuration.Hours())

	if len(togglIntervals) == 0 {
		return summary
	}

	sort.Slice(togglIntervals, func(i, j int) bool {
		if togglIntervals[i].start.Equal(togglIntervals[j].start) {
			return togglIntervals[i].end.Before(togglIntervals[j].end)
		}
		return togglIntervals[i].start.Before(togglIntervals[j].start)
	})
	start := togglIntervals[0].start
	end := togglIntervals[0].end
	for _, candidate := range togglIntervals[1:] {
		end = maxTime(end, candidate.end)
	}

	breakDuration := end.Sub(start) - mergedCoverageWithinWindow(togglIntervals, start, end)
	if breakDuration < 0 {
		breakDuration = 0
	}

	summary.StartDateTime = start
	summary.EndDateTime = end
	summary.BreakHours = roundHours(breakDuration.Hours())
	return summary
}

func entryInterval(entry worklog.Entry) interval {
	end := entry.Stop
	if end.Before(entry.Start) {
		end = entry.Start
	}
	return interval{start: entry.Start, end: end}
}

func positive(value time.Duration) time.Duration {
	if value < 0 {
		return 0
	}
	return value
}

func mergedCoverageWithinWindow(intervals []interval, windowStart, windowEnd time.Time) time.Duration {
	if len(intervals) == 0 {
		return 0
	}
	if !windowEnd.After(windowStart) {
		return 0
	}

	clipped := make([]interval, 0, len(intervals))
	for _, candidate := range intervals {
		start := maxTime(candidate.start, windowStart)
		end := minTime(candidate.end, windowEnd)
		if end.After(start) {
			clipped = append(clipped, interval{start: start, end: end})
		}
	}
	if len(clipped) == 0 {
		return 0
	}

	sort.Slice(clipped, func(i, j int) bool {
		return clipped[i].start.Before(clipped[j].start)
	})

	currentStart := clipped[0].start
	currentEnd := clipped[0].end
	covered := time.Duration(0)

	for _, candidate := range clipped[1:] {
		if candidate.start.After(currentEnd) {
			covered += currentEnd.Sub(currentStart)
			currentStart = candidate.start
			currentEnd = candidate.end
			continue
		}

		if candidate.end.After(currentEnd) {
			currentEnd = candidate.end
		}
	}

	covered += currentEnd.Sub(currentStart)
	return covered
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func roundHours(value float64) float64 {
	return math.Round(value*100) / 100
}

var summaryHeaders = []string{"Date", "StartTime", "EndTime", "TogglHours", "JiraHours", "BreakHours", "Pairings", "Actions", "Dangers"}

func summaryRecord(summary DailySummary) []string {
	return []string{
		summary.Date,
		clockOrEmpty(summary.StartDateTime),
		clockOrEmpty(summary.EndDateTime),
		fmt.Sprintf("%.2f", summary.TogglHours),
		fmt.Sprintf("%.2f", summary.JiraHours),
		fmt.Sprintf("%.2f", summary.BreakHours),
		fmt.Sprintf("%d", summary.Pairings),
		fmt.Sprintf("%d", summary.Actions),
		fmt.Sprintf("%d", summary.Dangers),
	}
}

func clockOrEmpty(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.Format("15:04")
}

func WriteDailySummaries(path, format string, summaries []DailySummary) error {
	switch normalizeFormat(format) {
	case "csv":
		return writeDailySummariesCSV(path, summaries)
	case "excel", "xlsx":
		return writeDailySummariesExcel(path, summaries)
	default:
		return fmt.Errorf("unsupported output format for daily summaries: %s", format)
	}
}
