// Package inspect fetches both sides of a time window, pairs them and
// computes the actions that bring Jira and Toggl in sync.
package inspect

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tjsync/internal/metrics"
	"tjsync/internal/timeutil"
	"tjsync/matcher"
	"tjsync/reconcile"
	"tjsync/worklog"
)

// SourceData is the Toggl side of a window.
type SourceData struct {
	Entries []worklog.Entry
	// ProjectIDs resolves Toggl project names of the workspace to ids.
	ProjectIDs map[string]int64
}

type SourceFetcher interface {
	FetchSource(ctx context.Context, window timeutil.Window) (SourceData, error)
}

type ReferenceFetcher interface {
	FetchReference(ctx context.Context, window timeutil.Window) ([]worklog.Entry, error)
}

type Service struct {
	Source    SourceFetcher
	Reference ReferenceFetcher
	Projects  map[string]reconcile.ProjectSetting
	Bin       timeutil.DayBin
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

// Row is a reconciled pairing assigned to its working day.
type Row struct {
	Day time.Time
	reconcile.Row
}

// Day groups the rows of one working day.
type Day struct {
	Date    time.Time
	Rows    []Row
	Actions []reconcile.Action
}

type Report struct {
	Window timeutil.Window
	Rows   []Row
	Days   []Day
}

// Actions returns every action of the report in row order.
func (r Report) Actions() []reconcile.Action {
	out := make([]reconcile.Action, 0, len(r.Rows))
	for _, row := range r.Rows {
		out = append(out, row.Actions...)
	}
	return out
}

// MessageCounts tallies the messages of all rows by level.
func (r Report) MessageCounts() map[reconcile.Level]int {
	out := make(map[reconcile.Level]int, 3)
	for _, row := range r.Rows {
		for _, message := range row.Messages {
			out[message.Level]++
		}
	}
	return out
}

func (s *Service) Inspect(ctx context.Context, window timeutil.Window) (Report, error) {
	started := time.Now()

	var (
		wg           sync.WaitGroup
		source       SourceData
		reference    []worklog.Entry
		sourceErr    error
		referenceErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		source, sourceErr = s.Source.FetchSource(ctx, window)
	}()
	go func() {
		defer wg.Done()
		reference, referenceErr = s.Reference.FetchReference(ctx, window)
	}()
	wg.Wait()

	if sourceErr != nil {
		return Report{}, fmt.Errorf("fetch toggl entries: %w", sourceErr)
	}
	if referenceErr != nil {
		return Report{}, fmt.Errorf("fetch jira worklogs: %w", referenceErr)
	}

	pairings := matcher.Match(source.Entries, reference)
	rows := reconcile.ReconcileAll(pairings, reconcile.Settings{
		Projects:   s.Projects,
		ProjectIDs: source.ProjectIDs,
	})

	report := Report{Window: window, Rows: make([]Row, 0, len(rows))}
	for _, row := range rows {
		report.Rows = append(report.Rows, Row{Day: s.Bin.DateOf(row.Pairing.Start), Row: row})
		s.Metrics.RecordPairing(pairingState(row.Pairing))
		for _, message := range row.Messages {
			s.Metrics.RecordMessage(string(message.Level))
		}
	}
	report.Days = GroupByDay(report.Rows)

	s.Metrics.ObserveInspect(time.Since(started).Seconds())
	s.Logger.Info().
		Time("from", window.From).
		Time("to", window.To).
		Int("toggl", len(source.Entries)).
		Int("jira", len(reference)).
		Int("pairings", len(rows)).
		Int("actions", len(report.Actions())).
		Msg("inspected window")

	return report, nil
}

// GroupByDay groups rows by working day, newest day first. Rows keep their
// relative order within a day.
func GroupByDay(rows []Row) []Day {
	index := make(map[time.Time]int)
	days := make([]Day, 0)
	for _, row := range rows {
		key := row.Day
		i, ok := index[key]
		if !ok {
			i = len(days)
			index[key] = i
			days = append(days, Day{Date: row.Day})
		}
		days[i].Rows = append(days[i].Rows, row)
		days[i].Actions = append(days[i].Actions, row.Actions...)
	}
	sort.SliceStable(days, func(i, j int) bool {
		return days[i].Date.After(days[j].Date)
	})
	return days
}

func pairingState(p matcher.Pairing) string {
	switch {
	case p.Matched():
		return "matched"
	case p.Source != nil:
		return "source_only"
	default:
		return "reference_only"
	}
}
