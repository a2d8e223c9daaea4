// Package web serves a localhost-only single-user JSON API; it intentionally
// has no auth/CSRF protection in this mode.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tjsync/executor"
	"tjsync/inspect"
	"tjsync/internal/metrics"
	"tjsync/internal/timeutil"
	"tjsync/reconcile"
	"tjsync/storage"
)

type Inspector interface {
	Inspect(ctx context.Context, window timeutil.Window) (inspect.Report, error)
}

// RunStore persists runs so a sync can be resumed action by action.
type RunStore interface {
	CreateRun(window timeutil.Window, actions []reconcile.Action) (storage.Run, error)
	GetRun(id string) (storage.Run, error)
	ListRuns() ([]storage.RunSummary, error)
}

type Config struct {
	Inspector Inspector
	Store     RunStore
	// Executor applies actions. Its Store should be the same RunStore so
	// cursors are persisted.
	Executor *executor.Executor
	Metrics  *metrics.Metrics
	Bin      timeutil.DayBin
	Days     int
	Settings SettingsView
	Logger   zerolog.Logger
}

type Server struct {
	inspector Inspector
	store     RunStore
	executor  *executor.Executor
	metrics   *metrics.Metrics
	bin       timeutil.DayBin
	days      int
	settings  SettingsView
	logger    zerolog.Logger
	now       func() time.Time
	mux       *http.ServeMux

	syncMu sync.Mutex
}

type errorResponse struct {
	Error string `json:"error"`
}

// syncLine is one line of the sync stream. Next is the action about to be
// applied, or the one that failed when Error is set.
type syncLine struct {
	Current        int               `json:"current"`
	Total          int               `json:"total"`
	Next           *reconcile.Action `json:"next"`
	Finished       bool              `json:"finished"`
	Run            string            `json:"run,omitempty"`
	Error          string            `json:"error,omitempty"`
	CursorNotSaved bool              `json:"cursorNotSaved,omitempty"`
}

type stepResponse struct {
	Run            RunView           `json:"run"`
	Applied        *reconcile.Action `json:"applied,omitempty"`
	Error          string            `json:"error,omitempty"`
	CursorNotSaved bool              `json:"cursorNotSaved,omitempty"`
}

func NewServer(cfg Config) http.Handler {
	server := &Server{
		inspector: cfg.Inspector,
		store:     cfg.Store,
		executor:  cfg.Executor,
		metrics:   cfg.Metrics,
		bin:       cfg.Bin,
		days:      cfg.Days,
		settings:  cfg.Settings,
		logger:    cfg.Logger.With().Str("component", "web").Logger(),
		now:       time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/settings", server.handleAPISettings)
	mux.HandleFunc("GET /api/diff", server.handleAPIDiff)
	mux.HandleFunc("POST /api/diff/sync", server.handleAPISync)
	mux.HandleFunc("GET /api/runs", server.handleAPIRuns)
	mux.HandleFunc("POST /api/runs/{id}/step", server.handleAPIRunStep)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
	}
	server.mux = mux

	return server
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleAPISettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.settings)
}

func (s *Server) handleAPIDiff(w http.ResponseWriter, r *http.Request) {
	window, err := s.windowFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	report, err := s.inspector.Inspect(r.Context(), window)
	if err != nil {
		s.logger.Error().Err(err).Msg("inspect failed")
		writeError(w, http.StatusBadGateway, err)
		return
	}

	writeJSON(w, http.StatusOK, BuildReportView(report))
}

// handleAPISync inspects the window, stores the actions as a run and executes
// them. A line naming the action is streamed before each action runs, and a
// final line reports either the finished run or the error it stopped at.
func (s *Server) handleAPISync(w http.ResponseWriter, r *http.Request) {
	if s.executor == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("sync is not configured"))
		return
	}
	if !s.syncMu.TryLock() {
		writeError(w, http.StatusConflict, errors.New("a sync is already running"))
		return
	}
	defer s.syncMu.Unlock()

	window, err := s.windowFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	report, err := s.inspector.Inspect(r.Context(), window)
	if err != nil {
		s.logger.Error().Err(err).Msg("inspect failed")
		writeError(w, http.StatusBadGateway, err)
		return
	}

	cursor := &executor.Cursor{Actions: report.Actions()}
	if s.store != nil {
		run, err := s.store.CreateRun(window, cursor.Actions)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		cursor.RunID = run.ID
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	controller := http.NewResponseController(w)
	encoder := json.NewEncoder(w)
	emit := func(line syncLine) {
		line.Run = cursor.RunID
		_ = encoder.Encode(line)
		_ = controller.Flush()
	}

	total := cursor.Total()
	for !cursor.Done() {
		index := cursor.Next
		action := cursor.Actions[index]

		err := r.Context().Err()
		if err == nil {
			emit(syncLine{Current: index, Total: total, Next: &action})
			err = s.executor.Step(r.Context(), cursor)
		}
		if err != nil {
			var unsaved *executor.CursorNotSavedError
			s.logger.Warn().Err(err).Str("run", cursor.RunID).Int("action", index).Msg("sync stopped")
			emit(syncLine{
				Current:        index,
				Total:          total,
				Next:           &action,
				Error:          err.Error(),
				CursorNotSaved: errors.As(err, &unsaved),
			})
			return
		}
	}

	s.logger.Info().Str("run", cursor.RunID).Int("actions", total).Msg("sync finished")
	emit(syncLine{Current: total, Total: total, Finished: true})
}

func (s *Server) handleAPIRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("run storage is not configured"))
		return
	}

	runs, err := s.store.ListRuns()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]RunView, 0, len(runs))
	for _, run := range runs {
		out = append(out, buildRunView(run))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleAPIRunStep applies the next action of a stored run.
func (s *Server) handleAPIRunStep(w http.ResponseWriter, r *http.Request) {
	if s.store == nil || s.executor == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("run storage is not configured"))
		return
	}
	if !s.syncMu.TryLock() {
		writeError(w, http.StatusConflict, errors.New("a sync is already running"))
		return
	}
	defer s.syncMu.Unlock()

	run, err := s.store.GetRun(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	cursor := &executor.Cursor{RunID: run.ID, Actions: run.Actions, Next: run.Next}
	if cursor.Done() {
		writeJSON(w, http.StatusOK, stepResponse{Run: buildRunView(summarizeRun(run))})
		return
	}

	applied := cursor.Actions[cursor.Next]
	stepErr := s.executor.Step(r.Context(), cursor)

	run.Next = cursor.Next
	run.LastError = ""
	response := stepResponse{}
	status := http.StatusOK
	var unsaved *executor.CursorNotSavedError
	switch {
	case errors.As(stepErr, &unsaved):
		// The stored cursor still points at the applied action.
		run.Next = unsaved.Index
		run.LastError = stepErr.Error()
		response.Applied = &applied
		response.Error = stepErr.Error()
		response.CursorNotSaved = true
		status = http.StatusInternalServerError
	case stepErr != nil:
		run.LastError = stepErr.Error()
		response.Error = stepErr.Error()
		status = http.StatusBadGateway
	default:
		response.Applied = &applied
	}
	response.Run = buildRunView(summarizeRun(run))
	writeJSON(w, status, response)
}

// windowFromQuery reads min/max as ISO-8601 timestamps or dates. Without
// them the rolling window of the configured number of days is used, shifted
// by the optional delta.
func (s *Server) windowFromQuery(r *http.Request) (timeutil.Window, error) {
	query := r.URL.Query()
	minValue := strings.TrimSpace(query.Get("min"))
	maxValue := strings.TrimSpace(query.Get("max"))

	if minValue == "" && maxValue == "" {
		delta := 0
		if raw := strings.TrimSpace(query.Get("delta")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				return timeutil.Window{}, fmt.Errorf("invalid delta %q", raw)
			}
			delta = parsed
		}
		return timeutil.RollingWindow(s.now(), s.days, delta, s.bin), nil
	}

	var window timeutil.Window
	var err error
	if minValue != "" {
		if window.From, err = parseQueryTime(minValue); err != nil {
			return timeutil.Window{}, fmt.Errorf("invalid min %q: %w", minValue, err)
		}
	}
	if maxValue != "" {
		if window.To, err = parseQueryTime(maxValue); err != nil {
			return timeutil.Window{}, fmt.Errorf("invalid max %q: %w", maxValue, err)
		}
	}
	if !window.From.IsZero() && !window.To.IsZero() && !window.From.Before(window.To) {
		return timeutil.Window{}, errors.New("min must be before max")
	}
	return window, nil
}

func parseQueryTime(value string) (time.Time, error) {
	if parsed, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return parsed, nil
	}
	parsed, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		return time.Time{}, errors.New("expected RFC3339 timestamp or YYYY-MM-DD date")
	}
	return timeutil.StartOfDay(parsed), nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
