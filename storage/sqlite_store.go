package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"tjsync/internal/timeutil"
	"tjsync/reconcile"
)

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var ErrRunNotFound = errors.New("run not found")

// Status is derived from a run's cursor and last error.
type Status string

const (
	StatusPending Status = "pending"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
	StatusDone    Status = "done"
)

// Run is a stored list of actions together with its execution cursor.
// Actions before Next have been applied.
type Run struct {
	ID        string
	Window    timeutil.Window
	Actions   []reconcile.Action
	Next      int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r Run) Total() int {
	return len(r.Actions)
}

func (r Run) Status() Status {
	switch {
	case r.Next >= len(r.Actions):
		return StatusDone
	case r.LastError != "":
		return StatusFailed
	case r.Next == 0:
		return StatusPending
	default:
		return StatusPartial
	}
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ensureSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	window_from TEXT NOT NULL DEFAULT '',
	window_to TEXT NOT NULL DEFAULT '',
	total INTEGER NOT NULL CHECK(total >= 0),
	next_index INTEGER NOT NULL DEFAULT 0 CHECK(next_index >= 0),
	last_error TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS run_actions (
	run_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	payload TEXT NOT NULL,
	PRIMARY KEY(run_id, position)
);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// CreateRun stores actions in order under a new run id.
func (s *SQLiteStore) CreateRun(window timeutil.Window, actions []reconcile.Action) (Run, error) {
	now := s.now().UTC().Truncate(time.Second)
	run := Run{
		ID:        uuid.New().String(),
		Window:    window,
		Actions:   append([]reconcile.Action(nil), actions...),
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Run{}, fmt.Errorf("begin transaction: %w", err)
	}

	_, err = tx.Exec(`
INSERT INTO runs (id, window_from, window_to, total, next_index, last_error, created_at, updated_at)
VALUES (?, ?, ?, ?, 0, '', ?, ?);`,
		run.ID,
		formatTime(window.From),
		formatTime(window.To),
		len(actions),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		_ = tx.Rollback()
		return Run{}, fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO run_actions (run_id, position, payload) VALUES (?, ?, ?);`)
	if err != nil {
		_ = tx.Rollback()
		return Run{}, fmt.Errorf("prepare action statement: %w", err)
	}
	defer stmt.Close()

	for i, action := range actions {
		payload, err := json.Marshal(action)
		if err != nil {
			_ = tx.Rollback()
			return Run{}, fmt.Errorf("encode action %d: %w", i, err)
		}
		if _, err := stmt.Exec(run.ID, i, string(payload)); err != nil {
			_ = tx.Rollback()
			return Run{}, fmt.Errorf("insert action %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("commit transaction: %w", err)
	}
	return run, nil
}

// GetRun loads a run with its actions.
func (s *SQLiteStore) GetRun(id string) (Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Run{}, fmt.Errorf("run id is required")
	}

	row := s.db.QueryRow(`
SELECT id, window_from, window_to, total, next_index, last_error, created_at, updated_at
FROM runs
WHERE id = ?;`, id)

	run, total, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrRunNotFound
		}
		return Run{}, fmt.Errorf("query run %s: %w", id, err)
	}

	rows, err := s.db.Query(`SELECT payload FROM run_actions WHERE run_id = ? ORDER BY position;`, id)
	if err != nil {
		return Run{}, fmt.Errorf("query actions of run %s: %w", id, err)
	}
	defer rows.Close()

	run.Actions = make([]reconcile.Action, 0, total)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return Run{}, fmt.Errorf("scan action: %w", err)
		}
		var action reconcile.Action
		if err := json.Unmarshal([]byte(payload), &action); err != nil {
			return Run{}, fmt.Errorf("decode action of run %s: %w", id, err)
		}
		run.Actions = append(run.Actions, action)
	}
	if err := rows.Err(); err != nil {
		return Run{}, fmt.Errorf("iterate actions: %w", err)
	}
	if len(run.Actions) != total {
		return Run{}, fmt.Errorf("run %s has %d stored actions, expected %d", id, len(run.Actions), total)
	}

	return run, nil
}

// RunSummary is a run without its action payloads.
type RunSummary struct {
	ID        string
	Window    timeutil.Window
	Total     int
	Next      int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r RunSummary) Status() Status {
	return Run{Next: r.Next, LastError: r.LastError, Actions: make([]reconcile.Action, r.Total)}.Status()
}

// ListRuns returns all runs, newest first.
func (s *SQLiteStore) ListRuns() ([]RunSummary, error) {
	rows, err := s.db.Query(`
SELECT id, window_from, window_to, total, next_index, last_error, created_at, updated_at
FROM runs
ORDER BY created_at DESC, id;`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	out := make([]RunSummary, 0, 16)
	for rows.Next() {
		run, total, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, RunSummary{
			ID:        run.ID,
			Window:    run.Window,
			Total:     total,
			Next:      run.Next,
			LastError: run.LastError,
			CreatedAt: run.CreatedAt,
			UpdatedAt: run.UpdatedAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// SaveCursor stores the index of the next action to execute and clears the
// last error.
func (s *SQLiteStore) SaveCursor(id string, next int) error {
	if next < 0 {
		return fmt.Errorf("cursor must be >= 0")
	}
	res, err := s.db.Exec(`
UPDATE runs
SET next_index = ?, last_error = '', updated_at = ?
WHERE id = ?;`, next, formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("update cursor of run %s: %w", id, err)
	}
	return requireAffected(res, id)
}

// MarkFailed records the error that stopped a run.
func (s *SQLiteStore) MarkFailed(id, message string) error {
	if strings.TrimSpace(message) == "" {
		message = "unknown error"
	}
	res, err := s.db.Exec(`
UPDATE runs
SET last_error = ?, updated_at = ?
WHERE id = ?;`, message, formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("mark run %s failed: %w", id, err)
	}
	return requireAffected(res, id)
}

// DeleteRun removes a run and its actions.
func (s *SQLiteStore) DeleteRun(id string) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM run_actions WHERE run_id = ?;`, id); err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("delete actions of run %s: %w", id, err)
	}
	res, err := tx.Exec(`DELETE FROM runs WHERE id = ?;`, id)
	if err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("delete run %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read deleted row count: %w", err)
	}
	return rowsAffected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, int, error) {
	var (
		run        Run
		total      int
		fromRaw    string
		toRaw      string
		createdRaw string
		updatedRaw string
	)
	if err := row.Scan(&run.ID, &fromRaw, &toRaw, &total, &run.Next, &run.LastError, &createdRaw, &updatedRaw); err != nil {
		return Run{}, 0, err
	}

	var err error
	if run.Window.From, err = parseTime(fromRaw); err != nil {
		return Run{}, 0, err
	}
	if run.Window.To, err = parseTime(toRaw); err != nil {
		return Run{}, 0, err
	}
	if run.CreatedAt, err = parseTime(createdRaw); err != nil {
		return Run{}, 0, err
	}
	if run.UpdatedAt, err = parseTime(updatedRaw); err != nil {
		return Run{}, 0, err
	}
	return run, total, nil
}

func requireAffected(res sql.Result, id string) error {
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read updated row count: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.Format(time.RFC3339)
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse datetime %q: %w", raw, err)
	}
	return parsed, nil
}
