package executor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"tjsync/reconcile"
)

// ErrUnsupportedAction is returned for target/kind combinations that have no
// remote operation.
var ErrUnsupportedAction = errors.New("unsupported action")

// SourceWriter applies source (Toggl) actions.
type SourceWriter interface {
	UpdateEntry(ctx context.Context, id string, values map[string]any) error
}

// ReferenceWriter applies reference (Jira) actions.
type ReferenceWriter interface {
	AddWorklog(ctx context.Context, issue string, values map[string]any) error
	UpdateWorklog(ctx context.Context, issue, id string, values map[string]any) error
	DeleteWorklog(ctx context.Context, issue, id string) error
}

// CursorStore persists the progress of a stored run.
type CursorStore interface {
	SaveCursor(id string, next int) error
	MarkFailed(id, message string) error
}

// Recorder observes executed actions.
type Recorder interface {
	RecordAction(target, kind string, err error)
}

// Executor applies reconciliation actions one at a time. Store and Metrics
// are optional.
type Executor struct {
	Source    SourceWriter
	Reference ReferenceWriter
	Store     CursorStore
	Metrics   Recorder
	Logger    zerolog.Logger
}

// StepError reports the action a run stopped at.
type StepError struct {
	Index  int
	Action reconcile.Action
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("action %d (%s %s %s): %v", e.Index, e.Action.Target, e.Action.Kind, e.Action.Issue, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// CursorNotSavedError reports an action that was applied remotely while the
// advanced cursor could not be persisted. The stored cursor still points at
// Index, so resuming the stored run as-is would apply the action again.
type CursorNotSavedError struct {
	RunID  string
	Index  int
	Action reconcile.Action
	Err    error
}

func (e *CursorNotSavedError) Error() string {
	return fmt.Sprintf("action %d (%s %s %s) applied, cursor of run %s not saved: %v",
		e.Index, e.Action.Target, e.Action.Kind, e.Action.Issue, e.RunID, e.Err)
}

func (e *CursorNotSavedError) Unwrap() error {
	return e.Err
}

// IsCursorNotSaved reports whether a stored run error was recorded for a
// CursorNotSavedError.
func IsCursorNotSaved(lastError string) bool {
	return strings.Contains(lastError, "applied, cursor of run ") && strings.Contains(lastError, " not saved: ")
}

// Execute dispatches a single action to the matching writer.
func (e *Executor) Execute(ctx context.Context, action reconcile.Action) error {
	values := normalizeValues(action.Values)

	var err error
	switch {
	case action.Target == reconcile.TargetSource && action.Kind == reconcile.KindUpdate:
		if e.Source == nil {
			return errors.New("no toggl writer configured")
		}
		err = e.Source.UpdateEntry(ctx, action.ID, values)
	case action.Target == reconcile.TargetReference && action.Kind == reconcile.KindCreate:
		if e.Reference == nil {
			return errors.New("no jira writer configured")
		}
		err = e.Reference.AddWorklog(ctx, action.Issue, values)
	case action.Target == reconcile.TargetReference && action.Kind == reconcile.KindUpdate:
		if e.Reference == nil {
			return errors.New("no jira writer configured")
		}
		err = e.Reference.UpdateWorklog(ctx, action.Issue, action.ID, values)
	case action.Target == reconcile.TargetReference && action.Kind == reconcile.KindDelete:
		if e.Reference == nil {
			return errors.New("no jira writer configured")
		}
		err = e.Reference.DeleteWorklog(ctx, action.Issue, action.ID)
	default:
		return fmt.Errorf("%w: %s %s", ErrUnsupportedAction, action.Target, action.Kind)
	}

	if e.Metrics != nil {
		e.Metrics.RecordAction(string(action.Target), string(action.Kind), err)
	}
	if err != nil {
		e.Logger.Warn().Err(err).
			Str("target", string(action.Target)).
			Str("kind", string(action.Kind)).
			Str("issue", action.Issue).
			Str("id", action.ID).
			Msg("action failed")
		return err
	}
	e.Logger.Info().
		Str("target", string(action.Target)).
		Str("kind", string(action.Kind)).
		Str("issue", action.Issue).
		Str("id", action.ID).
		Msg("action applied")
	return nil
}

// normalizeValues turns integral JSON numbers back into integers so stored
// actions encode the same way as freshly reconciled ones.
func normalizeValues(values map[string]any) map[string]any {
	if values == nil {
		return nil
	}
	out := make(map[string]any, len(values))
	for key, value := range values {
		if number, ok := value.(float64); ok && number == math.Trunc(number) && math.Abs(number) < 1<<53 {
			out[key] = int64(number)
			continue
		}
		out[key] = value
	}
	return out
}
