package executor

import (
	"context"

	"tjsync/reconcile"
)

// Cursor is a resumable position in an ordered action list. Actions before
// Next have been applied and are never executed again.
type Cursor struct {
	RunID   string
	Actions []reconcile.Action
	Next    int
}

func (c *Cursor) Total() int {
	return len(c.Actions)
}

func (c *Cursor) Done() bool {
	return c.Next >= len(c.Actions)
}

// Progress is reported after every applied action.
type Progress struct {
	Current  int  `json:"current"`
	Total    int  `json:"total"`
	Next     int  `json:"next"`
	Finished bool `json:"finished"`
}

// Step executes the action at the cursor and advances it on success. A done
// cursor is left untouched.
func (e *Executor) Step(ctx context.Context, cursor *Cursor) error {
	if cursor.Done() {
		return nil
	}

	index := cursor.Next
	action := cursor.Actions[index]
	if err := e.Execute(ctx, action); err != nil {
		if e.Store != nil && cursor.RunID != "" {
			if storeErr := e.Store.MarkFailed(cursor.RunID, err.Error()); storeErr != nil {
				e.Logger.Error().Err(storeErr).Str("run", cursor.RunID).Msg("could not record failure")
			}
		}
		return &StepError{Index: index, Action: action, Err: err}
	}

	cursor.Next = index + 1
	if e.Store != nil && cursor.RunID != "" {
		if err := e.Store.SaveCursor(cursor.RunID, cursor.Next); err != nil {
			unsaved := &CursorNotSavedError{RunID: cursor.RunID, Index: index, Action: action, Err: err}
			// MarkFailed leaves next_index alone, so it can still succeed here.
			if storeErr := e.Store.MarkFailed(cursor.RunID, unsaved.Error()); storeErr != nil {
				e.Logger.Error().Err(storeErr).Str("run", cursor.RunID).Msg("could not record unsaved cursor")
			}
			return unsaved
		}
	}
	return nil
}

// Run steps until the cursor is done or an action fails. Nothing is retried.
func (e *Executor) Run(ctx context.Context, cursor *Cursor, progress func(Progress)) error {
	if cursor.Done() {
		report(progress, Progress{Current: cursor.Next, Total: cursor.Total(), Next: cursor.Next, Finished: true})
		return nil
	}

	for !cursor.Done() {
		if err := ctx.Err(); err != nil {
			return err
		}
		current := cursor.Next
		if err := e.Step(ctx, cursor); err != nil {
			return err
		}
		report(progress, Progress{
			Current:  current,
			Total:    cursor.Total(),
			Next:     cursor.Next,
			Finished: cursor.Done(),
		})
	}

	e.Logger.Info().Str("run", cursor.RunID).Int("actions", cursor.Total()).Msg("run finished")
	return nil
}

func report(progress func(Progress), value Progress) {
	if progress != nil {
		progress(value)
	}
}
