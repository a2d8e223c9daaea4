package inspect

import (
	"context"
	"time"

	"tjsync/internal/timeutil"
	"tjsync/toggl"
	"tjsync/worklog"
)

// TogglSource reads the time entries of one Toggl workspace.
type TogglSource struct {
	Client    toggl.Client
	Workspace string
}

func (t TogglSource) FetchSource(ctx context.Context, window timeutil.Window) (SourceData, error) {
	fetched, err := t.Client.FetchWorklog(ctx, t.Workspace, window.From, window.To)
	if err != nil {
		return SourceData{}, err
	}
	return SourceData{Entries: fetched.Entries, ProjectIDs: fetched.ProjectIDs()}, nil
}

type worklogFetcher interface {
	FetchWorklog(ctx context.Context, author string, from, to time.Time) ([]worklog.Entry, error)
}

// JiraReference reads the worklog items of one Jira author.
type JiraReference struct {
	Client worklogFetcher
	Author string
}

func (j JiraReference) FetchReference(ctx context.Context, window timeutil.Window) ([]worklog.Entry, error) {
	return j.Client.FetchWorklog(ctx, j.Author, window.From, window.To)
}
