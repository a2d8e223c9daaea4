package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tjsync/worklog"
)

const (
	// PageSize is the largest page Jira returns for worklog listings.
	PageSize = 5000

	searchPageSize = 100
	dateMargin     = 24 * time.Hour
)

// Filter selects the worklog items of one author started in [From, To).
// Empty or zero fields do not filter.
type Filter struct {
	Author string
	From   time.Time
	To     time.Time
}

// Author is the author block of a worklog item.
type Author struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	EmailAddress string `json:"emailAddress"`
	DisplayName  string `json:"displayName"`
}

// Item is a Jira worklog item as returned by the issue worklog endpoint.
type Item struct {
	ID               string `json:"id"`
	Author           Author `json:"author"`
	Started          string `json:"started"`
	TimeSpentSeconds int64  `json:"timeSpentSeconds"`
	Comment          string `json:"comment"`

	Raw map[string]any `json:"-"`
}

func (i *Item) UnmarshalJSON(data []byte) error {
	type plain Item
	var typed plain
	if err := json.Unmarshal(data, &typed); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = Item(typed)
	i.Raw = raw
	return nil
}

type worklogPage struct {
	StartAt    int    `json:"startAt"`
	MaxResults int    `json:"maxResults"`
	Total      int    `json:"total"`
	Worklogs   []Item `json:"worklogs"`
}

type searchIssue struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

type searchResult struct {
	StartAt    int           `json:"startAt"`
	MaxResults int           `json:"maxResults"`
	Total      int           `json:"total"`
	Issues     []searchIssue `json:"issues"`
}

// AssembleJQL builds the issue query for a filter. The date bounds are widened
// by margin since worklogDate is evaluated in the server's time zone.
func AssembleJQL(filter Filter, margin time.Duration) string {
	clauses := make([]string, 0, 3)
	if filter.Author != "" {
		clauses = append(clauses, fmt.Sprintf("worklogAuthor = %q", filter.Author))
	}
	if !filter.From.IsZero() {
		clauses = append(clauses, fmt.Sprintf("worklogDate >= %q", filter.From.Add(-margin).Format(worklog.DateLayout)))
	}
	if !filter.To.IsZero() {
		clauses = append(clauses, fmt.Sprintf("worklogDate <= %q", filter.To.Add(margin).Format(worklog.DateLayout)))
	}
	return strings.Join(clauses, " AND ")
}

// Matches reports whether a worklog item passes the filter.
func (f Filter) Matches(item Item) bool {
	if f.Author != "" {
		candidates := []string{item.Author.Key, item.Author.Name, item.Author.EmailAddress, item.Author.DisplayName}
		found := false
		for _, candidate := range candidates {
			if candidate == f.Author {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	started, err := worklog.ParseReferenceTime(item.Started)
	if err != nil {
		return false
	}
	if !f.From.IsZero() && started.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !started.Before(f.To) {
		return false
	}
	return true
}

// FetchWorklog returns the worklog items of author started in [from, to).
func (c *Client) FetchWorklog(ctx context.Context, author string, from, to time.Time) ([]worklog.Entry, error) {
	filter := Filter{Author: author, From: from, To: to}
	jql := AssembleJQL(filter, dateMargin)

	issues, err := c.SearchIssues(ctx, jql)
	if err != nil {
		return nil, err
	}

	entries := make([]worklog.Entry, 0)
	for _, issue := range issues {
		items, err := c.ListWorklogs(ctx, issue)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if !filter.Matches(item) {
				continue
			}
			started, err := worklog.ParseReferenceTime(item.Started)
			if err != nil {
				return nil, fmt.Errorf("worklog %s of %s: %w", item.ID, issue, err)
			}
			stop := started.Add(time.Duration(item.TimeSpentSeconds) * time.Second)
			entries = append(entries, worklog.NewReferenceEntry(item.ID, issue, item.Comment, started, stop, item.Raw))
		}
	}

	c.logger.Debug().Str("jql", jql).Int("issues", len(issues)).Int("worklogs", len(entries)).Msg("fetched jira worklog")
	return entries, nil
}

// SearchIssues returns the keys of all issues matching jql.
func (c *Client) SearchIssues(ctx context.Context, jql string) ([]string, error) {
	keys := make([]string, 0)
	for startAt := 0; ; {
		query := url.Values{}
		query.Set("jql", jql)
		query.Set("fields", "key")
		query.Set("startAt", strconv.Itoa(startAt))
		query.Set("maxResults", strconv.Itoa(searchPageSize))

		resp, err := c.do(ctx, http.MethodGet, "/rest/api/2/search?"+query.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("searching issues: %w", err)
		}
		var page searchResult
		if err := decodeResponse(resp, &page); err != nil {
			return nil, err
		}
		for _, issue := range page.Issues {
			keys = append(keys, issue.Key)
		}

		startAt += len(page.Issues)
		if len(page.Issues) == 0 || startAt >= page.Total {
			return keys, nil
		}
	}
}

// ListWorklogs returns every worklog item of an issue, following pagination.
func (c *Client) ListWorklogs(ctx context.Context, issue string) ([]Item, error) {
	items := make([]Item, 0)
	for startAt := 0; ; startAt += PageSize {
		path := fmt.Sprintf("/rest/api/2/issue/%s/worklog?maxResults=%d", url.PathEscape(issue), PageSize)
		if startAt > 0 {
			path = fmt.Sprintf("/rest/api/2/issue/%s/worklog?startAt=%d&maxResults=%d", url.PathEscape(issue), startAt, PageSize)
		}

		resp, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, fmt.Errorf("listing worklogs of %s: %w", issue, err)
		}
		var page worklogPage
		if err := decodeResponse(resp, &page); err != nil {
			return nil, err
		}
		items = append(items, page.Worklogs...)

		if len(page.Worklogs) == 0 || len(items) >= page.Total {
			return items, nil
		}
	}
}

// AddWorklog creates a worklog item on issue.
func (c *Client) AddWorklog(ctx context.Context, issue string, values map[string]any) error {
	path := fmt.Sprintf("/rest/api/2/issue/%s/worklog", url.PathEscape(issue))
	resp, err := c.do(ctx, http.MethodPost, path, values)
	if err != nil {
		return fmt.Errorf("adding worklog to %s: %w", issue, err)
	}
	discardResponse(resp)
	return nil
}

// UpdateWorklog changes fields of an existing worklog item.
func (c *Client) UpdateWorklog(ctx context.Context, issue, id string, values map[string]any) error {
	path := fmt.Sprintf("/rest/api/2/issue/%s/worklog/%s", url.PathEscape(issue), url.PathEscape(id))
	resp, err := c.do(ctx, http.MethodPut, path, values)
	if err != nil {
		return fmt.Errorf("updating worklog %s of %s: %w", id, issue, err)
	}
	discardResponse(resp)
	return nil
}

// DeleteWorklog removes a worklog item.
func (c *Client) DeleteWorklog(ctx context.Context, issue, id string) error {
	path := fmt.Sprintf("/rest/api/2/issue/%s/worklog/%s", url.PathEscape(issue), url.PathEscape(id))
	resp, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return fmt.Errorf("deleting worklog %s of %s: %w", id, issue, err)
	}
	discardResponse(resp)
	return nil
}

// FormatStarted renders a timestamp the way Jira expects it in "started".
func FormatStarted(value time.Time) string {
	return worklog.FormatReferenceTime(value)
}

// ParseStarted parses a Jira "started" timestamp.
func ParseStarted(value string) (time.Time, error) {
	return worklog.ParseReferenceTime(value)
}
