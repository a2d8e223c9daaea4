package toggl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tjsync/worklog"
)

const (
	DefaultBaseURL = "https://api.track.toggl.com/api/"

	apiTokenPassword = "api_token"
)

// ErrWorkspaceNotFound is returned when no workspace carries the configured name.
var ErrWorkspaceNotFound = errors.New("toggl workspace not found")

// Client defines the Toggl operations the sync needs.
type Client interface {
	ListWorkspaces(ctx context.Context) ([]Workspace, error)
	ListProjects(ctx context.Context, workspaceID int64) ([]Project, error)
	ListTimeEntries(ctx context.Context, from, to time.Time) ([]TimeEntry, error)
	FetchWorklog(ctx context.Context, workspaceName string, from, to time.Time) (Worklog, error)
	UpdateEntry(ctx context.Context, id string, values map[string]any) error
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type ClientConfig struct {
	BaseURL    string
	APIToken   string
	UserAgent  string
	HTTPClient httpDoer
}

type HTTPClient struct {
	baseURL    string
	apiToken   string
	userAgent  string
	httpClient httpDoer
}

func NewClient(cfg ClientConfig) (*HTTPClient, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	parsedBase, err := url.Parse(baseURL)
	if err != nil || parsedBase.Scheme == "" || parsedBase.Host == "" {
		return nil, fmt.Errorf("invalid toggl URL %q", cfg.BaseURL)
	}

	apiToken := strings.TrimSpace(cfg.APIToken)
	if apiToken == "" {
		return nil, errors.New("toggl api token is required")
	}

	doer := cfg.HTTPClient
	if doer == nil {
		doer = &http.Client{Timeout: 30 * time.Second}
	}

	return &HTTPClient{
		baseURL:    baseURL,
		apiToken:   apiToken,
		userAgent:  strings.TrimSpace(cfg.UserAgent),
		httpClient: doer,
	}, nil
}

type Workspace struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Project struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Billable bool   `json:"billable"`
}

// TimeEntry is a Toggl time entry. Stop is nil while the timer is running.
type TimeEntry struct {
	ID          int64   `json:"id"`
	WorkspaceID int64   `json:"wid"`
	ProjectID   int64   `json:"pid"`
	UserID      int64   `json:"uid"`
	Billable    bool    `json:"billable"`
	Start       string  `json:"start"`
	Stop        *string `json:"stop"`
	Description string  `json:"description"`

	Raw map[string]any `json:"-"`
}

func (e *TimeEntry) UnmarshalJSON(data []byte) error {
	type plain TimeEntry
	var typed plain
	if err := json.Unmarshal(data, &typed); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = TimeEntry(typed)
	e.Raw = raw
	return nil
}

// Worklog is the Toggl side of one inspection window.
type Worklog struct {
	Workspace Workspace
	Projects  []Project
	Entries   []worklog.Entry
}

// ProjectIDs indexes the workspace projects by name.
func (w Worklog) ProjectIDs() map[string]int64 {
	out := make(map[string]int64, len(w.Projects))
	for _, project := range w.Projects {
		out[project.Name] = project.ID
	}
	return out
}

// APIError is a non-2xx Toggl response.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("toggl request %s %s failed with status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func (c *HTTPClient) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	var out []Workspace
	if err := c.doJSON(ctx, http.MethodGet, "/v8/workspaces", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) ListProjects(ctx context.Context, workspaceID int64) ([]Project, error) {
	var out []Project
	path := fmt.Sprintf("/v8/workspaces/%d/projects", workspaceID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) ListTimeEntries(ctx context.Context, from, to time.Time) ([]TimeEntry, error) {
	query := url.Values{}
	if !from.IsZero() {
		query.Set("start_date", worklog.FormatSourceTime(from))
	}
	if !to.IsZero() {
		query.Set("end_date", worklog.FormatSourceTime(to))
	}
	path := "/v8/time_entries"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var out []TimeEntry
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchWorklog loads the named workspace, its projects and the finished time
// entries starting in [from, to). Zero bounds are open.
func (c *HTTPClient) FetchWorklog(ctx context.Context, workspaceName string, from, to time.Time) (Worklog, error) {
	workspaces, err := c.ListWorkspaces(ctx)
	if err != nil {
		return Worklog{}, err
	}
	workspace, ok := findWorkspace(workspaces, workspaceName)
	if !ok {
		return Worklog{}, fmt.Errorf("%w: %q", ErrWorkspaceNotFound, workspaceName)
	}

	projects, err := c.ListProjects(ctx, workspace.ID)
	if err != nil {
		return Worklog{}, err
	}
	entries, err := c.ListTimeEntries(ctx, from, to)
	if err != nil {
		return Worklog{}, err
	}

	normalized, err := NormalizeEntries(entries, projects, from, to)
	if err != nil {
		return Worklog{}, err
	}
	return Worklog{Workspace: workspace, Projects: projects, Entries: normalized}, nil
}

// NormalizeEntries converts Toggl time entries into worklog entries.
func NormalizeEntries(entries []TimeEntry, projects []Project, from, to time.Time) ([]worklog.Entry, error) {
	projectNames := make(map[int64]string, len(projects))
	for _, project := range projects {
		projectNames[project.ID] = project.Name
	}

	users := make(map[int64]struct{})
	out := make([]worklog.Entry, 0, len(entries))
	for _, entry := range entries {
		users[entry.UserID] = struct{}{}
		if len(users) > 1 {
			return nil, fmt.Errorf("toggl returned time entries of %d users, expected one", len(users))
		}

		if entry.Stop == nil || strings.TrimSpace(*entry.Stop) == "" {
			continue
		}
		start, err := worklog.ParseSourceTime(entry.Start)
		if err != nil {
			return nil, fmt.Errorf("time entry %d: %w", entry.ID, err)
		}
		stop, err := worklog.ParseSourceTime(*entry.Stop)
		if err != nil {
			return nil, fmt.Errorf("time entry %d: %w", entry.ID, err)
		}
		if !from.IsZero() && start.Before(from) {
			continue
		}
		if !to.IsZero() && !start.Before(to) {
			continue
		}

		out = append(out, worklog.NewSourceEntry(entry.Description, start, stop, worklog.SourceInfo{
			ID:          strconv.FormatInt(entry.ID, 10),
			ProjectName: projectNames[entry.ProjectID],
			ProjectID:   entry.ProjectID,
			Billable:    entry.Billable,
			Raw:         entry.Raw,
		}))
	}
	return out, nil
}

// UpdateEntry applies action values to a time entry. Nil values are left out
// of the request.
func (c *HTTPClient) UpdateEntry(ctx context.Context, id string, values map[string]any) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("time entry id is required")
	}

	fields := make(map[string]any, len(values))
	for _, mapping := range []struct{ from, to string }{
		{"comment", "description"},
		{"start", "start"},
		{"stop", "stop"},
		{"pid", "pid"},
		{"billable", "billable"},
	} {
		if value, ok := values[mapping.from]; ok && value != nil {
			fields[mapping.to] = value
		}
	}
	if len(fields) == 0 {
		return errors.New("time entry update must not be empty")
	}

	body := map[string]any{"time_entry": fields}
	return c.doJSON(ctx, http.MethodPut, "/v8/time_entries/"+url.PathEscape(id), body, nil)
}

func findWorkspace(workspaces []Workspace, name string) (Workspace, bool) {
	for _, workspace := range workspaces {
		if workspace.Name == name {
			return workspace, true
		}
	}
	return Workspace{}, false
}

func (c *HTTPClient) doJSON(ctx context.Context, method, endpointPath string, body any, out any) error {
	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpointPath, bodyReader)
	if err != nil {
		return fmt.Errorf("create request %s %s: %w", method, endpointPath, err)
	}

	req.SetBasicAuth(c.apiToken, apiTokenPassword)
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, endpointPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			Method:     method,
			Path:       endpointPath,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(responseBody)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode response %s %s: %w", method, endpointPath, err)
	}
	return nil
}
