package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	client := NewClient(server.URL, &BasicAuth{Username: "jdoe", Password: "secret"}, zerolog.Nop())
	client.SetHTTPClient(server.Client())
	return client, server
}

func TestAssembleJQL(t *testing.T) {
	from := time.Date(2024, 3, 4, 6, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 11, 6, 0, 0, 0, time.UTC)

	jql := AssembleJQL(Filter{Author: "jdoe", From: from, To: to}, 24*time.Hour)
	assert.Equal(t, `worklogAuthor = "jdoe" AND worklogDate >= "2024-03-03" AND worklogDate <= "2024-03-12"`, jql)

	assert.Equal(t, `worklogAuthor = "jdoe"`, AssembleJQL(Filter{Author: "jdoe"}, 24*time.Hour))
	assert.Empty(t, AssembleJQL(Filter{}, 0))
}

func TestFilter_Matches(t *testing.T) {
	from := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	filter := Filter{Author: "jdoe@example.com", From: from, To: to}

	tests := []struct {
		name string
		item Item
		want bool
	}{
		{
			name: "email matches",
			item: Item{Author: Author{EmailAddress: "jdoe@example.com"}, Started: "2024-03-04T00:00:00.000+0000"},
			want: true,
		},
		{
			name: "display name matches",
			item: Item{Author: Author{DisplayName: "jdoe@example.com"}, Started: "2024-03-04T10:00:00.000+0000"},
			want: true,
		},
		{
			name: "other author",
			item: Item{Author: Author{Name: "someone"}, Started: "2024-03-04T10:00:00.000+0000"},
			want: false,
		},
		{
			name: "started at upper bound",
			item: Item{Author: Author{Key: "jdoe@example.com"}, Started: "2024-03-05T00:00:00.000+0000"},
			want: false,
		},
		{
			name: "started before lower bound",
			item: Item{Author: Author{Key: "jdoe@example.com"}, Started: "2024-03-04T00:30:00.000+0100"},
			want: false,
		},
		{
			name: "unparsable started",
			item: Item{Author: Author{Key: "jdoe@example.com"}, Started: "yesterday"},
			want: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, filter.Matches(tc.item))
		})
	}
}

func TestClient_FetchWorklog(t *testing.T) {
	client, server := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "jdoe", user)
		assert.Equal(t, "secret", pass)

		switch r.URL.Path {
		case "/rest/api/2/search":
			assert.Equal(t, `worklogAuthor = "jdoe" AND worklogDate >= "2024-03-03" AND worklogDate <= "2024-03-06"`, r.URL.Query().Get("jql"))
			json.NewEncoder(w).Encode(map[string]any{
				"startAt": 0, "maxResults": 100, "total": 1,
				"issues": []map[string]any{{"id": "100", "key": "ABC-1"}},
			})
		case "/rest/api/2/issue/ABC-1/worklog":
			assert.Equal(t, "5000", r.URL.Query().Get("maxResults"))
			json.NewEncoder(w).Encode(map[string]any{
				"startAt": 0, "maxResults": 5000, "total": 3,
				"worklogs": []map[string]any{
					{
						"id": "501", "author": map[string]any{"name": "jdoe"},
						"started": "2024-03-04T09:00:00.000+0000", "timeSpentSeconds": 3600, "comment": "ABC-1 review",
					},
					{
						"id": "502", "author": map[string]any{"name": "someone"},
						"started": "2024-03-04T09:00:00.000+0000", "timeSpentSeconds": 60,
					},
					{
						"id": "503", "author": map[string]any{"name": "jdoe"},
						"started": "2024-03-01T09:00:00.000+0000", "timeSpentSeconds": 60,
					},
				},
			})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	defer server.Close()

	from := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	entries, err := client.FetchWorklog(context.Background(), "jdoe", from, to)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, "ABC-1", entry.Issue)
	assert.Equal(t, "ABC-1 review", entry.Comment)
	assert.Equal(t, "501", entry.ID())
	assert.True(t, entry.Start.Equal(time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Hour, entry.Duration())

	tag, ok := entry.ReferenceTag()
	require.True(t, ok)
	assert.Equal(t, float64(3600), tag.Raw["timeSpentSeconds"])
	assert.Equal(t, "2024-03-04T09:00:00.000+0000", tag.Raw["started"])
}

func TestClient_ListWorklogs_Paginates(t *testing.T) {
	calls := 0
	client, server := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		startAt := r.URL.Query().Get("startAt")
		switch startAt {
		case "":
			json.NewEncoder(w).Encode(map[string]any{
				"total":    2,
				"worklogs": []map[string]any{{"id": "1", "started": "2024-03-04T09:00:00.000+0000"}},
			})
		case fmt.Sprint(PageSize):
			json.NewEncoder(w).Encode(map[string]any{
				"total":    2,
				"worklogs": []map[string]any{{"id": "2", "started": "2024-03-04T10:00:00.000+0000"}},
			})
		default:
			t.Errorf("unexpected startAt %q", startAt)
		}
	})
	defer server.Close()

	items, err := client.ListWorklogs(context.Background(), "ABC-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "1", items[0].ID)
	assert.Equal(t, "2", items[1].ID)
	assert.Equal(t, 2, calls)
}

func TestClient_WorklogMutations(t *testing.T) {
	type seenRequest struct {
		method string
		path   string
		body   map[string]any
	}
	var seen []seenRequest

	client, server := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		request := seenRequest{method: r.Method, path: r.URL.Path}
		if r.ContentLength > 0 {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&request.body))
		}
		seen = append(seen, request)
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"id": "900"})
	})
	defer server.Close()

	ctx := context.Background()
	values := map[string]any{"started": "2024-03-04T09:00:00.000+0000", "timeSpentSeconds": 3600, "comment": "ABC-1"}
	require.NoError(t, client.AddWorklog(ctx, "ABC-1", values))
	require.NoError(t, client.UpdateWorklog(ctx, "ABC-1", "900", map[string]any{"comment": "changed"}))
	require.NoError(t, client.DeleteWorklog(ctx, "ABC-1", "900"))

	require.Len(t, seen, 3)
	assert.Equal(t, http.MethodPost, seen[0].method)
	assert.Equal(t, "/rest/api/2/issue/ABC-1/worklog", seen[0].path)
	assert.Equal(t, float64(3600), seen[0].body["timeSpentSeconds"])
	assert.Equal(t, http.MethodPut, seen[1].method)
	assert.Equal(t, "/rest/api/2/issue/ABC-1/worklog/900", seen[1].path)
	assert.Equal(t, "changed", seen[1].body["comment"])
	assert.Equal(t, http.MethodDelete, seen[2].method)
	assert.Equal(t, "/rest/api/2/issue/ABC-1/worklog/900", seen[2].path)
}

func TestClient_APIError(t *testing.T) {
	client, server := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("bad credentials"))
	})
	defer server.Close()

	err := client.DeleteWorklog(context.Background(), "ABC-1", "1")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "bad credentials", apiErr.Body)
}

func TestStartedFormatRoundTrip(t *testing.T) {
	value := time.Date(2024, 3, 4, 9, 30, 0, 0, time.FixedZone("CET", 3600))
	formatted := FormatStarted(value)
	assert.Equal(t, "2024-03-04T09:30:00.000+0100", formatted)

	parsed, err := ParseStarted(formatted)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(value))
}
