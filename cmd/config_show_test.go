package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"tjsync/config"
)

func TestMaskSecret(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":             "",
		"abc":          "****",
		"abcdef":       "ab**ef",
		"  token123  ": "to****23",
	}
	for input, want := range tests {
		if got := maskSecret(input); got != want {
			t.Fatalf("maskSecret(%q): expected %q, got %q", input, want, got)
		}
	}
}

func TestRenderConfig_MasksSecrets(t *testing.T) {
	t.Parallel()

	billable := false
	cfg := config.Config{
		Toggl:    config.TogglConfig{URL: "https://api.track.toggl.com/api/", APIToken: "supersecrettoken", Workspace: "Mine"},
		Jira:     config.JiraConfig{URL: "https://jira.example.com/", Username: "jdoe", Password: "hunter22"},
		Window:   config.WindowConfig{Days: 7, Turnpoint: 6 * time.Hour},
		Database: "./tjsync.db",
		Projects: []config.ProjectConfig{{Key: "ABC", TogglBillable: &billable}},
	}

	rendered, err := renderConfig(cfg)
	if err != nil {
		t.Fatalf("render config: %v", err)
	}
	if strings.Contains(rendered, "supersecrettoken") || strings.Contains(rendered, "hunter22") {
		t.Fatalf("expected secrets to be masked:\n%s", rendered)
	}
	for _, want := range []string{"workspace: Mine", "username: jdoe", "turnpoint: 6h0m0s", "key: ABC", "toggl_billable: false"} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("expected %q in rendered config:\n%s", want, rendered)
		}
	}
	if cfg.Toggl.APIToken != "supersecrettoken" {
		t.Fatalf("expected caller config to stay unchanged")
	}
}

func TestRequiresConfig(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"diff":   true,
		"sync":   true,
		"serve":  true,
		"export": true,
		"resume": true,
		"list":   false,
		"create": false,
		"delete": false,
	}
	for name, want := range tests {
		if got := requiresConfig(&cobra.Command{Use: name}); got != want {
			t.Fatalf("requiresConfig(%q): expected %v, got %v", name, want, got)
		}
	}
	if requiresConfig(nil) {
		t.Fatalf("expected nil command not to require config")
	}
}
