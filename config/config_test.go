package config

import (
	"strings"
	"testing"
	"time"
)

const validYAML = `toggl:
  api_token: "token"
  workspace: "Work"
jira:
  url: "https://jira.example.com/"
  username: "jdoe"
  password: "secret"
projects:
  - key: "ABC"
    toggl_project: "Alpha"
  - key: "DEF"
    toggl_billable: false
    jira_skip: true
`

func TestValidateYAMLContent_AppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := ValidateYAMLContent([]byte(validYAML))
	if err != nil {
		t.Fatalf("expected config to validate: %v", err)
	}
	if cfg.Toggl.URL != "https://api.track.toggl.com/api/" {
		t.Fatalf("unexpected toggl url default: %q", cfg.Toggl.URL)
	}
	if cfg.Window.Days != 7 {
		t.Fatalf("expected window days 7, got %d", cfg.Window.Days)
	}
	if cfg.Window.Turnpoint != 6*time.Hour {
		t.Fatalf("expected turnpoint 6h, got %s", cfg.Window.Turnpoint)
	}
	if cfg.Database != "./tjsync.db" {
		t.Fatalf("unexpected database default: %q", cfg.Database)
	}
}

func TestValidateYAMLContent_RequiresCredentials(t *testing.T) {
	t.Parallel()

	content := []byte(`toggl:
  workspace: "Work"
jira:
  url: "https://jira.example.com/"
  username: "jdoe"
  password: "secret"
`)

	_, err := ValidateYAMLContent(content)
	if err == nil {
		t.Fatalf("expected validation error for missing api token")
	}
	if !strings.Contains(err.Error(), "APIToken") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateYAMLContent_RejectsInvalidProjectKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		projects string
		want     string
	}{
		{name: "empty", projects: "  - key: \"\"\n", want: "is required"},
		{name: "dash", projects: "  - key: \"AB-C\"\n", want: "must not contain"},
		{name: "duplicate", projects: "  - key: \"ABC\"\n  - key: \"ABC\"\n", want: "duplicate project key"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			content := strings.SplitAfter(validYAML, "projects:\n")[0] + tc.projects
			_, err := ValidateYAMLContent([]byte(content))
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateYAMLContent_RejectsUnknownLogFormat(t *testing.T) {
	t.Parallel()

	content := validYAML + "log:\n  format: \"xml\"\n"
	if _, err := ValidateYAMLContent([]byte(content)); err == nil {
		t.Fatalf("expected validation error for log format")
	}
}

func TestProjectSettings(t *testing.T) {
	t.Parallel()

	cfg, err := ValidateYAMLContent([]byte(validYAML))
	if err != nil {
		t.Fatalf("expected config to validate: %v", err)
	}

	settings := cfg.ProjectSettings()
	if len(settings) != 2 {
		t.Fatalf("expected 2 project settings, got %d", len(settings))
	}

	abc := settings["ABC"]
	if abc.SourceProject != "Alpha" || !abc.SourceBillable || abc.ReferenceSkip {
		t.Fatalf("unexpected ABC settings: %+v", abc)
	}
	def := settings["DEF"]
	if def.SourceProject != "" || def.SourceBillable || !def.ReferenceSkip {
		t.Fatalf("unexpected DEF settings: %+v", def)
	}
}

func TestExampleYAMLValidatesOnceCredentialsAreFilled(t *testing.T) {
	t.Parallel()

	content := ExampleYAML()
	content = strings.Replace(content, `api_token: ""`, `api_token: "t"`, 1)
	content = strings.Replace(content, `username: ""`, `username: "u"`, 1)
	content = strings.Replace(content, `password: ""`, `password: "p"`, 1)

	cfg, err := ValidateYAMLContent([]byte(content))
	if err != nil {
		t.Fatalf("expected example config to validate: %v", err)
	}
	if _, ok := cfg.ProjectSettings()["ABC"]; !ok {
		t.Fatalf("expected example project ABC")
	}
}

func TestExampleYAMLFailsWithoutCredentials(t *testing.T) {
	t.Parallel()

	if _, err := ValidateYAMLContent([]byte(ExampleYAML())); err == nil {
		t.Fatalf("expected empty credentials to fail validation")
	}
}

func TestProblems_ListsEveryProblemByConfigPath(t *testing.T) {
	t.Parallel()

	content := []byte(`toggl:
  workspace: "Work"
jira:
  url: "not a url"
  username: "jdoe"
  password: "secret"
log:
  format: "xml"
projects:
  - key: "ABC"
  - key: "ABC"
  - key: ""
`)

	got := strings.Join(Problems(content), "\n")
	for _, want := range []string{
		"toggl.api_token is required",
		`jira.url "not a url" is not a valid URL`,
		"log.format must be one of: console json",
		`duplicate project key "ABC"`,
		"projects[2].key is required",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in problems:\n%s", want, got)
		}
	}

	if problems := Problems([]byte(validYAML)); len(problems) != 0 {
		t.Fatalf("expected no problems for valid config, got %v", problems)
	}
}
