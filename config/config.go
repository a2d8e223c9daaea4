package config

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"tjsync/reconcile"
)

const (
	KeyTogglURL        = "toggl.url"
	KeyTogglAPIToken   = "toggl.api_token"
	KeyTogglWorkspace  = "toggl.workspace"
	KeyJiraURL         = "jira.url"
	KeyJiraUsername    = "jira.username"
	KeyJiraPassword    = "jira.password"
	KeyWindowDays      = "window.days"
	KeyWindowTurnpoint = "window.turnpoint"
	KeyDatabase        = "database"
	KeyLogLevel        = "log.level"
	KeyLogFormat       = "log.format"
	KeyProjects        = "projects"

	EnvPrefix = "TJSYNC"
)

type Config struct {
	Toggl    TogglConfig     `mapstructure:"toggl" yaml:"toggl" validate:"required"`
	Jira     JiraConfig      `mapstructure:"jira" yaml:"jira" validate:"required"`
	Window   WindowConfig    `mapstructure:"window" yaml:"window"`
	Database string          `mapstructure:"database" yaml:"database" validate:"required"`
	Log      LogConfig       `mapstructure:"log" yaml:"log"`
	Projects []ProjectConfig `mapstructure:"projects" yaml:"projects" validate:"dive"`
}

type TogglConfig struct {
	URL       string `mapstructure:"url" yaml:"url" validate:"required,url"`
	APIToken  string `mapstructure:"api_token" yaml:"api_token" validate:"required"`
	Workspace string `mapstructure:"workspace" yaml:"workspace" validate:"required"`
}

type JiraConfig struct {
	URL      string `mapstructure:"url" yaml:"url" validate:"required,url"`
	Username string `mapstructure:"username" yaml:"username" validate:"required"`
	Password string `mapstructure:"password" yaml:"password" validate:"required"`
}

type WindowConfig struct {
	Days      int           `mapstructure:"days" yaml:"days" validate:"gte=0,lte=366"`
	Turnpoint time.Duration `mapstructure:"turnpoint" yaml:"turnpoint" validate:"gte=0,lt=24h"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=console json"`
}

// ProjectConfig is one entry of the projects list. Projects are a list
// because viper lowercases map keys and Jira keys are case sensitive.
type ProjectConfig struct {
	Key           string `mapstructure:"key" yaml:"key"`
	TogglProject  string `mapstructure:"toggl_project" yaml:"toggl_project,omitempty"`
	TogglBillable *bool  `mapstructure:"toggl_billable" yaml:"toggl_billable,omitempty"`
	JiraSkip      bool   `mapstructure:"jira_skip" yaml:"jira_skip,omitempty"`
}

// Billable returns the configured billable default, true when unset.
func (p ProjectConfig) Billable() bool {
	if p.TogglBillable == nil {
		return true
	}
	return *p.TogglBillable
}

// ProjectSettings converts the project list into the reconciler's lookup table.
func (c Config) ProjectSettings() map[string]reconcile.ProjectSetting {
	out := make(map[string]reconcile.ProjectSetting, len(c.Projects))
	for _, project := range c.Projects {
		out[strings.TrimSpace(project.Key)] = reconcile.ProjectSetting{
			SourceProject:  strings.TrimSpace(project.TogglProject),
			SourceBillable: project.Billable(),
			ReferenceSkip:  project.JiraSkip,
		}
	}
	return out
}

// SetDefaults sets default values if not provided
func SetDefaults() {
	setDefaults(viper.GetViper())
}

// LoadAndValidate loads config from Viper and validates it
func LoadAndValidate() (*Config, error) {
	return loadAndValidateFromViper(viper.GetViper())
}

// ValidateYAMLContent validates configuration from raw YAML content.
func ValidateYAMLContent(content []byte) (*Config, error) {
	local := viper.New()
	setDefaults(local)
	local.SetConfigType("yaml")
	if err := local.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("read config content: %w", err)
	}
	return loadAndValidateFromViper(local)
}

// BindEnv makes every known key overridable by TJSYNC_<SECTION>_<KEY>.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{
		KeyTogglURL, KeyTogglAPIToken, KeyTogglWorkspace,
		KeyJiraURL, KeyJiraUsername, KeyJiraPassword,
		KeyWindowDays, KeyWindowTurnpoint, KeyDatabase,
		KeyLogLevel, KeyLogFormat,
	} {
		_ = v.BindEnv(key)
	}
}

// ExampleYAML returns the default configuration template.
func ExampleYAML() string {
	return `# tjsync configuration
toggl:
  url: "https://api.track.toggl.com/api/"
  # api_token can also be set via TJSYNC_TOGGL_API_TOKEN
  api_token: ""
  workspace: "My Workspace"

jira:
  url: "https://jira.example.com/"
  username: ""
  # password can also be set via TJSYNC_JIRA_PASSWORD
  password: ""

window:
  days: 7
  turnpoint: "6h"

database: "./tjsync.db"

log:
  level: "info"
  format: ""

projects:
  - key: "ABC"
    toggl_project: ""
    toggl_billable: true
    jira_skip: false
`
}

func loadAndValidateFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if err := ValidateProjects(cfg.Projects); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyTogglURL, "https://api.track.toggl.com/api/")
	v.SetDefault(KeyWindowDays, 7)
	v.SetDefault(KeyWindowTurnpoint, "6h")
	v.SetDefault(KeyDatabase, "./tjsync.db")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyProjects, []map[string]any{})
}

// ValidateProjects checks that every project key is present, unique and
// usable as a Jira issue prefix.
func ValidateProjects(projects []ProjectConfig) error {
	if problems := projectProblems(projects); len(problems) > 0 {
		return fmt.Errorf("validation failed: %s", problems[0])
	}
	return nil
}

func projectProblems(projects []ProjectConfig) []string {
	var problems []string
	seen := make(map[string]struct{}, len(projects))
	for i, project := range projects {
		key := strings.TrimSpace(project.Key)
		switch {
		case key == "":
			problems = append(problems, fmt.Sprintf("projects[%d].key is required", i))
			continue
		case strings.ContainsAny(key, "- :"):
			problems = append(problems, fmt.Sprintf("projects[%d].key %q must not contain '-', ':' or spaces", i, project.Key))
			continue
		}
		if _, exists := seen[key]; exists {
			problems = append(problems, fmt.Sprintf("duplicate project key %q", key))
			continue
		}
		seen[key] = struct{}{}
	}
	return problems
}

// Problems lists every validation problem of raw YAML content, named by
// config path (e.g. "toggl.api_token is required"). It is empty exactly when
// ValidateYAMLContent succeeds.
func Problems(content []byte) []string {
	local := viper.New()
	setDefaults(local)
	local.SetConfigType("yaml")
	if err := local.ReadConfig(bytes.NewReader(content)); err != nil {
		return []string{fmt.Sprintf("read config content: %v", err)}
	}

	var cfg Config
	if err := local.Unmarshal(&cfg); err != nil {
		return []string{fmt.Sprintf("unmarshal config: %v", err)}
	}

	var problems []string
	if err := pathValidator().Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return []string{err.Error()}
		}
		for _, fieldErr := range fieldErrs {
			problems = append(problems, describeFieldError(fieldErr))
		}
	}
	return append(problems, projectProblems(cfg.Projects)...)
}

// pathValidator reports fields by their mapstructure names.
func pathValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
		if name == "" {
			return field.Name
		}
		return name
	})
	return validate
}

func describeFieldError(fieldErr validator.FieldError) string {
	path := strings.TrimPrefix(fieldErr.Namespace(), "Config.")
	switch fieldErr.Tag() {
	case "required":
		return path + " is required"
	case "url":
		return fmt.Sprintf("%s %q is not a valid URL", path, fieldErr.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", path, fieldErr.Param())
	}
	if fieldErr.Param() != "" {
		return fmt.Sprintf("%s fails %s=%s (got %v)", path, fieldErr.Tag(), fieldErr.Param(), fieldErr.Value())
	}
	return fmt.Sprintf("%s fails %s", path, fieldErr.Tag())
}
