package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"tjsync/config"
)

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show active configuration values.",
	Long: `Display the effective configuration as YAML and the resolved config file path.

Values from TJSYNC_* environment variables and .env are included.
The Toggl API token and the Jira password are masked.`,
	Example: `
  # Show active configuration
  tjsync config show
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadAndValidate()
		if err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		if configPath := viper.ConfigFileUsed(); configPath != "" {
			fmt.Println("Config file loaded from:", configPath)
		} else {
			fmt.Println("No config file loaded, showing defaults and environment values.")
		}

		rendered, err := renderConfig(*cfg)
		if err != nil {
			return err
		}
		fmt.Println("Configuration:")
		fmt.Print(rendered)
		return nil
	},
}

type windowView struct {
	Days      int    `yaml:"days"`
	Turnpoint string `yaml:"turnpoint"`
}

type configView struct {
	Toggl    config.TogglConfig     `yaml:"toggl"`
	Jira     config.JiraConfig      `yaml:"jira"`
	Window   windowView             `yaml:"window"`
	Database string                 `yaml:"database"`
	Log      config.LogConfig       `yaml:"log"`
	Projects []config.ProjectConfig `yaml:"projects,omitempty"`
}

// renderConfig marshals cfg as YAML with credentials masked.
func renderConfig(cfg config.Config) (string, error) {
	cfg.Toggl.APIToken = maskSecret(cfg.Toggl.APIToken)
	cfg.Jira.Password = maskSecret(cfg.Jira.Password)

	out, err := yaml.Marshal(configView{
		Toggl:    cfg.Toggl,
		Jira:     cfg.Jira,
		Window:   windowView{Days: cfg.Window.Days, Turnpoint: cfg.Window.Turnpoint.String()},
		Database: cfg.Database,
		Log:      cfg.Log,
		Projects: cfg.Projects,
	})
	if err != nil {
		return "", fmt.Errorf("render config: %w", err)
	}
	return string(out), nil
}

func maskSecret(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "****"
	}
	return value[:2] + strings.Repeat("*", len(value)-4) + value[len(value)-2:]
}

func init() {
	configCmd.AddCommand(configShowCmd)
}
