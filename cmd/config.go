package cmd

import "github.com/spf13/cobra"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage tjsync configuration file values.",
	Long: `Create, edit, display, and delete the tjsync configuration file.

The configuration stores credentials, the rolling window and per-project settings:
- toggl.url / toggl.api_token / toggl.workspace
- jira.url / jira.username / jira.password
- window.days / window.turnpoint
- projects[].key / toggl_project / toggl_billable / jira_skip

Every key can be overridden by an environment variable, e.g. TJSYNC_TOGGL_API_TOKEN.`,
	Example: `
  # Create default config in $HOME/.tjsync.yaml
  tjsync config create

  # Show active config and source file
  tjsync config show

  # Open active config in editor (creates example if missing)
  tjsync config edit

  # Add one project interactively from Toggl lookups
  tjsync config project add

  # Delete active config file
  tjsync config delete
`,
}

func init() {
	rootCmd.AddCommand(configCmd)
}
