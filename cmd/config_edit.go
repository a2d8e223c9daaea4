package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tjsync/config"
)

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the active config in an editor.",
	Long: `Open the active tjsync config file in your editor.

Editor selection order:
1) $VISUAL
2) $EDITOR
3) vi

A missing config file is created from the example template first.
When the editor exits, every problem of the file is listed (missing
credentials, invalid URLs, bad project keys) and the editor can be reopened
until the file validates.`,
	Example: `
  # Edit active config
  tjsync config edit

  # Edit a config at a custom path with nano
  EDITOR=nano tjsync --configFile ./team.yaml config edit
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := resolveConfigEditPath(cfgFile, viper.ConfigFileUsed())
		if err != nil {
			return err
		}

		created, err := ensureConfigFileWithTemplate(configPath)
		if err != nil {
			return err
		}
		if created {
			fmt.Printf("No config file found. Created example config at: %s\n", configPath)
		}

		editor := resolveEditorValue(os.Getenv("VISUAL"), os.Getenv("EDITOR"))
		openEditor := func() error {
			editorCommand, err := buildEditorCommand(editor, configPath)
			if err != nil {
				return err
			}
			editorCommand.Stdin = os.Stdin
			editorCommand.Stdout = os.Stdout
			editorCommand.Stderr = os.Stderr
			if err := editorCommand.Run(); err != nil {
				return fmt.Errorf("run editor %q: %w", editor, err)
			}
			return nil
		}

		cfg, err := editUntilValid(configPath, openEditor, os.Stdin, os.Stdout)
		if err != nil {
			return err
		}

		fmt.Printf("Configuration saved and validated: %s\n", configPath)
		for _, line := range describeConfig(cfg) {
			fmt.Printf("  %s\n", line)
		}
		return nil
	},
}

// editUntilValid runs openEditor and validates the file at path, offering to
// reopen the editor while problems remain. A declined or unanswered prompt
// returns the first problem as error.
func editUntilValid(path string, openEditor func() error, in io.Reader, out io.Writer) (*config.Config, error) {
	reader := bufio.NewReader(in)
	for {
		if err := openEditor(); err != nil {
			return nil, err
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read edited config: %w", err)
		}
		problems := config.Problems(content)
		if len(problems) == 0 {
			return config.ValidateYAMLContent(content)
		}

		fmt.Fprintf(out, "%s has %d problem(s):\n", path, len(problems))
		for _, problem := range problems {
			fmt.Fprintf(out, "  - %s\n", problem)
		}
		fmt.Fprint(out, "Edit again? [Y/n]: ")

		answer, readErr := reader.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, fmt.Errorf("read answer: %w", readErr)
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer == "n" || answer == "no" || (answer == "" && readErr != nil) {
			return nil, fmt.Errorf("validate %s: %s", path, problems[0])
		}
	}
}

// describeConfig summarizes what a validated config will sync.
func describeConfig(cfg *config.Config) []string {
	lines := []string{
		fmt.Sprintf("Toggl workspace: %s", cfg.Toggl.Workspace),
		fmt.Sprintf("Jira: %s at %s", cfg.Jira.Username, cfg.Jira.URL),
		fmt.Sprintf("Window: %d day(s), day starts at %s", cfg.Window.Days, formatTurnpoint(cfg.Window.Turnpoint)),
	}
	if len(cfg.Projects) == 0 {
		return append(lines, "Projects: none, every entry will be reported as not set up")
	}

	projects := make([]string, 0, len(cfg.Projects))
	for _, project := range cfg.Projects {
		var notes []string
		if project.TogglProject != "" {
			notes = append(notes, "toggl project "+project.TogglProject)
		}
		if !project.Billable() {
			notes = append(notes, "not billable")
		}
		if project.JiraSkip {
			notes = append(notes, "jira skipped")
		}
		entry := strings.TrimSpace(project.Key)
		if len(notes) > 0 {
			entry += " (" + strings.Join(notes, ", ") + ")"
		}
		projects = append(projects, entry)
	}
	return append(lines, "Projects: "+strings.Join(projects, "; "))
}

func formatTurnpoint(turnpoint time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(turnpoint.Hours()), int(turnpoint.Minutes())%60)
}

// resolveConfigEditPath prefers the --configFile flag, then the file viper
// loaded, then $HOME/.tjsync.yaml.
func resolveConfigEditPath(configFileFlag, configFileUsed string) (string, error) {
	if strings.TrimSpace(configFileFlag) != "" {
		return configFileFlag, nil
	}
	if strings.TrimSpace(configFileUsed) != "" {
		return configFileUsed, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".tjsync.yaml"), nil
}

// ensureConfigFileWithTemplate writes the example config when path does not
// exist. The file holds credentials and is created owner-only.
func ensureConfigFileWithTemplate(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(config.ExampleYAML()), 0o600); err != nil {
		return false, fmt.Errorf("write example config: %w", err)
	}

	return true, nil
}

func resolveEditorValue(visual, editor string) string {
	if strings.TrimSpace(visual) != "" {
		return visual
	}
	if strings.TrimSpace(editor) != "" {
		return editor
	}
	return "vi"
}

func buildEditorCommand(editorValue, configPath string) (*exec.Cmd, error) {
	fields := strings.Fields(strings.TrimSpace(editorValue))
	if len(fields) == 0 {
		return nil, errors.New("editor command is empty")
	}

	args := append(fields[1:], configPath)
	return exec.Command(fields[0], args...), nil
}

func init() {
	configCmd.AddCommand(configEditCmd)
}
