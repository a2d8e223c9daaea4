package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"tjsync/config"
	"tjsync/toggl"
)

var configProjectAddTimeout time.Duration

var configProjectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage per-project settings in config.",
	Long: `Manage the project list stored under config key projects.

Each entry maps a Jira project key to the Toggl project and billable flag that
time entries of its issues should carry, and can exclude the key from Jira writes.`,
}

var configProjectAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Interactively add one project from Toggl lookups.",
	Long: `Fetch the projects of the configured Toggl workspace, let you choose one
interactively, then store a new projects entry for a Jira project key in config.`,
	Example: `
  # Add one project interactively
  tjsync config project add

  # Use a longer timeout for slow connections
  tjsync config project add --timeout 2m
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := resolveConfigEditPath(cfgFile, viper.ConfigFileUsed())
		if err != nil {
			return err
		}
		if _, err := ensureConfigFileWithTemplate(configPath); err != nil {
			return err
		}

		viper.SetConfigFile(configPath)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %q: %w", configPath, err)
		}
		cfg, err := config.LoadAndValidate()
		if err != nil {
			return err
		}

		client, err := toggl.NewClient(toggl.ClientConfig{
			BaseURL:   cfg.Toggl.URL,
			APIToken:  cfg.Toggl.APIToken,
			UserAgent: userAgent,
		})
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), configProjectAddTimeout)
		defer cancel()

		projects, err := fetchWorkspaceProjects(ctx, client, cfg.Toggl.Workspace)
		if err != nil {
			return err
		}
		sort.Slice(projects, func(i, j int) bool {
			left := strings.ToLower(strings.TrimSpace(projects[i].Name))
			right := strings.ToLower(strings.TrimSpace(projects[j].Name))
			if left == right {
				return projects[i].ID < projects[j].ID
			}
			return left < right
		})

		reader := bufio.NewReader(os.Stdin)
		key, err := promptRequiredString(reader, os.Stdout, "Jira project key (example: ABC)")
		if err != nil {
			return err
		}

		options := append([]string{"(no project)"}, projectOptionLines(projects)...)
		selectedIdx, err := promptSelectIndex(reader, os.Stdout, "Select Toggl project:", options)
		if err != nil {
			return err
		}

		newProject := config.ProjectConfig{Key: key}
		billableDefault := true
		if selectedIdx > 0 {
			selected := projects[selectedIdx-1]
			newProject.TogglProject = selected.Name
			billableDefault = selected.Billable
		}

		billable, err := promptYesNo(reader, os.Stdout, "Mark time entries billable?", billableDefault)
		if err != nil {
			return err
		}
		newProject.TogglBillable = &billable

		skip, err := promptYesNo(reader, os.Stdout, "Never write Jira worklogs for this key?", false)
		if err != nil {
			return err
		}
		newProject.JiraSkip = skip

		current, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("read config file: %w", err)
		}

		updated, err := appendProjectToConfigYAML(current, newProject)
		if err != nil {
			return err
		}

		if err := os.WriteFile(configPath, updated, 0o600); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}

		fmt.Println("Project added successfully.")
		fmt.Printf("Config:   %s\n", configPath)
		fmt.Printf("Key:      %s\n", newProject.Key)
		fmt.Printf("Toggl:    %s\n", valueOrNone(newProject.TogglProject))
		fmt.Printf("Billable: %t\n", billable)
		fmt.Printf("Skip:     %t\n", skip)
		return nil
	},
}

func fetchWorkspaceProjects(ctx context.Context, client toggl.Client, workspaceName string) ([]toggl.Project, error) {
	workspaces, err := client.ListWorkspaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("list toggl workspaces: %w", err)
	}
	for _, workspace := range workspaces {
		if workspace.Name != workspaceName {
			continue
		}
		projects, err := client.ListProjects(ctx, workspace.ID)
		if err != nil {
			return nil, fmt.Errorf("list toggl projects: %w", err)
		}
		return projects, nil
	}
	return nil, fmt.Errorf("%w: %q", toggl.ErrWorkspaceNotFound, workspaceName)
}

func projectOptionLines(projects []toggl.Project) []string {
	lines := make([]string, 0, len(projects))
	for _, project := range projects {
		line := fmt.Sprintf("%s (id=%d)", project.Name, project.ID)
		if project.Billable {
			line += " [billable]"
		}
		lines = append(lines, line)
	}
	return lines
}

func valueOrNone(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(none)"
	}
	return value
}

func promptSelectIndex(reader *bufio.Reader, out io.Writer, title string, options []string) (int, error) {
	if len(options) == 0 {
		return -1, fmt.Errorf("no options available for %q", title)
	}

	for {
		fmt.Fprintln(out, title)
		for i, option := range options {
			fmt.Fprintf(out, "  %d) %s\n", i+1, option)
		}
		fmt.Fprintf(out, "Choose [1-%d]: ", len(options))

		input, err := reader.ReadString('\n')
		if err != nil {
			return -1, fmt.Errorf("read selection input: %w", err)
		}
		choice, err := strconv.Atoi(strings.TrimSpace(input))
		if err != nil || choice < 1 || choice > len(options) {
			fmt.Fprintln(out, "Invalid selection. Please enter a valid number.")
			continue
		}
		return choice - 1, nil
	}
}

func promptRequiredString(reader *bufio.Reader, out io.Writer, label string) (string, error) {
	for {
		fmt.Fprintf(out, "%s: ", strings.TrimSpace(label))
		input, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("read %s: %w", strings.TrimSpace(strings.ToLower(label)), err)
		}
		value := strings.TrimSpace(input)
		if value == "" {
			fmt.Fprintln(out, "Value must not be empty.")
			continue
		}
		return value, nil
	}
}

// promptYesNo accepts y/yes/n/no in any case. An empty answer picks def.
func promptYesNo(reader *bufio.Reader, out io.Writer, label string, def bool) (bool, error) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	for {
		fmt.Fprintf(out, "%s [%s]: ", strings.TrimSpace(label), hint)
		input, err := reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && input != "") {
			return false, fmt.Errorf("read answer: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(input)) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(out, "Please answer y or n.")
	}
}

// appendProjectToConfigYAML adds project to the projects list of a config
// document. Other keys and their values are kept.
func appendProjectToConfigYAML(content []byte, project config.ProjectConfig) ([]byte, error) {
	project.Key = strings.TrimSpace(project.Key)
	if project.Key == "" {
		return nil, errors.New("project key is required")
	}

	doc := map[string]any{}
	if strings.TrimSpace(string(content)) != "" {
		if err := yaml.Unmarshal(content, &doc); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	projectList, err := ensureSliceAny(doc, "projects")
	if err != nil {
		return nil, err
	}

	entry := map[string]any{"key": project.Key}
	if project.TogglProject != "" {
		entry["toggl_project"] = project.TogglProject
	}
	if project.TogglBillable != nil {
		entry["toggl_billable"] = *project.TogglBillable
	}
	if project.JiraSkip {
		entry["jira_skip"] = true
	}
	doc["projects"] = append(projectList, entry)

	updated, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal updated config yaml: %w", err)
	}

	var check struct {
		Projects []config.ProjectConfig `yaml:"projects"`
	}
	if err := yaml.Unmarshal(updated, &check); err != nil {
		return nil, fmt.Errorf("parse updated config yaml: %w", err)
	}
	if err := config.ValidateProjects(check.Projects); err != nil {
		return nil, fmt.Errorf("updated config is invalid: %w", err)
	}
	return updated, nil
}

func ensureSliceAny(doc map[string]any, key string) ([]any, error) {
	raw, exists := doc[key]
	if !exists || raw == nil {
		result := []any{}
		doc[key] = result
		return result, nil
	}
	result, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("config key %q must be a list", key)
	}
	return result, nil
}

func init() {
	configCmd.AddCommand(configProjectCmd)
	configProjectCmd.AddCommand(configProjectAddCmd)

	configProjectAddCmd.Flags().DurationVar(&configProjectAddTimeout, "timeout", 60*time.Second, "Timeout for Toggl lookup API calls")
}
