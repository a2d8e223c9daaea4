package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tjsync/config"
)

var (
	deleteDBPath string
)

var (
	deletePromptInput  io.Reader = os.Stdin
	deletePromptOutput io.Writer = os.Stdout
)

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the complete SQLite run database",
	Long: `Destructive database cleanup command.

This command deletes the SQLite file holding all stored runs and their cursors.
Runs that are not done can no longer be resumed afterwards.
Before deletion, an interactive security prompt requires typing exactly "Y".`,
	Example: `
  # Delete the configured database (requires interactive confirmation)
  tjsync delete

  # Delete a database at a custom path
  tjsync delete --db ./tjsync.db
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := resolveDeletePath(deleteDBPath, viper.GetString(config.KeyDatabase))

		confirmed, err := confirmDeletePrompt(deletePromptInput, deletePromptOutput, path)
		if err != nil {
			return err
		}
		if !confirmed {
			return errors.New("delete aborted: confirmation was not 'Y'")
		}

		if err := removeDatabaseFile(path); err != nil {
			return err
		}
		fmt.Printf("Deleted database file: %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)

	deleteCmd.Flags().StringVar(&deleteDBPath, "db", "", "Path to local SQLite database (default: database from config)")
}

func resolveDeletePath(flagValue, configured string) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	if strings.TrimSpace(configured) != "" {
		return configured
	}
	return "./tjsync.db"
}

func confirmDeletePrompt(input io.Reader, out io.Writer, path string) (bool, error) {
	if input == nil {
		return false, errors.New("delete confirmation input is not available")
	}

	if out == nil {
		out = io.Discard
	}

	if _, err := fmt.Fprintf(out, "Delete database file %q with all stored runs? Type Y to confirm: ", path); err != nil {
		return false, fmt.Errorf("write delete confirmation prompt: %w", err)
	}

	line, err := bufio.NewReader(input).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read delete confirmation: %w", err)
	}
	return strings.TrimSpace(line) == "Y", nil
}

func removeDatabaseFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("database file not found: %s", path)
		}
		return fmt.Errorf("stat database file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("database path is a directory: %s", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete database file: %w", err)
	}
	return nil
}
