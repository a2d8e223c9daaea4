package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"tjsync/config"
	"tjsync/executor"
	"tjsync/output"
	"tjsync/reconcile"
)

var (
	syncDelta  int
	syncDryRun bool
	syncYes    bool
)

var (
	syncPromptInput  io.Reader = os.Stdin
	syncPromptOutput io.Writer = os.Stdout
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Apply the actions that bring Toggl and Jira in sync",
	Long: `Inspect the rolling window, store the resulting actions as a run in the local
SQLite database and apply them one by one.

The run stops at the first failing action. Applied actions are never repeated:
"tjsync runs resume <id>" continues with the failed action.
Without --yes the planned actions are printed and must be confirmed with y.`,
	Example: `
  # Preview the actions without writing anything
  tjsync sync --dry-run

  # Sync the current window after confirmation
  tjsync sync

  # Sync last week's window without prompting
  tjsync sync --delta -7 --yes
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadAndValidate()
		if err != nil {
			return err
		}

		a, err := newApp(cfg, !syncDryRun)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		window := a.window(syncDelta)
		report, err := a.inspector.Inspect(ctx, window)
		if err != nil {
			return err
		}

		actions := report.Actions()
		fmt.Printf("Window: %s\n", formatWindow(window))
		if len(actions) == 0 {
			fmt.Println("Nothing to sync.")
			return nil
		}
		if err := output.WriteTable(os.Stdout, actionHeaders, actionRows(actions, 0)); err != nil {
			return err
		}

		if syncDryRun {
			fmt.Printf("Dry-run: %d action(s) would be applied.\n", len(actions))
			return nil
		}

		if !syncYes {
			confirmed, err := confirmSyncPrompt(syncPromptInput, syncPromptOutput, len(actions))
			if err != nil {
				return err
			}
			if !confirmed {
				return errors.New("sync aborted: confirmation was not 'y'")
			}
		}

		run, err := a.store.CreateRun(window, actions)
		if err != nil {
			return err
		}
		fmt.Printf("Run %s created with %d action(s).\n", run.ID, run.Total())

		cursor := &executor.Cursor{RunID: run.ID, Actions: run.Actions, Next: run.Next}
		return runCursor(ctx, a.executor, cursor)
	},
}

// runCursor executes the remaining actions of cursor and prints one line per
// applied action.
func runCursor(ctx context.Context, runner *executor.Executor, cursor *executor.Cursor) error {
	err := runner.Run(ctx, cursor, func(progress executor.Progress) {
		if progress.Current >= cursor.Total() {
			return
		}
		action := cursor.Actions[progress.Current]
		fmt.Printf("[%d/%d] %s.%s %s ok\n", progress.Next, progress.Total, action.Target, action.Kind, action.Issue)
	})
	var unsaved *executor.CursorNotSavedError
	switch {
	case errors.As(err, &unsaved):
		fmt.Printf("Run %s: action %d of %d was applied but the cursor was not saved: %v\n", cursor.RunID, unsaved.Index+1, cursor.Total(), unsaved.Err)
		fmt.Printf("Check the database, then continue after it with: tjsync runs resume %s --from %d\n", cursor.RunID, unsaved.Index+2)
		return err
	case err != nil:
		fmt.Printf("Run %s stopped at action %d of %d: %v\n", cursor.RunID, cursor.Next+1, cursor.Total(), err)
		fmt.Printf("Resume with: tjsync runs resume %s\n", cursor.RunID)
		return err
	}

	fmt.Printf("Run %s finished. Applied: %d/%d\n", cursor.RunID, cursor.Next, cursor.Total())
	return nil
}

var actionHeaders = []string{"#", "Target", "Kind", "Issue", "ID", "Values"}

// actionRows renders actions numbered from offset+1.
func actionRows(actions []reconcile.Action, offset int) [][]string {
	rows := make([][]string, 0, len(actions))
	for i, action := range actions {
		rows = append(rows, []string{
			fmt.Sprintf("%d", offset+i+1),
			string(action.Target),
			string(action.Kind),
			action.Issue,
			action.ID,
			formatValues(action.Values),
		})
	}
	return rows
}

func formatValues(values map[string]any) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", key, values[key]))
	}
	return strings.Join(parts, " ")
}

func confirmSyncPrompt(input io.Reader, out io.Writer, count int) (bool, error) {
	if input == nil {
		return false, errors.New("sync confirmation input is not available")
	}
	if out == nil {
		out = io.Discard
	}

	if _, err := fmt.Fprintf(out, "Apply %d action(s) to Toggl and Jira? [y/N]: ", count); err != nil {
		return false, fmt.Errorf("write sync confirmation prompt: %w", err)
	}

	line, err := bufio.NewReader(input).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read sync confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().IntVar(&syncDelta, "delta", 0, "Shift the window by this many days (negative = past)")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Print the planned actions without applying them")
	syncCmd.Flags().BoolVarP(&syncYes, "yes", "y", false, "Apply without confirmation prompt")
}
