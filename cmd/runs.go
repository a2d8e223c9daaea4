package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tjsync/config"
	"tjsync/executor"
	"tjsync/output"
	"tjsync/storage"
)

var (
	runsDBPath     string
	runsFormat     string
	runsResumeFrom int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List, resume and delete stored sync runs",
	Long: `Every sync stores its actions as a run in the local SQLite database together
with a cursor pointing at the next action to apply.

Status values:
- pending: no action applied yet
- partial: some actions applied
- failed: the last attempt stopped with an error
- done: every action applied

When an action was applied but its cursor could not be saved, resume refuses
to continue until --from names the next action, so nothing is applied twice.`,
	Example: `
  # List runs, newest first
  tjsync runs list

  # Continue a stopped run
  tjsync runs resume 6f1c2a9e-...

  # Continue with action 5 after action 4 was applied but not recorded
  tjsync runs resume 6f1c2a9e-... --from 5

  # Forget a run
  tjsync runs delete 6f1c2a9e-...
`,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(runsFormat)
		if err != nil {
			return err
		}

		store, _, err := openStoreFromConfig(runsDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.ListRuns()
		if err != nil {
			return err
		}

		format = output.DetectFormat(string(format))
		if format != output.FormatTable {
			return output.Encode(os.Stdout, format, runs)
		}
		if len(runs) == 0 {
			fmt.Println("No runs stored.")
			return nil
		}
		return output.WriteTable(os.Stdout, runHeaders, runRows(runs))
	},
}

var runsResumeCmd = &cobra.Command{
	Use:   "resume <id>",
	Short: "Apply the remaining actions of a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadAndValidate()
		if err != nil {
			return err
		}
		if runsDBPath != "" {
			cfg.Database = runsDBPath
		}

		a, err := newApp(cfg, true)
		if err != nil {
			return err
		}
		defer a.Close()

		run, err := a.store.GetRun(args[0])
		if err != nil {
			return err
		}

		next, err := resumeStart(run, runsResumeFrom)
		if err != nil {
			return err
		}
		if next != run.Next {
			if err := a.store.SaveCursor(run.ID, next); err != nil {
				return err
			}
			fmt.Printf("Marked action(s) %d-%d of run %s as applied.\n", run.Next+1, next, run.ID)
			run.Next = next
			run.LastError = ""
		}

		cursor := &executor.Cursor{RunID: run.ID, Actions: run.Actions, Next: run.Next}
		if cursor.Done() {
			fmt.Printf("Run %s is already done (%d/%d).\n", run.ID, run.Next, run.Total())
			return nil
		}
		if run.LastError != "" {
			fmt.Printf("Last attempt failed: %s\n", run.LastError)
		}
		fmt.Printf("Resuming run %s at action %d of %d.\n", run.ID, run.Next+1, run.Total())
		if err := output.WriteTable(os.Stdout, actionHeaders, actionRows(run.Actions[run.Next:], run.Next)); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runCursor(ctx, a.executor, cursor)
	},
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored run and its actions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStoreFromConfig(runsDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		deleted, err := store.DeleteRun(args[0])
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("%w: %s", storage.ErrRunNotFound, args[0])
		}
		fmt.Printf("Deleted run: %s\n", args[0])
		return nil
	},
}

// resumeStart returns the cursor to resume run at. from is the 1-based number
// of the next action to apply, 0 keeps the stored cursor. Moving the cursor
// back would apply actions twice and is rejected.
func resumeStart(run storage.Run, from int) (int, error) {
	if from == 0 {
		if executor.IsCursorNotSaved(run.LastError) {
			return 0, fmt.Errorf("run %s stopped after an action was applied without saving the cursor (%s); pass --from with the next action to apply", run.ID, run.LastError)
		}
		return run.Next, nil
	}

	next := from - 1
	if next < run.Next {
		return 0, fmt.Errorf("--from %d: actions up to %d of run %s are already applied", from, run.Next, run.ID)
	}
	if next > run.Total() {
		return 0, fmt.Errorf("--from %d: run %s has only %d action(s)", from, run.ID, run.Total())
	}
	return next, nil
}

var runHeaders = []string{"ID", "Status", "Progress", "Window", "Created", "Last error"}

func runRows(runs []storage.RunSummary) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ID,
			string(run.Status()),
			fmt.Sprintf("%d/%d", run.Next, run.Total),
			formatWindow(run.Window),
			run.CreatedAt.Local().Format("2006-01-02 15:04"),
			run.LastError,
		})
	}
	return rows
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd, runsResumeCmd, runsDeleteCmd)

	runsCmd.PersistentFlags().StringVar(&runsDBPath, "db", "", "Path to local SQLite database (default: database from config)")
	runsResumeCmd.Flags().IntVar(&runsResumeFrom, "from", 0, "Number of the next action to apply, skipping actions applied without a saved cursor")
	runsListCmd.Flags().StringVar(&runsFormat, "format", "", "Print format: table|json|yaml (default: table on a terminal, json otherwise)")
}
