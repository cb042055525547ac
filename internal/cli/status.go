package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/flowrun/internal/store"
	"github.com/me/flowrun/pkg/model"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [run_id]",
		Short: "Show the status of a run, or list recent runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, err := resolveDBPath()
			if err != nil {
				return err
			}
			st, err := store.NewSQLiteStore(dbPath, logger)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			if len(args) == 0 {
				return listRuns(cmd, st)
			}
			return showRun(cmd, st, args[0])
		},
	}
}

func listRuns(cmd *cobra.Command, st store.Store) error {
	runs, total, err := st.ListRuns(cmd.Context(), model.DefaultListOptions())
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	if total == 0 {
		cmd.Println("No runs recorded.")
		return nil
	}
	for _, run := range runs {
		cmd.Printf("%s  %-10s %-20s %s\n",
			run.ID, run.State, run.Name, humanize.Time(run.CreatedAt))
	}
	if total > len(runs) {
		cmd.Printf("(%d of %d runs)\n", len(runs), total)
	}
	return nil
}

func showRun(cmd *cobra.Command, st store.Store, id string) error {
	run, err := st.GetRun(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	if run == nil {
		return fmt.Errorf("run %s not found", id)
	}

	tasks, err := st.ListTasksByRun(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	cmd.Printf("Run:      %s\n", run.ID)
	cmd.Printf("  Name:     %s\n", run.Name)
	cmd.Printf("  State:    %s\n", run.State)
	cmd.Printf("  Created:  %s\n", humanize.Time(run.CreatedAt))
	if run.CompletedAt != nil {
		cmd.Printf("  Finished: %s\n", humanize.Time(*run.CompletedAt))
	}

	if len(tasks) > 0 {
		cmd.Println("  Tasks:")
		for _, task := range tasks {
			line := fmt.Sprintf("    - %-20s %s", task.Name, task.State)
			if task.ExitCode != nil {
				line += fmt.Sprintf(" (exit %d)", *task.ExitCode)
			}
			if task.Error != "" {
				line += ": " + task.Error
			}
			cmd.Println(line)
		}
	}
	return nil
}
