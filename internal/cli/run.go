package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/flowrun/internal/config"
	"github.com/me/flowrun/internal/pipeline"
	"github.com/me/flowrun/internal/store"
	"github.com/me/flowrun/pkg/model"
)

func newRunCmd() *cobra.Command {
	var (
		flagWorkDir   string
		flagWorkers   int
		flagQueueSize int
	)

	cmd := &cobra.Command{
		Use:   "run <pipeline.yaml>",
		Short: "Execute a pipeline file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := pipeline.Load(args[0])
			if err != nil {
				return err
			}

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

			cfg := config.Default()
			cfg.WorkDir = flagWorkDir
			cfg.Workers = flagWorkers
			cfg.QueueSize = flagQueueSize

			runner := NewRunner(st, cfg, logger)
			run, err := runner.Execute(cmd.Context(), f)
			if run != nil {
				printRunResult(cmd, st, run)
			}
			if err != nil {
				return err
			}
			if run.State != model.RunStateCompleted {
				return fmt.Errorf("run %s finished %s", run.ID, run.State)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagWorkDir, "work-dir", "", "Root directory for task workspaces (default system temp)")
	cmd.Flags().IntVar(&flagWorkers, "workers", config.Default().Workers, "Concurrent local workers")
	cmd.Flags().IntVar(&flagQueueSize, "queue-size", config.Default().QueueSize, "Local executor queue capacity")
	return cmd
}

func printRunResult(cmd *cobra.Command, st store.Store, run *model.Run) {
	tasks, err := st.ListTasksByRun(cmd.Context(), run.ID)
	if err != nil {
		return
	}

	cmd.Printf("Run:   %s (%s)\n", run.ID, run.State)
	cmd.Printf("Tasks:\n")
	for _, task := range tasks {
		dur := ""
		if task.StartedAt != nil && task.CompletedAt != nil {
			dur = " in " + task.CompletedAt.Sub(*task.StartedAt).Round(time.Millisecond).String()
		}
		cmd.Printf("  - %-20s %s%s\n", task.Name, task.State, dur)
	}
}
