package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/flowrun/internal/config"
	"github.com/me/flowrun/internal/server"
	"github.com/me/flowrun/internal/store"
)

func newServeCmd() *cobra.Command {
	cfg := config.DefaultServer()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the status API over HTTP",
		Args:  cobra.NoArgs,
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

			return server.New(cfg, st, logger).ListenAndServe()
		},
	}

	cmd.Flags().StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	return cmd
}
