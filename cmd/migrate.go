package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/scribevault/internal/config"
	"github.com/example/scribevault/internal/store"
)

// migrateCmd runs the metadata store's schema migration and exits,
// without starting the HTTP server. Useful for deploy pipelines that
// migrate and serve as separate steps.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run metadata store schema migration",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadRootConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bindConfigFlags(cmd); err != nil {
			return err
		}
		cfg, err := config.Load(v)
		if err != nil {
			return err
		}

		gdb, err := store.Open(cfg.DB.Type, cfg.DB.DSN)
		if err != nil {
			return fmt.Errorf("failed to open metadata store: %w", err)
		}
		st := store.New(gdb, cfg.MasterKeyBytes())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return st.Migrate(ctx)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
