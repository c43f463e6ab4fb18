package main

import (
	"fmt"

	"github.com/MrEthical07/authflow/store"
	"github.com/spf13/cobra"
)

// NewMigrateCmd prepares the configured store: SQL migrations for postgres,
// indexes for mongo. The redis store needs neither.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply store schema migrations and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}

			b, err := openBackend(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer b.Close()

			switch {
			case b.pool != nil:
				if err := store.Migrate(cmd.Context(), b.pool); err != nil {
					return fmt.Errorf("migrate postgres: %w", err)
				}
			case b.mongo != nil:
				if err := b.mongo.EnsureIndexes(cmd.Context()); err != nil {
					return fmt.Errorf("create mongo indexes: %w", err)
				}
			default:
				logger.Info("nothing to migrate", "driver", cfg.Store.Driver)
				return nil
			}
			logger.Info("migrations applied", "driver", cfg.Store.Driver)
			return nil
		},
	}
}
