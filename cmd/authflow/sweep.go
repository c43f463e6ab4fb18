package main

import (
	"github.com/spf13/cobra"
)

// NewSweepCmd runs one sweep of expired unverified accounts, for cron-style
// deployments that do not run the in-process sweeper.
func NewSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete unverified accounts whose verification code expired",
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

			engine, err := buildEngine(cfg, b, logger)
			if err != nil {
				return err
			}
			defer engine.Close()

			res, err := engine.SweepUnverified(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("deleted %d unverified accounts in %s\n", res.Deleted, res.Duration)
			return nil
		},
	}
}
