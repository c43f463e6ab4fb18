package main

import (
	"fmt"
	"log/slog"

	"github.com/MrEthical07/authflow/internal/logging"
	"github.com/spf13/cobra"
)

const serviceName = "authflow"

// NewRootCmd creates the root command and its subcommands.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authflow",
		Short: "Email and password account service",
		Long: `authflow serves signup, email verification, login, logout and
password reset over HTTP with a cookie session, and removes accounts
that were never verified.`,
		SilenceUsage: true,
	}
	registerFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSweepCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// NewVersionCmd prints build information.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("authflow %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

// setup loads and validates the configuration and builds the process logger.
func setup(cmd *cobra.Command) (*config, *slog.Logger, error) {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger := logging.Setup(serviceName, version, cfg.Log.Format, cfg.Log.Level, cmd.ErrOrStderr())
	slog.SetDefault(logger)
	return cfg, logger, nil
}
