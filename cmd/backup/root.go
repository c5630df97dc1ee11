package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/semmidev/dailybackup/internal/app"
	"github.com/semmidev/dailybackup/internal/config"
)

const defaultConfigPath = "configs/config.yaml"

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Scheduled database backups with remote mirroring and retention",
		Long: `backup periodically dumps the configured databases into a local backup
directory, mirrors the archives to one remote endpoint per target (SFTP, S3 or
Google Drive) and removes archives that outlived their retention period.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "path to config file")

	cmd.AddCommand(
		newRunCmd(opts),
		newOnceCmd(opts),
		newTestConnectionCmd(opts),
		newValidateCmd(opts),
		newGDriveAuthCmd(opts),
	)
	return cmd
}

// load reads the configuration and wires the application.
func (o *rootOptions) load() (*app.App, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	application, err := app.New(o.configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize app: %w", err)
	}
	return application, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
