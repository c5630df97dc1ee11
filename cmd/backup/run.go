package main

import (
	"github.com/spf13/cobra"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the backup scheduler until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := opts.load()
			if err != nil {
				return err
			}
			defer application.Shutdown()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			return application.Run(ctx)
		},
	}
}
