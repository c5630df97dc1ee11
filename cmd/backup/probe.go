package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTestConnectionCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "test-connection <target>",
		Short: "Check that a target's remote endpoint accepts a connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := opts.load()
			if err != nil {
				return err
			}
			defer application.Shutdown()

			res, err := application.TestConnection(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n%s\n", res.Title, res.Message)
			if !res.Success {
				return fmt.Errorf("connection test failed for %s", args[0])
			}
			return nil
		},
	}
}
