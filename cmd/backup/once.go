package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newOnceCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single backup tick now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := opts.load()
			if err != nil {
				return err
			}
			defer application.Shutdown()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			report := application.RunOnce(ctx)
			out := cmd.OutOrStdout()
			for _, t := range report.Targets {
				status := "ok"
				if len(t.Errors) > 0 {
					status = "failed"
				}
				fmt.Fprintf(out, "%-20s %-7s archive=%s uploaded=%d remote_deleted=%d local_deleted=%d\n",
					t.Name, status, t.Archive, t.Mirror.Uploaded, t.Mirror.Deleted, t.LocalDeleted)
				for _, e := range t.Errors {
					fmt.Fprintf(out, "    %v\n", e)
				}
			}

			if n := report.Failed(); n > 0 {
				return fmt.Errorf("%d of %d target(s) failed", n, len(report.Targets))
			}
			return nil
		},
	}
}
