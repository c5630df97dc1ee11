package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/semmidev/dailybackup/internal/app"
	"github.com/semmidev/dailybackup/internal/infrastructure/logger"
)

func newGDriveAuthCmd(_ *rootOptions) *cobra.Command {
	var (
		addr         string
		clientSecret string
	)

	cmd := &cobra.Command{
		Use:   "gdrive-auth",
		Short: "Obtain a Google Drive refresh token for a gdrive remote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.New("info", "")
			if err != nil {
				return err
			}
			defer log.Close()

			srv, err := app.NewDriveAuthServer(log, clientSecret, uuid.NewString())
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			srv.Start(addr)
			<-ctx.Done()

			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:8080", "listen address of the OAuth helper")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "client_secret.json", "path to the OAuth client secret file")
	return cmd
}
