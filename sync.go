package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// newSyncCmd runs one full sync cycle and exits.
func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one full sync cycle now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := buildApp()
			if err != nil {
				return err
			}
			defer app.Close()

			userID, err := app.Session.UserID()
			if err != nil {
				return fmt.Errorf("sync requires a session — run 'voicefit login' first: %w", err)
			}

			ctx := shutdownContext(cmd.Context(), app.Logger)

			if err := app.Orch.FullSync(ctx, userID); err != nil {
				return err
			}

			status, err := app.Orch.Status(context.Background())
			if err != nil {
				return err
			}

			pending := 0
			for _, n := range status.Unsynced {
				pending += n
			}

			fmt.Printf("Sync complete, %d row(s) still pending\n", pending)

			return nil
		},
	}
}

// newDaemonCmd runs background sync until interrupted.
func newDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run background sync until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := buildApp()
			if err != nil {
				return err
			}
			defer app.Close()

			userID, err := app.Session.UserID()
			if err != nil {
				return fmt.Errorf("daemon requires a session — run 'voicefit login' first: %w", err)
			}

			ctx := shutdownContext(cmd.Context(), app.Logger)

			app.Orch.Start(userID)
			<-ctx.Done()
			app.Orch.Stop()

			return nil
		},
	}
}
