package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voicefit/voicefit/internal/record"
)

// newLogCmd groups local record creation. Records land in the local store
// with synced=false and upload on the next cycle — the offline-first write
// path, usable without connectivity.
func newLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Record fitness data locally",
	}

	cmd.AddCommand(newLogWorkoutCmd())
	cmd.AddCommand(newLogMessageCmd())

	return cmd
}

func newLogWorkoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "workout NAME",
		Short: "Start a workout log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp()
			if err != nil {
				return err
			}
			defer app.Close()

			userID, err := app.Session.UserID()
			if err != nil {
				return errors.New("logging requires a session — run 'voicefit login' first")
			}

			clock := record.SystemClock{}
			w := record.NewWorkoutLog(clock, userID, args[0], clock.Now())

			if err := app.Store.Create(cmd.Context(), record.TableWorkoutLogs, w); err != nil {
				return err
			}

			fmt.Printf("Workout %q started (%s)\n", w.WorkoutName, w.ID)

			return nil
		},
	}
}

func newLogMessageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "message TEXT",
		Short: "Record a coaching conversation message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp()
			if err != nil {
				return err
			}
			defer app.Close()

			userID, err := app.Session.UserID()
			if err != nil {
				return errors.New("logging requires a session — run 'voicefit login' first")
			}

			m := record.NewMessage(record.SystemClock{}, userID, args[0], record.SenderUser, "text")

			if err := app.Store.Create(cmd.Context(), record.TableMessages, m); err != nil {
				return err
			}

			fmt.Printf("Message recorded (%s)\n", m.ID)

			return nil
		},
	}
}
