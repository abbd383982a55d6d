package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

// newLoginCmd stores a session obtained from the app's auth flow. The sync
// core does not run an auth flow itself — identity is an external
// collaborator that hands us a user id and tokens.
func newLoginCmd() *cobra.Command {
	var (
		userID       string
		accessToken  string
		refreshToken string
		expiresIn    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a session token for background sync",
		RunE: func(_ *cobra.Command, _ []string) error {
			if userID == "" || accessToken == "" {
				return errors.New("login: --user-id and --access-token are required")
			}

			app, err := buildApp()
			if err != nil {
				return err
			}
			defer app.Close()

			tok := &oauth2.Token{
				AccessToken:  accessToken,
				RefreshToken: refreshToken,
			}

			if expiresIn > 0 {
				tok.Expiry = time.Now().Add(expiresIn)
			}

			if err := app.Session.Login(tok, userID); err != nil {
				return err
			}

			fmt.Printf("Logged in as %s\n", userID)

			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "owning user id")
	cmd.Flags().StringVar(&accessToken, "access-token", "", "bearer access token")
	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "refresh token (optional)")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "access token lifetime, e.g. 1h (optional)")

	return cmd
}

// newLogoutCmd clears the stored session.
func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		RunE: func(_ *cobra.Command, _ []string) error {
			app, err := buildApp()
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Session.Logout(); err != nil {
				return err
			}

			fmt.Println("Logged out")

			return nil
		},
	}
}
