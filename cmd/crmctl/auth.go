package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beekhof/crm-records/internal/auth"
)

func newAuthCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the Google Calendar session",
	}
	cmd.AddCommand(
		newAuthSignInCmd(a),
		newAuthSignOutCmd(a),
		newAuthStatusCmd(a),
	)
	return cmd
}

func newAuthSignInCmd(a *app) *cobra.Command {
	var noBrowser bool
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Authorize access to Google Calendar",
		Long: `Runs the OAuth consent flow. By default a local server on 127.0.0.1:8080
receives the browser redirect; with --no-browser the authorization code is
pasted on stdin instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			consent := auth.LocalServerConsent(cmd.OutOrStdout())
			if noBrowser {
				consent = auth.ReaderConsent(cmd.InOrStdin(), cmd.OutOrStdout())
			}
			authz, err := a.authorizer(s, consent)
			if err != nil {
				return err
			}
			if err := authz.SignIn(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed in.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Read the authorization code from stdin")
	return cmd
}

func newAuthSignOutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Forget the stored Google Calendar token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			authz, err := a.authorizer(s, nil)
			if err != nil {
				return err
			}
			if err := authz.SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newAuthStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a Google Calendar token is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			authz, err := a.authorizer(s, nil)
			if err != nil {
				return err
			}
			if err := authz.Restore(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), authz.State())
			if token, err := authz.Token(); err == nil && !token.Expiry.IsZero() {
				fmt.Fprintf(cmd.OutOrStdout(), "token expires %s\n", token.Expiry.Local().Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}
