package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	calclient "github.com/beekhof/crm-records/internal/calendar"
	"github.com/beekhof/crm-records/internal/records"
	"github.com/beekhof/crm-records/internal/sync"
)

func newImportCmd(a *app) *cobra.Command {
	var clientID string
	cmd := &cobra.Command{
		Use:   "import-ics FILE",
		Short: "Add the events of an iCalendar file for the selected user",
		Long: `Adds one local event per VEVENT of FILE ("-" reads stdin). Events that
were exported by crmctl and still exist locally are skipped, so a file
produced by export-ics can be imported again without creating copies.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.userID()
			if err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", args[0], err)
				}
				defer f.Close()
				r = f
			}

			remote, err := calclient.ReadICS(r)
			if err != nil {
				return err
			}

			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()
			events := a.events(s)

			var imported, skipped int
			for _, ev := range remote {
				local, err := sync.LocalEvent(ev)
				if err != nil {
					return err
				}
				if local.ID != "" {
					_, err := events.Get(cmd.Context(), local.ID)
					if err == nil {
						skipped++
						continue
					}
					if !errors.Is(err, records.ErrNotFound) {
						return err
					}
				}

				local.ID = ""
				local.UserID = user
				local.ClientID = clientID
				if _, err := events.Add(cmd.Context(), local); err != nil {
					return err
				}
				imported++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d, skipped %d\n", imported, skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "Client the imported events belong to")
	return cmd
}
