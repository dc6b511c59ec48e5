package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/api/calendar/v3"

	calclient "github.com/beekhof/crm-records/internal/calendar"
	"github.com/beekhof/crm-records/internal/records"
	"github.com/beekhof/crm-records/internal/sync"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		out      string
		from, to string
	)
	cmd := &cobra.Command{
		Use:   "export-ics",
		Short: "Write the selected user's events as an iCalendar file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.userID()
			if err != nil {
				return err
			}
			start, err := parseTime("from", from)
			if err != nil {
				return err
			}
			end, err := parseTime("to", to)
			if err != nil {
				return err
			}

			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			events, err := a.events(s).ListByUser(cmd.Context(), user, start, end)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}

			if err := calclient.WriteICS(w, exportEvents(events), time.Now()); err != nil {
				return err
			}
			a.logger.Info("exported events", "count", len(events), "user", user)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&from, "from", "", "Only events starting at or after this time (RFC 3339)")
	cmd.Flags().StringVar(&to, "to", "", "Only events ending at or before this time (RFC 3339)")
	return cmd
}

// exportEvents maps local events to their calendar form. Linked events keep
// the remote id as UID so re-imports match the synced copy.
func exportEvents(events []records.Event) []*calendar.Event {
	remote := make([]*calendar.Event, 0, len(events))
	for _, e := range events {
		ev := sync.RemoteEvent(e)
		ev.Id = e.GoogleCalendarEventID
		remote = append(remote, ev)
	}
	return remote
}
