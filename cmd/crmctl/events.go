package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/beekhof/crm-records/internal/records"
)

func newEventsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Manage calendar events",
	}
	cmd.AddCommand(
		newEventsListCmd(a),
		newEventsAddCmd(a),
		newEventsDeleteCmd(a),
	)
	return cmd
}

// parseTime accepts RFC 3339; an empty value is the zero time.
func parseTime(flag, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s value %q: expected RFC 3339", flag, value)
	}
	return t, nil
}

func newEventsListCmd(a *app) *cobra.Command {
	var (
		from, to string
		clientID string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List events of the selected user, or of one client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			var events []records.Event
			if clientID != "" {
				events, err = a.events(s).ListByClient(cmd.Context(), clientID)
			} else {
				user, uerr := a.userID()
				if uerr != nil {
					return uerr
				}
				events, err = a.events(s).ListByUser(cmd.Context(), user, start, end)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if events == nil {
					events = []records.Event{}
				}
				return printJSON(out, events)
			}
			for _, e := range events {
				fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", e.ID, e.Start.Format(time.RFC3339), e.Title, e.GoogleCalendarEventID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Only events starting at or after this time (RFC 3339)")
	cmd.Flags().StringVar(&to, "to", "", "Only events ending at or before this time (RFC 3339)")
	cmd.Flags().StringVar(&clientID, "client", "", "List the events of this client instead of a user")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}

func newEventsAddCmd(a *app) *cobra.Command {
	var (
		e          records.Event
		start, end string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an event for the selected user and print its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if e.UserID, err = a.userID(); err != nil {
				return err
			}
			if e.Start, err = parseTime("start", start); err != nil {
				return err
			}
			if e.End, err = parseTime("end", end); err != nil {
				return err
			}

			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			id, err := a.events(s).Add(cmd.Context(), e)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&e.Title, "title", "", "Event title")
	flags.StringVar(&start, "start", "", "Start time (RFC 3339)")
	flags.StringVar(&end, "end", "", "End time (RFC 3339)")
	flags.StringVar(&e.ClientID, "client", "", "Client the event belongs to")
	flags.StringVar(&e.Type, "type", "", "Event type, e.g. meeting or call")
	flags.StringVar(&e.Status, "status", "", "Event status")
	flags.StringVar(&e.Notes, "notes", "", "Free-form notes")
	flags.StringArrayVar(&e.Attendees, "attendee", nil, "Attendee email (repeatable)")
	return cmd
}

func newEventsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			return a.events(s).Delete(cmd.Context(), args[0])
		},
	}
}
