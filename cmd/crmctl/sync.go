package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/beekhof/crm-records/internal/auth"
	calclient "github.com/beekhof/crm-records/internal/calendar"
	"github.com/beekhof/crm-records/internal/sync"
)

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push the selected user's upcoming events to Google Calendar",
		Long: `Pushes every event of the selected user that starts within the lookahead
window (sync_lookahead_months, default 1) to the configured Google Calendar.
Events without a remote copy are created and linked; linked events are
overwritten with the local data. Remote events are never deleted.

A rejected token is refreshed once; if the retried call is rejected again
the session is dropped and "crmctl auth signin" is required.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			user, err := a.userID()
			if err != nil {
				return err
			}

			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			authz, err := a.authorizer(s, nil)
			if err != nil {
				return err
			}
			if err := authz.Restore(ctx); err != nil {
				return err
			}
			if authz.State() != auth.Authorized {
				return errors.New("not signed in to Google Calendar: run 'crmctl auth signin' first")
			}

			opts := append([]option.ClientOption{option.WithHTTPClient(authz.HTTPClient(ctx))}, a.calendarOpts...)
			client, err := calclient.NewGoogleClient(ctx, calclient.GoogleSettings{
				SendUpdates: a.cfg.SendUpdates,
				APIKey:      a.cfg.GoogleAPIKey,
			}, opts...)
			if err != nil {
				return err
			}

			events := a.events(s)
			syncer := sync.NewSyncer(client, a.cfg.CalendarID,
				sync.WithLinker(events),
				sync.WithRefresher(authz),
				sync.WithLookaheadMonths(a.cfg.SyncLookaheadMonths),
				sync.WithLogger(a.logger),
			)

			from, to := syncer.Window()
			local, err := events.ListByUser(ctx, user, from, to)
			if err != nil {
				return err
			}

			result, err := syncer.Sync(ctx, local)
			if result != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "created %d, updated %d\n", result.Created, result.Updated)
			}
			if errors.Is(err, sync.ErrSessionExpired) {
				return fmt.Errorf("%w; run 'crmctl auth signin' to sign in again", err)
			}
			return err
		},
	}
}
