package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/beekhof/crm-records/internal/config"
)

// app carries the state shared by every subcommand: flags bound on the root
// command and the configuration resolved before a subcommand runs.
type app struct {
	verbose    bool
	configFile string
	flags      config.Config
	lookup     config.LookupFunc

	// calendarOpts are appended when the Google Calendar service is built.
	calendarOpts []option.ClientOption

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	return (&app{}).command()
}

func (a *app) command() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "crmctl",
		Short: "Manage CRM client records, events and their Google Calendar mirror",
		Long: `crmctl reads and writes the CRM document store: client records, calendar
events and the OAuth session used to push events to Google Calendar.

CONFIGURATION PRECEDENCE (highest to lowest):
    1. Command-line flags
    2. Environment variables (GOOGLE_CLIENT_ID, STORE_DRIVER, USER_ID, ...)
    3. Config file (--config, JSON or YAML)
    4. Defaults`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if a.verbose {
				level = slog.LevelDebug
			}

			opts := &slog.HandlerOptions{
				Level: level,
			}
			a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), opts))
			slog.SetDefault(a.logger)

			cfg, err := config.LoadConfig(a.configFile, a.lookup, a.flags)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	pf.StringVar(&a.configFile, "config", os.Getenv("CRM_CONFIG"), "Path to JSON or YAML config file")
	pf.StringVar(&a.flags.StoreDriver, "store-driver", "", "Document store engine: memory or sqlite")
	pf.StringVar(&a.flags.StorePath, "store-path", "", "Data directory (memory) or database file (sqlite)")
	pf.StringVar(&a.flags.TokenPath, "token-path", "", "File holding the OAuth token (default: settings collection)")
	pf.StringVar(&a.flags.GoogleCredentialsPath, "google-credentials-path", "", "Path to Google OAuth credentials JSON file")
	pf.StringVar(&a.flags.GoogleClientID, "google-client-id", "", "Google OAuth client id")
	pf.StringVar(&a.flags.CalendarID, "calendar-id", "", "Google Calendar to sync with")
	pf.StringVar(&a.flags.UserID, "user", "", "User whose events are listed and synced")

	rootCmd.AddCommand(
		newClientsCmd(a),
		newEventsCmd(a),
		newAuthCmd(a),
		newSyncCmd(a),
		newMaintenanceCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newServeCmd(a),
	)
	return rootCmd
}
