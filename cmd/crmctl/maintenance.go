package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beekhof/crm-records/internal/maintenance"
)

func newMaintenanceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maintenance",
		Short: "Clean up and check the document store",
	}
	cmd.AddCommand(
		newCleanupOldCmd(a),
		newCleanupOrphansCmd(a),
		newCleanupDuplicatesCmd(a),
		newValidateCmd(a),
		newDeleteCollectionsCmd(a),
	)
	return cmd
}

// deleted reports the outcome of a bulk deletion. The count is printed even
// when the operation failed part way.
func deleted(cmd *cobra.Command, n int, err error) error {
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %d documents\n", n)
	return err
}

func newCleanupOldCmd(a *app) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "cleanup-old",
		Short: "Delete events, notifications and activity logs older than --days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := a.cleaner(s).CleanupOldRecords(cmd.Context(), days)
			return deleted(cmd, n, err)
		},
	}
	cmd.Flags().IntVar(&days, "days", maintenance.DefaultRetentionDays, "Age in days beyond which records are deleted")
	return cmd
}

func newCleanupOrphansCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup-orphans",
		Short: "Delete events that reference a missing client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := a.cleaner(s).CleanupOrphanedRecords(cmd.Context())
			return deleted(cmd, n, err)
		},
	}
}

func newCleanupDuplicatesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup-duplicates COLLECTION FIELD",
		Short: "Keep only the newest document per FIELD value in COLLECTION",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := a.cleaner(s).CleanupDuplicates(cmd.Context(), args[0], args[1])
			return deleted(cmd, n, err)
		},
	}
}

func newValidateCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Report documents with missing or malformed fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			issues, err := a.cleaner(s).ValidateDataIntegrity(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if issues == nil {
					issues = []maintenance.Issue{}
				}
				return printJSON(out, issues)
			}
			for _, issue := range issues {
				fmt.Fprintf(out, "%s/%s: %s\n", issue.Collection, issue.DocumentID, issue.Kind)
			}
			fmt.Fprintf(out, "%d issues found\n", len(issues))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}

func newDeleteCollectionsCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete-collections NAME...",
		Short: "Delete every document of the named collections",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete %v without --yes", args)
			}

			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := a.cleaner(s).DeleteCollections(cmd.Context(), args...)
			return deleted(cmd, n, err)
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the deletion")
	return cmd
}
