package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/beekhof/crm-records/internal/records"
)

// clientFields holds the flags shared by clients create and update.
type clientFields struct {
	name, industry, contact, email, phone string
	status, priority, address, notes      string
}

func (f *clientFields) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.name, "name", "", "Client name")
	flags.StringVar(&f.industry, "industry", "", "Industry")
	flags.StringVar(&f.contact, "contact", "", "Contact person")
	flags.StringVar(&f.email, "email", "", "Contact email")
	flags.StringVar(&f.phone, "phone", "", "Contact phone")
	flags.StringVar(&f.status, "status", "", "Status: active, inactive or pending")
	flags.StringVar(&f.priority, "priority", "", "Priority: high, medium or low")
	flags.StringVar(&f.address, "address", "", "Postal address")
	flags.StringVar(&f.notes, "notes", "", "Free-form notes")
}

// patch builds a ClientPatch from the flags the user actually set.
func (f *clientFields) patch(cmd *cobra.Command) records.ClientPatch {
	var p records.ClientPatch
	changed := cmd.Flags().Changed
	str := func(flag string, v string) *string {
		if !changed(flag) {
			return nil
		}
		return &v
	}
	p.Name = str("name", f.name)
	p.Industry = str("industry", f.industry)
	p.ContactName = str("contact", f.contact)
	p.Email = str("email", f.email)
	p.Phone = str("phone", f.phone)
	p.Address = str("address", f.address)
	p.Notes = str("notes", f.notes)
	if changed("status") {
		status := records.ClientStatus(f.status)
		p.Status = &status
	}
	if changed("priority") {
		priority := records.Priority(f.priority)
		p.Priority = &priority
	}
	return p
}

func newClientsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clients",
		Short: "Manage client records",
	}
	cmd.AddCommand(
		newClientsListCmd(a),
		newClientsGetCmd(a),
		newClientsCreateCmd(a),
		newClientsUpdateCmd(a),
		newClientsDeleteCmd(a),
		newClientsSearchCmd(a),
	)
	return cmd
}

func newClientsListCmd(a *app) *cobra.Command {
	var (
		status string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			clients, err := a.clients(s).List(cmd.Context(), records.ClientFilter{Status: records.ClientStatus(status)})
			if err != nil {
				return err
			}
			return printClients(cmd.OutOrStdout(), clients, asJSON)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only list clients with this status")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}

func newClientsGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one client as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			client, err := a.clients(s).Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), client)
		},
	}
}

func newClientsCreateCmd(a *app) *cobra.Command {
	var f clientFields
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a client and print its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			id, err := a.clients(s).Create(cmd.Context(), records.Client{
				Name:        f.name,
				Industry:    f.industry,
				ContactName: f.contact,
				Email:       f.email,
				Phone:       f.phone,
				Status:      records.ClientStatus(f.status),
				Priority:    records.Priority(f.priority),
				Address:     f.address,
				Notes:       f.notes,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func newClientsUpdateCmd(a *app) *cobra.Command {
	var f clientFields
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change the given fields of a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			return a.clients(s).Update(cmd.Context(), args[0], f.patch(cmd))
		},
	}
	f.bind(cmd)
	return cmd
}

func newClientsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			return a.clients(s).Delete(cmd.Context(), args[0])
		},
	}
}

func newClientsSearchCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "search TERM",
		Short: "Find clients whose name starts with TERM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			clients, err := a.clients(s).SearchByNamePrefix(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printClients(cmd.OutOrStdout(), clients, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}

func printClients(w io.Writer, clients []records.Client, asJSON bool) error {
	if asJSON {
		if clients == nil {
			clients = []records.Client{}
		}
		return printJSON(w, clients)
	}
	for _, c := range clients {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Email, c.Status)
	}
	return nil
}
