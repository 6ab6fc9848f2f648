package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/celerix-dev/celerix-crm/internal/csvio"
	"github.com/celerix-dev/celerix-crm/internal/dashboard"
	"github.com/celerix-dev/celerix-crm/internal/policy"
	"github.com/celerix-dev/celerix-crm/pkg/schema"
	"github.com/spf13/cobra"
)

var errForbidden = errors.New("your role does not allow this")

func newClientsCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "clients",
		Short:   "List and manage clients",
		Aliases: []string{"client"},
	}
	cmd.AddCommand(
		newClientsListCmd(o),
		newClientsAddCmd(o),
		newClientsUpdateCmd(o),
		newClientsDeleteCmd(o),
		newClientsExportCmd(o),
		newClientsImportCmd(o),
		newClientsTagsCmd(o),
	)
	return cmd
}

// visibleClients returns the clients the logged-in identity may see.
func (o *rootOptions) visibleClients() ([]schema.Client, schema.Identity, error) {
	id, err := o.identity()
	if err != nil {
		return nil, id, err
	}
	return policy.VisibleClients(id, o.app.CRM.ListClients()), id, nil
}

func newClientsListCmd(o *rootOptions) *cobra.Command {
	var (
		filter dashboard.ClientFilter
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List visible clients",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			clients, _, err := o.visibleClients()
			if err != nil {
				return err
			}
			clients = dashboard.FilterClients(clients, filter)

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, clients)
			}
			if len(clients) == 0 {
				_, _ = fmt.Fprintln(out, "No clients found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tNAME\tCOMPANY\tEMAIL\tTAGS")
			for _, c := range clients {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Company, c.Email, strings.Join(c.Tags, ", "))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&filter.Search, "search", "s", "", "Match name, company or email")
	cmd.Flags().StringVarP(&filter.Tag, "tag", "t", "", "Only clients carrying this tag")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newClientsAddCmd(o *rootOptions) *cobra.Command {
	var fields schema.ClientFields

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := o.identity()
			if err != nil {
				return err
			}
			if !policy.CanManageClients(id.Role) {
				return errForbidden
			}

			c, err := o.app.CRM.AddClient(cmd.Context(), fields)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Added client %s (%s)\n", c.Name, c.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&fields.Name, "name", "", "Name")
	f.StringVar(&fields.Company, "company", "", "Company")
	f.StringVar(&fields.Email, "email", "", "Email")
	f.StringVar(&fields.Phone, "phone", "", "Phone")
	f.StringVar(&fields.Address, "address", "", "Address")
	f.StringVar(&fields.Notes, "notes", "", "Notes")
	f.StringSliceVar(&fields.Tags, "tags", nil, "Comma-separated tags")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newClientsUpdateCmd(o *rootOptions) *cobra.Command {
	var (
		name, company, email, phone, address, notes string
		tags                                        []string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := o.identity()
			if err != nil {
				return err
			}
			c, ok := o.app.CRM.Client(args[0])
			if !ok || !policy.CanSeeClient(id, c) {
				return fmt.Errorf("client %s not found", args[0])
			}
			if !policy.CanModifyClient(id, c) {
				return errForbidden
			}

			var patch schema.ClientPatch
			f := cmd.Flags()
			for flag, dst := range map[string]**string{
				"name": &patch.Name, "company": &patch.Company, "email": &patch.Email,
				"phone": &patch.Phone, "address": &patch.Address, "notes": &patch.Notes,
			} {
				if f.Changed(flag) {
					v, _ := f.GetString(flag)
					*dst = &v
				}
			}
			if f.Changed("tags") {
				patch.Tags = &tags
			}

			if err := o.app.CRM.UpdateClient(cmd.Context(), c.ID, patch); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Updated client %s\n", c.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&name, "name", "", "Name")
	f.StringVar(&company, "company", "", "Company")
	f.StringVar(&email, "email", "", "Email")
	f.StringVar(&phone, "phone", "", "Phone")
	f.StringVar(&address, "address", "", "Address")
	f.StringVar(&notes, "notes", "", "Notes")
	f.StringSliceVar(&tags, "tags", nil, "Comma-separated tags (replaces the current set)")
	return cmd
}

func newClientsDeleteCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Short:   "Delete a client (admin only)",
		Aliases: []string{"rm"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := o.identity()
			if err != nil {
				return err
			}
			if !policy.CanDeleteClients(id.Role) {
				return errForbidden
			}
			if err := o.app.CRM.DeleteClient(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted client %s\n", args[0])
			return nil
		},
	}
}

func newClientsExportCmd(o *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write visible clients as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			clients, _, err := o.visibleClients()
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				return csvio.Export(cmd.OutOrStdout(), clients)
			}

			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := csvio.Export(f, clients); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported %d clients to %s\n", len(clients), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func newClientsImportCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Add every valid row of a CSV file as a new client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := o.identity()
			if err != nil {
				return err
			}
			if !policy.CanManageClients(id.Role) {
				return errForbidden
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := csvio.Import(f)
			if err != nil {
				return err
			}
			for i, fields := range res.Clients {
				if _, err := o.app.CRM.AddClient(cmd.Context(), fields); err != nil {
					return fmt.Errorf("imported %d of %d: %w", i, len(res.Clients), err)
				}
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "✓ Imported %d clients\n", len(res.Clients))
			for _, sk := range res.Skipped {
				_, _ = fmt.Fprintf(out, "  skipped line %d: missing %s\n", sk.Line, sk.Field)
			}
			return nil
		},
	}
}

func newClientsTagsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List the tags in use on visible clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			clients, _, err := o.visibleClients()
			if err != nil {
				return err
			}
			for _, t := range dashboard.Tags(clients) {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
