package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/celerix-dev/celerix-crm/internal/dashboard"
	"github.com/celerix-dev/celerix-crm/internal/policy"
	"github.com/celerix-dev/celerix-crm/pkg/schema"
	"github.com/spf13/cobra"
)

// dateLayouts are accepted by --date, most specific first.
var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q (use YYYY-MM-DD, \"YYYY-MM-DD HH:MM\" or RFC 3339)", s)
}

func newActivitiesCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "activities",
		Short:   "List and manage activities",
		Aliases: []string{"activity"},
	}
	cmd.AddCommand(
		newActivitiesListCmd(o),
		newActivitiesAddCmd(o),
		newActivitiesCompleteCmd(o),
		newActivitiesDeleteCmd(o),
	)
	return cmd
}

func newActivitiesListCmd(o *rootOptions) *cobra.Command {
	var (
		clientID string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List visible activities, newest first",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := o.identity()
			if err != nil {
				return err
			}

			all := o.app.CRM.ListActivities()
			if clientID != "" {
				all = o.app.CRM.ActivitiesForClient(clientID)
			}
			activities := dashboard.NewestFirst(policy.VisibleActivities(id, all))

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, activities)
			}
			if len(activities) == 0 {
				_, _ = fmt.Fprintln(out, "No activities found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tDATE\tTYPE\tTITLE\tCLIENT\tDONE")
			for _, a := range activities {
				done := ""
				if a.Completed {
					done = "✓"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					a.ID, a.Date.Local().Format("2006-01-02 15:04"), a.Type, a.Title, o.app.CRM.ClientName(a), done)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "Only activities for this client id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newActivitiesAddCmd(o *rootOptions) *cobra.Command {
	var (
		fields       schema.ActivityFields
		kind, dateIn string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Schedule or log an activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := o.identity()
			if err != nil {
				return err
			}
			if !policy.CanManageActivities(id.Role) {
				return errForbidden
			}

			if fields.Type, err = schema.ParseActivityType(kind); err != nil {
				return err
			}
			if fields.Date, err = parseDate(dateIn); err != nil {
				return err
			}

			a, err := o.app.CRM.AddActivity(cmd.Context(), fields)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Added %s %q (%s)\n", a.Type, a.Title, a.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&fields.Title, "title", "", "Title")
	f.StringVar(&fields.Description, "description", "", "Description")
	f.StringVar(&kind, "type", string(schema.ActivityMeeting), "meeting, call, email or followup")
	f.StringVar(&dateIn, "date", "", "When it happens")
	f.StringVar(&fields.ClientID, "client", "", "Client id")
	f.BoolVar(&fields.Completed, "completed", false, "Already done")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

// modifiableActivity resolves id to an activity the logged-in identity may change.
func (o *rootOptions) modifiableActivity(id string) (schema.Activity, error) {
	who, err := o.identity()
	if err != nil {
		return schema.Activity{}, err
	}
	a, ok := o.app.CRM.Activity(id)
	if !ok || !policy.CanSeeActivity(who, a) {
		return schema.Activity{}, fmt.Errorf("activity %s not found", id)
	}
	if !policy.CanModifyActivity(who, a) {
		return schema.Activity{}, errForbidden
	}
	return a, nil
}

func newActivitiesCompleteCmd(o *rootOptions) *cobra.Command {
	var undo bool

	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Mark an activity as done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.modifiableActivity(args[0])
			if err != nil {
				return err
			}
			done := !undo
			if err := o.app.CRM.UpdateActivity(cmd.Context(), a.ID, schema.ActivityPatch{Completed: &done}); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ %q completed=%t\n", a.Title, done)
			return nil
		},
	}
	cmd.Flags().BoolVar(&undo, "undo", false, "Mark as not done")
	return cmd
}

func newActivitiesDeleteCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Short:   "Delete an activity",
		Aliases: []string{"rm"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.modifiableActivity(args[0])
			if err != nil {
				return err
			}
			if err := o.app.CRM.DeleteActivity(cmd.Context(), a.ID); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted activity %s\n", a.ID)
			return nil
		},
	}
}
