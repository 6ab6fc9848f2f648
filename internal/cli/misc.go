package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/celerix-dev/celerix-crm/internal/dashboard"
	"github.com/celerix-dev/celerix-crm/internal/engine"
	"github.com/celerix-dev/celerix-crm/internal/policy"
	"github.com/celerix-dev/celerix-crm/pkg/schema"
	"github.com/spf13/cobra"
)

func newDashboardCmd(o *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Summarize visible clients and activities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := o.identity()
			if err != nil {
				return err
			}
			s := dashboard.Summarize(
				policy.VisibleClients(id, o.app.CRM.ListClients()),
				policy.VisibleActivities(id, o.app.CRM.ListActivities()),
				time.Now(),
			)

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, s)
			}

			_, _ = fmt.Fprintf(out, "Clients:    %d\n", s.TotalClients)
			_, _ = fmt.Fprintf(out, "Activities: %d (%d completed)\n", s.TotalActivities, s.Completed)

			if len(s.Upcoming) > 0 {
				_, _ = fmt.Fprintln(out, "\nUpcoming:")
				for _, a := range s.Upcoming {
					_, _ = fmt.Fprintf(out, "  %s  %-8s %s\n", a.Date.Local().Format("2006-01-02 15:04"), a.Type, a.Title)
				}
			}

			if len(s.ClientsByTag) > 0 {
				_, _ = fmt.Fprintln(out, "\nClients by tag:")
				tags := make([]string, 0, len(s.ClientsByTag))
				for t := range s.ClientsByTag {
					tags = append(tags, t)
				}
				sort.Strings(tags)
				for _, t := range tags {
					_, _ = fmt.Fprintf(out, "  %-16s %d\n", t, s.ClientsByTag[t])
				}
			}

			if len(s.ActivitiesByType) > 0 {
				_, _ = fmt.Fprintln(out, "\nActivities by type:")
				for _, t := range schema.ActivityTypes {
					if n := s.ActivitiesByType[t]; n > 0 {
						_, _ = fmt.Fprintf(out, "  %-16s %d\n", t, n)
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newThemeCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [dark|light|toggle]",
		Short:     "Show or change the colour theme preference",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"dark", "light", "toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var (
				dark bool
				err  error
			)
			switch {
			case len(args) == 0:
				dark, err = o.app.Theme.IsDark(ctx)
			case args[0] == "toggle":
				dark, err = o.app.Theme.Toggle(ctx)
			default:
				dark = args[0] == "dark"
				err = o.app.Theme.SetDark(ctx, dark)
			}
			if err != nil {
				return err
			}

			name := "light"
			if dark {
				name = "dark"
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	}
}

func newMigrateCmd(o *rootOptions) *cobra.Command {
	var toDriver, toDir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy every stored key into another backend",
		Long: `Copy the whole data set from the configured backend into another one,
for example from the JSON file store into SQLite:

  celerix-crm migrate --to-driver sqlite --to-dir ./data-sqlite`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dst, err := engine.Open(engine.Options{Driver: toDriver, Dir: toDir, Logger: o.logger.Named("engine")})
			if err != nil {
				return fmt.Errorf("open destination: %w", err)
			}
			defer dst.Close()

			n, err := engine.Migrate(cmd.Context(), o.app.KV, dst)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Migrated %d keys to %s store in %s\n", n, toDriver, toDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&toDriver, "to-driver", "", "Destination driver (file, bolt, sqlite)")
	cmd.Flags().StringVar(&toDir, "to-dir", "", "Destination data directory")
	_ = cmd.MarkFlagRequired("to-driver")
	_ = cmd.MarkFlagRequired("to-dir")
	return cmd
}
