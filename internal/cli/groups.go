package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/praekelt/helpdesk/internal/app"
	"github.com/praekelt/helpdesk/pkg/models"
)

type groupRow struct {
	*models.Group
	Count int `json:"count"`
}

func newGroupsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Contact groups mirrored from the gateway",
	}

	var orgID int64
	sync := &cobra.Command{
		Use:   "sync <group-uuid>...",
		Short: "Make the given gateway groups the org's active groups",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(ctx context.Context, a *app.App) error {
				deps := a.Deps()
				org, err := deps.Store.GetOrg(orgID)
				if err != nil {
					return fmt.Errorf("org %d: %w", orgID, err)
				}
				if err := deps.Groups.UpdateGroups(ctx, org, args); err != nil {
					return err
				}
				groups, err := deps.Groups.GetAll(org.ID)
				if err != nil {
					return err
				}
				sizes, err := deps.Groups.FetchSizes(ctx, org, groups)
				if err != nil {
					return err
				}
				rows := make([]groupRow, len(groups))
				for i, g := range groups {
					rows[i] = groupRow{Group: g, Count: sizes[g.UUID]}
				}
				return e.render(rows, func(w io.Writer) {
					fmt.Fprintln(w, "UUID\tNAME\tCONTACTS")
					for _, r := range rows {
						fmt.Fprintf(w, "%s\t%s\t%s\n", r.UUID, r.Name, humanize.Comma(int64(r.Count)))
					}
				})
			})
		},
	}
	sync.Flags().Int64Var(&orgID, "org", 0, "org id")
	_ = sync.MarkFlagRequired("org")
	cmd.AddCommand(sync)
	return cmd
}
