package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/praekelt/helpdesk/internal/app"
	"github.com/praekelt/helpdesk/pkg/cases"
	"github.com/praekelt/helpdesk/pkg/gateway"
	"github.com/praekelt/helpdesk/pkg/models"
	"github.com/praekelt/helpdesk/pkg/utils"
)

func newCasesCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cases",
		Short: "Inspect cases",
	}
	cmd.AddCommand(newCasesListCmd(e), newCasesTimelineCmd(e))
	return cmd
}

func parseCaseView(s string) (cases.View, error) {
	switch s {
	case "", "open":
		return cases.ViewOpen, nil
	case "closed":
		return cases.ViewClosed, nil
	case "all":
		return cases.ViewAll, nil
	}
	return 0, fmt.Errorf("unknown case view %q (want open, closed or all)", s)
}

func newCasesListCmd(e *env) *cobra.Command {
	var (
		orgID, userID, labelID int64
		view                   string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List an org's cases, most recently opened first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := parseCaseView(view)
			if err != nil {
				return err
			}
			return e.withApp(cmd, func(_ context.Context, a *app.App) error {
				deps := a.Deps()
				var user *models.User
				if userID != 0 {
					if user, err = deps.Store.GetUser(userID); err != nil {
						return fmt.Errorf("user %d: %w", userID, err)
					}
				}
				list, err := deps.Cases.List(orgID, cases.Filter{User: user, LabelID: labelID, View: v})
				if err != nil {
					return err
				}
				return e.render(list, func(w io.Writer) { casesTable(w, list) })
			})
		},
	}
	f := list.Flags()
	f.Int64Var(&orgID, "org", 0, "org id")
	f.Int64Var(&userID, "user", 0, "only cases visible to this user")
	f.Int64Var(&labelID, "label", 0, "only cases with this label")
	f.StringVar(&view, "view", "open", "open, closed or all")
	_ = list.MarkFlagRequired("org")
	return list
}

func casesTable(w io.Writer, list []*models.Case) {
	fmt.Fprintln(w, "ID\tCONTACT\tASSIGNEE\tOPENED\tCLOSED\tSUMMARY")
	for _, c := range list {
		closed := "-"
		if c.ClosedOn != nil {
			closed = humanize.Time(*c.ClosedOn)
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\n", c.ID, c.ContactUUID, c.AssigneeID,
			humanize.Time(c.OpenedOn), closed, utils.Truncate(c.Summary, 40))
	}
}

func newCasesTimelineCmd(e *env) *cobra.Command {
	var (
		orgID  int64
		after  int64
		before int64
	)
	tl := &cobra.Command{
		Use:   "timeline <case-id>",
		Short: "Print a case's merged timeline, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid case id %q", args[0])
			}
			return e.withApp(cmd, func(ctx context.Context, a *app.App) error {
				deps := a.Deps()
				c, err := deps.Cases.Get(orgID, id)
				if err != nil {
					return fmt.Errorf("case %d: %w", id, err)
				}
				var since, until time.Time
				if after > 0 {
					since = utils.MicrosecondsToDatetime(after)
				}
				if before > 0 {
					until = utils.MicrosecondsToDatetime(before)
				}
				page, err := deps.Timeline.Assemble(ctx, c, since, until)
				if err != nil {
					return err
				}
				return e.render(page, func(w io.Writer) {
					fmt.Fprintln(w, "TIME\tTYPE\tDETAIL")
					for _, entry := range page.Results {
						fmt.Fprintf(w, "%s\t%s\t%s\n", utils.FormatISO8601(entry.Time), entry.Type, describe(entry.Item))
					}
				})
			})
		},
	}
	tl.Flags().Int64Var(&orgID, "org", 0, "org id")
	tl.Flags().Int64Var(&after, "after", 0, "only entries after this time (microseconds since epoch)")
	tl.Flags().Int64Var(&before, "before", 0, "only entries up to this time (microseconds since epoch, default now)")
	_ = tl.MarkFlagRequired("org")
	return tl
}

var actionNames = map[models.ActionKind]string{
	models.ActionOpen:     "opened",
	models.ActionAddNote:  "note",
	models.ActionReassign: "reassigned",
	models.ActionClose:    "closed",
	models.ActionReopen:   "reopened",
	models.ActionLabel:    "labelled",
	models.ActionUnlabel:  "unlabelled",
}

// describe summarises a timeline item on one line.
func describe(item any) string {
	switch v := item.(type) {
	case gateway.Message:
		dir := "in"
		if v.Direction == gateway.DirectionOutgoing {
			dir = "out"
		}
		return dir + ": " + utils.Truncate(v.Text, 60)
	case *models.CaseAction:
		out := actionNames[v.Action]
		switch {
		case v.Note != "":
			out += ": " + utils.Truncate(v.Note, 60)
		case v.AssigneeID != 0:
			out += fmt.Sprintf(" to partner %d", v.AssigneeID)
		case v.LabelID != 0:
			out += fmt.Sprintf(" label %d", v.LabelID)
		}
		return fmt.Sprintf("%s by user %d", out, v.CreatedBy)
	}
	return fmt.Sprint(item)
}
