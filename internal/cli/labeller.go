package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/praekelt/helpdesk/internal/app"
	"github.com/praekelt/helpdesk/internal/labeller"
)

type labellerRun struct {
	Org    int64            `json:"org"`
	Result *labeller.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

func newLabellerCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labeller",
		Short: "Unsolicited message labelling task",
	}

	var orgID int64
	run := &cobra.Command{
		Use:   "run",
		Short: "Label and archive new inbox messages now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withApp(cmd, func(ctx context.Context, a *app.App) error {
				runs, runErr := runLabeller(ctx, a, orgID)
				if err := e.render(runs, func(w io.Writer) { labellerTable(w, runs) }); err != nil {
					return err
				}
				return runErr
			})
		},
	}
	run.Flags().Int64Var(&orgID, "org", 0, "only process this org")
	cmd.AddCommand(run)
	return cmd
}

func runLabeller(ctx context.Context, a *app.App, orgID int64) ([]labellerRun, error) {
	if orgID != 0 {
		org, err := a.Deps().Store.GetOrg(orgID)
		if err != nil {
			return nil, fmt.Errorf("org %d: %w", orgID, err)
		}
		res, err := a.Runner().Run(ctx, org)
		run := labellerRun{Org: orgID, Result: res}
		if err != nil {
			run.Error = err.Error()
		}
		return []labellerRun{run}, err
	}

	results, err := a.Runner().RunAll(ctx)
	runs := make([]labellerRun, 0, len(results))
	for id, res := range results {
		runs = append(runs, labellerRun{Org: id, Result: res})
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Org < runs[j].Org })
	return runs, err
}

func labellerTable(w io.Writer, runs []labellerRun) {
	fmt.Fprintln(w, "ORG\tMESSAGES\tLABELLED\tFINISHED")
	for _, r := range runs {
		if r.Result == nil {
			fmt.Fprintf(w, "%d\t-\t-\tfailed: %s\n", r.Org, r.Error)
			continue
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.Org,
			humanize.Comma(int64(r.Result.Counts.Messages)),
			humanize.Comma(int64(r.Result.Counts.Labelled)),
			humanize.Time(r.Result.Time))
	}
}
