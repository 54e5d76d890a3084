// Package cli implements helpdeskctl, the operator tool that runs the
// labelling task, syncs groups and inspects cases against a stopped server's
// database.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/praekelt/helpdesk/internal/app"
	"github.com/praekelt/helpdesk/pkg/config"
	"github.com/praekelt/helpdesk/pkg/logger"
)

// env carries the state shared by every subcommand.
type env struct {
	flags   *config.Flags
	output  string
	logLvl  string
	version string
	out     io.Writer

	// open is replaced by tests to supply a prebuilt app.
	open func(ctx context.Context) (*app.App, error)
}

// NewRootCmd builds the helpdeskctl command tree.
func NewRootCmd(version string) *cobra.Command {
	e := &env{version: version}
	e.open = e.openApp
	return newRoot(e)
}

func newRoot(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:   "helpdeskctl",
		Short: "Operator tool for the helpdesk service",
		Long: `helpdeskctl runs maintenance tasks directly against a helpdesk database.
The server must be stopped: the database is opened exclusively.`,
		Version:       e.version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			e.out = cmd.OutOrStdout()
			e.flags.Resolve(cmd.Flags())
			logger.InitWithWriter(e.logLvl, cmd.ErrOrStderr())
			return nil
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	e.flags = config.BindFlags(pf)
	pf.StringVarP(&e.output, "output", "o", "", "output format: table, json or yaml (default table on a terminal, json otherwise)")
	pf.StringVar(&e.logLvl, "log-level", "warn", "log level")

	root.AddCommand(newLabellerCmd(e), newGroupsCmd(e), newCasesCmd(e))
	return root
}

// openApp loads the effective config the same way the server does and builds
// the app without starting it.
func (e *env) openApp(ctx context.Context) (*app.App, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	fileCfg, fileExists, err := config.ParseConfigFile(*e.flags)
	if err != nil {
		return nil, fmt.Errorf("load config file: %w", err)
	}
	envCfg, envSet, err := config.ParseConfigEnvs()
	if err != nil {
		return nil, fmt.Errorf("load config env: %w", err)
	}
	if !envSet {
		envCfg = nil
	}
	eff, err := config.LoadEffectiveConfig(*e.flags, fileCfg, fileExists, envCfg)
	if err != nil {
		return nil, err
	}
	if err := config.ValidateConfig(&eff); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return app.New(ctx, eff, e.version)
}

// withApp opens the app for the duration of fn.
func (e *env) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := e.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Warn("close_failed", "error", cerr)
		}
	}()
	return fn(ctx, a)
}
