package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/praekelt/helpdesk/internal/app"
	"github.com/praekelt/helpdesk/pkg/config"
	"github.com/praekelt/helpdesk/pkg/logger"
	"github.com/praekelt/helpdesk/pkg/shutdown"
)

// set build metadata
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	var flags *config.Flags
	root := &cobra.Command{
		Use:           "helpdesk",
		Short:         "Case management service for a messaging gateway",
		Version:       versionString(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, _ []string) {
			flags.Resolve(cmd.Flags())
			serve(*flags)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	flags = config.BindFlags(root.Flags())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionString() string {
	v := version
	if commit != "none" {
		v += " (" + commit + ")"
	}
	if buildDate != "unknown" {
		v += " @ " + buildDate
	}
	return v
}

func serve(flags config.Flags) {
	// load .env file if present
	if err := config.LoadDotEnv(); err != nil {
		shutdown.Abort("failed to load .env", err, flags.DB)
	}

	fileCfg, fileExists, err := config.ParseConfigFile(flags)
	if err != nil {
		shutdown.Abort("failed to load config file", err, flags.DB)
	}

	envCfg, envSet, err := config.ParseConfigEnvs()
	if err != nil {
		shutdown.Abort("failed to parse environment", err, flags.DB)
	}
	if !envSet {
		envCfg = nil
	}

	eff, err := config.LoadEffectiveConfig(flags, fileCfg, fileExists, envCfg)
	if err != nil {
		shutdown.Abort("failed to build effective config", err, flags.DB)
	}

	if err := config.ValidateConfig(&eff); err != nil {
		shutdown.Abort("invalid configuration", err, eff.DBPath)
	}

	// initialize logger after config is fully loaded
	logger.Init(eff.Config.Logging.Level)
	defer logger.Sync()

	logger.Info("effective_config_loaded", "source", eff.Source, "addr", eff.Addr, "db_path", eff.DBPath)
	logger.Info("system_logical_cores", "logical_cores", runtime.NumCPU())

	// set up context and signal handling for graceful shutdown
	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	a, err := app.New(ctx, eff, versionString())
	if err != nil {
		shutdown.Abort("failed to initialize app", err, eff.DBPath)
	}

	if err := a.Run(ctx); err != nil {
		_ = a.Shutdown(context.Background())
		shutdown.Abort("app run failed", err, eff.DBPath)
	}

	// bounded so teardown cannot hang forever
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer shutdownCancel()
	_ = a.Shutdown(shutdownCtx)
}
