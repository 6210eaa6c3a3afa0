package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loykin/appwatch"
	"github.com/loykin/appwatch/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := buildRoot()
	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// command carries state prepared by the root pre-run hook.
type command struct {
	cfg    appwatch.Config
	log    *slog.Logger
	closer io.Closer
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	checkFlags := &CheckFlags{}
	historyFlags := &HistoryFlags{}

	c := &command{}
	root := createRootCommand(c, globalFlags)
	root.AddCommand(
		createCheckCommand(c, checkFlags),
		createHistoryCommand(c, historyFlags),
	)
	return root
}

// createRootCommand creates the root command and wires config and logging setup
func createRootCommand(c *command, flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "appwatch",
		Short: "Watch app store listings for new releases",
		Long: `appwatch checks the App Store and Play Store listings of the Tesla app,
keeps a short version history per platform and notifies every configured
sink when a new version appears. Each invocation performs one check.

Examples:
  appwatch check
  appwatch check --config appwatch.toml --json
  appwatch history --platform ios --format yaml`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd, flags)
		},
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.PersistentFlags().StringVar(&flags.EnvFile, "env-file", ".env", "dotenv file applied before reading configuration")
	root.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "override log level (debug, info, warn, error)")

	return root
}

func (c *command) setup(cmd *cobra.Command, flags *GlobalFlags) error {
	if flags.EnvFile != "" {
		// the default .env is optional; an explicit one must exist
		if _, err := appwatch.LoadEnv(flags.EnvFile, cmd.Flags().Changed("env-file")); err != nil {
			return err
		}
	}
	cfg, err := appwatch.LoadConfig(flags.ConfigPath)
	if err != nil {
		return err
	}
	if flags.LogLevel != "" {
		cfg.Log.Level = flags.LogLevel
	}
	log, closer, err := logger.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(log)
	c.cfg, c.log, c.closer = cfg, log, closer
	return nil
}

// close releases the log file, if any.
func (c *command) close() {
	if c.closer != nil {
		_ = c.closer.Close()
	}
}
