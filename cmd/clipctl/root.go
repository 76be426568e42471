package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/timmy/sportsclips/internal/app"
	"github.com/timmy/sportsclips/internal/config"
	"github.com/timmy/sportsclips/internal/logger"
)

// commandContext lazily loads configuration and the application graph for subcommands.
type commandContext struct {
	configPath string
	logLevel   string
	app        *app.App
	stop       context.CancelFunc
}

func (c *commandContext) open(ctx context.Context) (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

func (c *commandContext) close() {
	if c.app != nil {
		c.app.Close()
		c.app = nil
	}
}

func newRootCommand() *cobra.Command {
	cc := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "clipctl",
		Short:         "Operate sports news sources, clip queries and pairing",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logCfg := logger.LoadFromEnv()
			logCfg.ServiceName = "sportsclips-cli"
			if cc.logLevel != "" {
				logCfg.Level = cc.logLevel
			}
			l := logger.New(logCfg)
			logger.SetDefaultLogger(l)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			cc.stop = stop
			cmd.SetContext(l.WithContext(ctx))
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			cc.close()
			if cc.stop != nil {
				cc.stop()
			}
			_ = logger.Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cc.configPath, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&cc.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newAdaptersCommand(cc))
	rootCmd.AddCommand(newSourcesCommand(cc))
	rootCmd.AddCommand(newFetchCommand(cc))
	rootCmd.AddCommand(newRunCommand(cc))
	rootCmd.AddCommand(newRunsCommand(cc))
	rootCmd.AddCommand(newTickCommand(cc))
	rootCmd.AddCommand(newPairCommand(cc))
	rootCmd.AddCommand(newPairPendingCommand(cc))
	rootCmd.AddCommand(newWorkerCommand(cc))

	return rootCmd
}
