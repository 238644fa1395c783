package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"PulseWatch/internal/app"
	"PulseWatch/internal/config"
	"PulseWatch/internal/logging"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevelFlag string

	cc := &commandContext{configFlag: &configFlag, logLevelFlag: &logLevelFlag}

	rootCmd := &cobra.Command{
		Use:           "pulsewatch",
		Short:         "Public sentiment monitoring service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := cc.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override the configured log level")

	rootCmd.AddCommand(newServeCommand(cc))
	rootCmd.AddCommand(newAnalyzeCommand(cc))
	rootCmd.AddCommand(newIngestCommand(cc))
	rootCmd.AddCommand(newCleanupCommand(cc))
	rootCmd.AddCommand(newHealthCommand(cc))
	rootCmd.AddCommand(newAnalyticsCommand(cc))
	rootCmd.AddCommand(newConfigCommand(cc))

	return rootCmd
}

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     config.Config
	configErr  error
}

func (c *commandContext) ensureConfig() (config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(*c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
			cfg.Logging.Level = level
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() *slog.Logger {
	return logging.New(c.config.Logging.Level, c.config.Logging.Format)
}

// withApp builds the application, runs fn and releases it.
func (c *commandContext) withApp(ctx context.Context, fn func(*app.Application) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger := c.logger()
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := application.Close(); cerr != nil {
			logger.Warn("close application", "error", cerr)
		}
	}()
	return fn(application)
}
