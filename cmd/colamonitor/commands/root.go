package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"ColaMonitor/internal/app"
	"ColaMonitor/internal/config"
	"ColaMonitor/internal/logging"
)

var (
	configPath string
	logLevel   string

	cfg         config.Config
	logger      *slog.Logger
	application *app.Application
)

var rootCmd = &cobra.Command{
	Use:   "colamonitor",
	Short: "Watch the TTB COLA registry for newly approved whiskey labels",
	Long: `colamonitor searches the public TTB COLA registry for recently approved
whiskey labels and posts the ones it has not seen before to a chat webhook.

Without a subcommand it performs a single run.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if configPath != "" {
			cfg = config.LoadFrom(configPath)
		} else {
			cfg = config.Load()
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		logger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
		application = app.New(cfg, logger)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
		if application == nil {
			return nil
		}
		return application.Close()
	},
	RunE: runOnce,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
}

// Execute runs the root command and exits non-zero on failure.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger != nil {
			logger.Error("colamonitor stopped", "error", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		if application != nil {
			_ = application.Close()
		}
		os.Exit(1)
	}
}
