package commands

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Check the registry once and notify about new labels",
	RunE:  runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	result, err := application.Run(cmd.Context())
	if err != nil {
		return err
	}

	logger.Info("run complete",
		"run_id", result.RunID,
		"scraped", result.Scraped,
		"new", result.New,
		"with_image", result.WithImage,
		"notified", result.Notified,
	)
	return nil
}
