package commands

import (
	"github.com/spf13/cobra"
)

var watchRunNow bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run on the configured cron schedule until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		return application.Watch(cmd.Context(), watchRunNow)
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchRunNow, "now", false, "perform a run immediately before waiting for the schedule")
	rootCmd.AddCommand(watchCmd)
}
