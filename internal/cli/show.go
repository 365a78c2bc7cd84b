package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ath-watcher/internal/app"
)

var (
	showLimit int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the stored all-time high and recent detections",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit < 0 {
			return fmt.Errorf("--limit cannot be negative")
		}
		return getApp().Show(cmd.Context(), cmd.OutOrStdout(), app.ShowOptions{Limit: showLimit})
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 10, "Number of recent detections to display (postgres backend)")
}
