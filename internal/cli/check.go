package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a single poll cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		outcome, err := getApp().Check(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "outcome: %s\n", outcome)
		return nil
	},
}
