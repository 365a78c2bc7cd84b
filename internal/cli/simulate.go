package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	simulateValue uint64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次历史新高并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateValue == 0 {
			return errors.New("--value 必须大于 0")
		}
		return getApp().SimulateAlert(cmd.Context(), simulateValue)
	},
}

func init() {
	simulateCmd.Flags().Uint64Var(&simulateValue, "value", 0, "模拟的历史最高价")
}
