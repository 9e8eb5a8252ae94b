package cli

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulateExchange string
	simulateValue    string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "发送一条示例最高值告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateExchange == "" || simulateValue == "" {
			return errors.New("--exchange 与 --value 必须提供")
		}

		value, err := decimal.NewFromString(simulateValue)
		if err != nil {
			return fmt.Errorf("invalid --value: %w", err)
		}
		return getApp().SimulateAlert(cmd.Context(), simulateExchange, value)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateExchange, "exchange", "", "交易所名称")
	simulateCmd.Flags().StringVar(&simulateValue, "value", "", "总买价 (fiat)")
}
