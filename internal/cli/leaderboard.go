package cli

import (
	"github.com/spf13/cobra"
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Print the current ranking without broadcasting",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Leaderboard(cmd.Context())
	},
}
