package cli

import (
	"github.com/spf13/cobra"
)

var broadcastCmd = &cobra.Command{
	Use:   "broadcast",
	Short: "Run the leaderboard and all-time-high broadcast loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Broadcast(cmd.Context())
	},
}
