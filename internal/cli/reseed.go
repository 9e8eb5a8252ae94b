package cli

import (
	"github.com/spf13/cobra"

	"stablecoin-watch/internal/app"
)

var reseedDryRun bool

var reseedCmd = &cobra.Command{
	Use:   "reseed",
	Short: "Rebuild the high-water file from the best stored quote",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Reseed(cmd.Context(), app.ReseedOptions{DryRun: reseedDryRun})
	},
}

func init() {
	reseedCmd.Flags().BoolVar(&reseedDryRun, "dry-run", false, "Report the rebuilt mark without writing the file")
}
