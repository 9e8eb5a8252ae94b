package cli

import (
	"github.com/spf13/cobra"

	"stablecoin-watch/internal/app"
)

var (
	ingestCreateSchema bool
	ingestDryRun       bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch one quote per exchange and append them to the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Ingest(cmd.Context(), app.IngestOptions{
			CreateSchema: ingestCreateSchema,
			DryRun:       ingestDryRun,
		})
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestCreateSchema, "create-schema", false, "Create the timeseries table before ingesting")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "Fetch and print quotes without writing to storage")
}
