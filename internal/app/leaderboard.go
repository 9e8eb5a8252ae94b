package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"stablecoin-watch/internal/highwater"
	"stablecoin-watch/internal/leaderboard"
	"stablecoin-watch/internal/storage"
)

// Leaderboard prints the current ranking and the stored high-water mark.
// Nothing is sent and the mark is not modified.
func (a *App) Leaderboard(ctx context.Context) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	records, err := store.RecentWindow(ctx, a.Config.Broadcast.WindowSize)
	if err != nil {
		return err
	}

	state, found, err := highwater.NewFilePersister(a.Config.HighWater.Path).Load(ctx)
	if err != nil {
		return err
	}
	if !found {
		state = highwater.State{}
	}

	return a.writeLeaderboard(os.Stdout, records, state)
}

func (a *App) writeLeaderboard(out io.Writer, records []storage.QuoteRecord, mark highwater.State) error {
	bc := a.Config.Broadcast
	unit := a.Config.Ingest.Fiat

	entries, err := leaderboard.RequireTopK(records, bc.TopK, bc.Freshness, leaderboard.Newest(records))
	switch {
	case errors.Is(err, leaderboard.ErrInsufficientData):
		fmt.Fprintln(out, "no fresh quotes to rank")
	case err != nil:
		return err
	default:
		fmt.Fprintln(out, leaderboard.Render(entries, unit))
	}

	if mark.Exchange == "" {
		fmt.Fprintln(out, "all-time high: none recorded")
		return nil
	}
	fmt.Fprintf(out, "all-time high: %s %s%s (%s)\n",
		leaderboard.DisplayName(mark.Exchange),
		formatDecimal(mark.TotalBid, 2),
		unit,
		mark.Time.UTC().Format("2006-01-02 15:04:05"),
	)
	return nil
}
