package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"stablecoin-watch/internal/storage"
)

// Show prints the most recent quotes.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	limit := opts.Limit
	if limit <= 0 {
		limit = a.Config.Broadcast.WindowSize
	}

	records, err := store.RecentWindow(ctx, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no quotes found")
		return nil
	}
	return writeQuoteTable(os.Stdout, records)
}

func writeQuoteTable(out io.Writer, records []storage.QuoteRecord) error {
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tExchange\tCoin\tAsk\tTotal Ask\tBid\tTotal Bid")

	for _, rec := range records {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.Time.UTC().Format(time.RFC3339),
			rec.Exchange,
			rec.Coin,
			formatDecimal(rec.Ask, 2),
			formatDecimal(rec.TotalAsk, 2),
			formatDecimal(rec.Bid, 2),
			formatDecimal(rec.TotalBid, 2),
		)
	}

	return writer.Flush()
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
