package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"stablecoin-watch/internal/leaderboard"
	"stablecoin-watch/internal/storage"
)

// Export renders historical quotes as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Broadcast.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	records, err := store.ListBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		a.Logger.Info().Msg("no quotes found for export window")
		return nil
	}

	downsampled := downsampleQuotes(records, opts.MaxPoints)
	a.Logger.Info().Int("total", len(records)).Int("exported", len(downsampled)).Msg("exporting quotes")

	if opts.CSVPath != "" {
		if err := writeQuotesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeQuotesPNG(opts.PNGPath, downsampled, a.Config.Ingest.Fiat); err != nil {
			return err
		}
	}

	return nil
}

func downsampleQuotes(records []storage.QuoteRecord, max int) []storage.QuoteRecord {
	if max <= 0 || len(records) <= max {
		return records
	}
	if max == 1 {
		return records[len(records)-1:]
	}

	result := make([]storage.QuoteRecord, 0, max)
	step := float64(len(records)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(records) {
			idx = len(records) - 1
		}
		result = append(result, records[idx])
	}
	return result
}

func writeQuotesCSV(path string, records []storage.QuoteRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"time", "exchange", "coin", "ask", "total_ask", "bid", "total_bid"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		row := []string{
			rec.Time.UTC().Format(time.RFC3339Nano),
			rec.Exchange,
			rec.Coin,
			rec.Ask.String(),
			rec.TotalAsk.String(),
			rec.Bid.String(),
			rec.TotalBid.String(),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeQuotesPNG(path string, records []storage.QuoteRecord, unit string) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	type series struct {
		x []time.Time
		y []float64
	}
	byExchange := make(map[string]*series)
	for _, rec := range records {
		s, ok := byExchange[rec.Exchange]
		if !ok {
			s = &series{}
			byExchange[rec.Exchange] = s
		}
		s.x = append(s.x, rec.Time)
		s.y = append(s.y, rec.TotalBid.InexactFloat64())
	}

	exchanges := make([]string, 0, len(byExchange))
	for exchange := range byExchange {
		exchanges = append(exchanges, exchange)
	}
	sort.Strings(exchanges)

	graphSeries := make([]chart.Series, 0, len(exchanges))
	for _, exchange := range exchanges {
		s := byExchange[exchange]
		// go-chart needs two points to draw a line
		if len(s.x) < 2 {
			continue
		}
		graphSeries = append(graphSeries, chart.TimeSeries{
			Name:    leaderboard.DisplayName(exchange),
			XValues: s.x,
			YValues: s.y,
		})
	}
	if len(graphSeries) == 0 {
		return errors.New("not enough points per exchange to draw a chart")
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Total bid (" + unit + ")",
			ValueFormatter: priceFormatter,
		},
		Series: graphSeries,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
