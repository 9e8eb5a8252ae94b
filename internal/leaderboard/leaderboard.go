// Package leaderboard ranks exchanges by their freshest aggregate bid.
package leaderboard

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"stablecoin-watch/internal/storage"
)

// ErrInsufficientData is returned when nothing is left to rank.
var ErrInsufficientData = errors.New("leaderboard: no records within freshness window")

var medals = []string{"🥇", "🥈", "🥉"}

// Entry is one ranked exchange.
type Entry struct {
	Exchange string
	TotalBid decimal.Decimal
}

// TopK keeps records with Time >= now-freshness, retains the latest record per exchange,
// and returns up to k of them by descending TotalBid.
func TopK(records []storage.QuoteRecord, k int, freshness time.Duration, now time.Time) []Entry {
	if k <= 0 {
		return []Entry{}
	}
	cutoff := now.Add(-freshness)

	latest := make(map[string]int)
	order := make([]string, 0)
	kept := make([]storage.QuoteRecord, 0, len(records))
	for _, rec := range records {
		if rec.Time.Before(cutoff) {
			continue
		}
		idx, seen := latest[rec.Exchange]
		if !seen {
			latest[rec.Exchange] = len(kept)
			order = append(order, rec.Exchange)
			kept = append(kept, rec)
			continue
		}
		// strictly later replaces; ties keep the record seen first
		if rec.Time.After(kept[idx].Time) {
			kept[idx] = rec
		}
	}

	entries := make([]Entry, 0, len(order))
	for _, exchange := range order {
		rec := kept[latest[exchange]]
		entries = append(entries, Entry{Exchange: rec.Exchange, TotalBid: rec.TotalBid})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalBid.GreaterThan(entries[j].TotalBid)
	})

	if len(entries) > k {
		entries = entries[:k]
	}
	return entries
}

// RequireTopK is TopK for callers that need at least one entry.
func RequireTopK(records []storage.QuoteRecord, k int, freshness time.Duration, now time.Time) ([]Entry, error) {
	entries := TopK(records, k, freshness, now)
	if len(entries) == 0 {
		return nil, ErrInsufficientData
	}
	return entries, nil
}

// Best returns the record with the highest TotalBid in records. Ties keep the first one.
func Best(records []storage.QuoteRecord) (storage.QuoteRecord, bool) {
	if len(records) == 0 {
		return storage.QuoteRecord{}, false
	}
	best := records[0]
	for _, rec := range records[1:] {
		if rec.TotalBid.GreaterThan(best.TotalBid) {
			best = rec
		}
	}
	return best, true
}

// Newest returns the latest timestamp in records, or the zero time.
func Newest(records []storage.QuoteRecord) time.Time {
	var newest time.Time
	for _, rec := range records {
		if rec.Time.After(newest) {
			newest = rec.Time
		}
	}
	return newest
}

// Render formats entries one per line, e.g. "🥇 Belo : 1012.50ARS".
func Render(entries []Entry, unit string) string {
	lines := make([]string, 0, len(entries))
	for i, entry := range entries {
		lines = append(lines, fmt.Sprintf("%s %s : %s%s", rankMarker(i), DisplayName(entry.Exchange), entry.TotalBid.StringFixed(2), unit))
	}
	return strings.Join(lines, "\n")
}

// DisplayName title-cases an exchange identifier.
func DisplayName(exchange string) string {
	return cases.Title(language.Und).String(exchange)
}

func rankMarker(i int) string {
	if i < len(medals) {
		return medals[i]
	}
	return fmt.Sprintf("%d.", i+1)
}
