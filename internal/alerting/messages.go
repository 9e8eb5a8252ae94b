package alerting

import (
	"fmt"

	"github.com/shopspring/decimal"

	"stablecoin-watch/internal/leaderboard"
)

// HighWaterMessage announces a new all-time high.
func HighWaterMessage(exchange string, totalBid decimal.Decimal, unit string) string {
	return fmt.Sprintf("🚨🤑💲 New all-time high on %s: %s%s", leaderboard.DisplayName(exchange), totalBid.StringFixed(2), unit)
}
