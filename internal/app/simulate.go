package app

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"stablecoin-watch/internal/alerting"
)

// SimulateAlert 通过配置的广播通道发送一条示例最高值告警，不修改已保存的最高值。
func (a *App) SimulateAlert(ctx context.Context, exchange string, value decimal.Decimal) error {
	if strings.TrimSpace(exchange) == "" {
		return errors.New("exchange 不能为空")
	}
	if !value.IsPositive() {
		return errors.New("value 必须大于 0")
	}

	sink, err := a.newSink(ctx)
	if err != nil {
		return err
	}
	return sink.Send(ctx, alerting.HighWaterMessage(strings.ToLower(exchange), value, a.Config.Ingest.Fiat))
}
