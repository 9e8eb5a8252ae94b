package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: test\n"))
	require.NoError(t, err)

	require.Equal(t, "USDT", cfg.Ingest.Coin)
	require.Equal(t, 5*time.Minute, cfg.Broadcast.Interval)
	require.Equal(t, 2*time.Minute, cfg.Broadcast.Freshness)
	require.Equal(t, 100, cfg.Broadcast.WindowSize)
	require.Equal(t, 3, cfg.Broadcast.TopK)
	require.Equal(t, 10*time.Second, cfg.Ingest.RequestTimeout)
	require.Equal(t, int64(0x75734454), cfg.Ingest.LockKey)

	require.Len(t, cfg.Ingest.Sources, 14)
	require.Equal(t, "tiendacrypto", cfg.Ingest.Sources[0].ExchangeName())
	last := cfg.Ingest.Sources[len(cfg.Ingest.Sources)-1]
	require.Equal(t, SourceKindP2P, last.Kind)
	require.Equal(t, "binance", last.ExchangeName())
}

func TestLoadEnvironmentOverride(t *testing.T) {
	t.Setenv("STABLEWATCH_BROADCAST_INTERVAL", "90s")
	t.Setenv("STABLEWATCH_HIGHWATER_PATH", "/var/lib/stablewatch/max.json")

	cfg, err := Load(writeConfig(t, "app:\n  name: test\n"))
	require.NoError(t, err)
	require.Equal(t, 90*time.Second, cfg.Broadcast.Interval)
	require.Equal(t, "/var/lib/stablewatch/max.json", cfg.HighWater.Path)
}

func TestLoadCustomSources(t *testing.T) {
	body := `
ingest:
  sources:
    - kind: aggregate
      path: /buenbit/usdt/ars
    - kind: aggregate
      exchange: Belo
      path: belo/usdt/ars/0.5
`
	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)
	require.Len(t, cfg.Ingest.Sources, 2)
	require.Equal(t, "buenbit", cfg.Ingest.Sources[0].ExchangeName())
	require.Equal(t, "belo", cfg.Ingest.Sources[1].ExchangeName())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"unknown kind":       "ingest:\n  sources:\n    - kind: websocket\n      path: x\n",
		"p2p without paths":  "ingest:\n  sources:\n    - kind: p2p\n      exchange: binance\n",
		"zero window":        "broadcast:\n  window_size: 0\n",
		"telegram no token":  "alerting:\n  telegram:\n    enabled: true\n    chat_id: \"1\"\n",
		"telegram no chat":   "alerting:\n  telegram:\n    enabled: true\n    bot_token: abc\n",
		"negative freshness": "broadcast:\n  freshness: -1m\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestTelegramTokenFromParameterIsAccepted(t *testing.T) {
	body := "alerting:\n  telegram:\n    enabled: true\n    chat_id: \"-100\"\n    bot_token_param: /stablewatch/telegram\n"
	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)
	require.Equal(t, "/stablewatch/telegram", cfg.Alerting.Telegram.BotTokenParam)
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := &Config{Export: ExportConfig{MaxDataPoints: 50}}
	require.Equal(t, 50, cfg.ResolveMaxPoints(0))
	require.Equal(t, 7, cfg.ResolveMaxPoints(7))
}
