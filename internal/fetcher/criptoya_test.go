package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestAggregateSourceSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/buenbit/usdt/ars" {
			t.Fatalf("请求路径不正确: %s", r.URL.Path)
		}
		if r.Header.Get("User-Agent") != "test" {
			t.Fatalf("应携带 User-Agent")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ask":1015.5,"totalAsk":1020,"bid":990,"totalBid":985.25,"time":1700000000}`))
	}))
	defer srv.Close()

	src := NewAggregateSource("buenbit", "/buenbit/usdt/ars", HTTPOptions{BaseURL: srv.URL, Timeout: time.Second, UserAgent: "test"}, noopLogger())
	if src.Exchange() != "buenbit" {
		t.Fatalf("exchange 名称错误: %s", src.Exchange())
	}

	resp, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}
	if resp.Aggregate == nil || resp.Offers != nil {
		t.Fatalf("应返回 aggregate 响应: %+v", resp)
	}
	if !resp.Aggregate.TotalBid.Valid || !resp.Aggregate.TotalBid.Decimal.Equal(decimal.RequireFromString("985.25")) {
		t.Fatalf("totalBid 解析错误: %+v", resp.Aggregate.TotalBid)
	}
	if !resp.Aggregate.Ask.Decimal.Equal(decimal.RequireFromString("1015.5")) {
		t.Fatalf("ask 解析错误: %s", resp.Aggregate.Ask.Decimal)
	}
}

func TestAggregateSourceMissingTotals(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ask":"1010","bid":"1000"}`))
	}))
	defer srv.Close()

	src := NewAggregateSource("lemoncash", "lemoncash/usdt", HTTPOptions{BaseURL: srv.URL}, noopLogger())
	resp, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("不应报错: %v", err)
	}
	if resp.Aggregate.TotalBid.Valid || resp.Aggregate.TotalAsk.Valid {
		t.Fatalf("缺失字段应为无效值: %+v", resp.Aggregate)
	}
	if !resp.Aggregate.Bid.Valid {
		t.Fatal("bid 应有效")
	}
}

func TestAggregateSourceHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "upstream down"})
	}))
	defer srv.Close()

	src := NewAggregateSource("belo", "belo/usdt/ars/0.5", HTTPOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	_, err := src.Fetch(context.Background())
	if err == nil {
		t.Fatal("HTTP 502 应返回错误")
	}
	if !strings.Contains(err.Error(), "upstream down") {
		t.Fatalf("错误信息应包含响应内容: %v", err)
	}
}

func TestAggregateSourceMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	src := NewAggregateSource("copter", "copter/usdt/ars/0.1", HTTPOptions{BaseURL: srv.URL}, noopLogger())
	if _, err := src.Fetch(context.Background()); err == nil {
		t.Fatal("非 JSON 响应应报错")
	}
}

func TestAggregateSourceHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	src := NewAggregateSource("slow", "slow/usdt/ars", HTTPOptions{BaseURL: srv.URL, Timeout: 5 * time.Second}, noopLogger())
	if _, err := src.Fetch(ctx); err == nil {
		t.Fatal("超时应返回错误")
	}
}

func TestP2PSourceSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/binancep2p/sell/usdt/ars/5":
			_, _ = w.Write([]byte(`{"data":[{"adv":{"price":"1000.00"}},{"adv":{"price":"1010.00"}},{"adv":{"price":"990.00"}}]}`))
		case "/binancep2p/buy/usdt/ars/5":
			_, _ = w.Write([]byte(`{"data":[{"adv":{"price":"1030.00"}},{"adv":{"price":"1020.00"}}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	src := NewP2PSource("binance", "binancep2p/sell/usdt/ars/5", "binancep2p/buy/usdt/ars/5", HTTPOptions{BaseURL: srv.URL}, noopLogger())
	resp, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}
	if resp.Offers == nil {
		t.Fatal("应返回 offers")
	}
	if len(resp.Offers.Bids) != 3 || len(resp.Offers.Asks) != 2 {
		t.Fatalf("offer 数量错误: %+v", resp.Offers)
	}
	if !resp.Offers.Asks[1].Equal(decimal.NewFromInt(1020)) {
		t.Fatalf("ask 价格解析错误: %s", resp.Offers.Asks[1])
	}
}

func TestP2PSourceOfferWithoutPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"adv":{}}]}`))
	}))
	defer srv.Close()

	src := NewP2PSource("binance", "sell", "buy", HTTPOptions{BaseURL: srv.URL}, noopLogger())
	if _, err := src.Fetch(context.Background()); err == nil {
		t.Fatal("缺少价格应报错")
	}
}

func TestSourceErrorUnwraps(t *testing.T) {
	inner := context.DeadlineExceeded
	err := &SourceError{Exchange: "belo", Err: inner}
	if !strings.Contains(err.Error(), "belo") {
		t.Fatalf("错误信息应包含交易所: %s", err.Error())
	}
	if err.Unwrap() != inner {
		t.Fatal("Unwrap 应返回原始错误")
	}
}
