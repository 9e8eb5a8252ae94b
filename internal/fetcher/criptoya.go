package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const defaultBaseURL = "https://criptoya.com/api"

// HTTPOptions are shared by the criptoya sources.
type HTTPOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

type httpGetter struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

func newHTTPGetter(opts HTTPOptions) httpGetter {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return httpGetter{
		client:    &http.Client{Timeout: timeout},
		baseURL:   baseURL,
		userAgent: strings.TrimSpace(opts.UserAgent),
	}
}

func (g httpGetter) getJSON(ctx context.Context, path string, out any) error {
	endpoint := g.baseURL + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	} else {
		req.Header.Set("User-Agent", "stablewatch/1.0")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return parseHTTPError(resp.StatusCode, payload)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// AggregateSource reads a single pre-aggregated quote object.
type AggregateSource struct {
	exchange string
	path     string
	getter   httpGetter
	logger   zerolog.Logger
}

// NewAggregateSource constructs a source for endpoints answering {ask,totalAsk,bid,totalBid}.
func NewAggregateSource(exchange, path string, opts HTTPOptions, logger zerolog.Logger) *AggregateSource {
	return &AggregateSource{
		exchange: exchange,
		path:     path,
		getter:   newHTTPGetter(opts),
		logger:   logger.With().Str("component", "aggregate_source").Str("exchange", exchange).Logger(),
	}
}

// Exchange names the quoted exchange.
func (s *AggregateSource) Exchange() string { return s.exchange }

// Fetch retrieves the quote.
func (s *AggregateSource) Fetch(ctx context.Context) (Response, error) {
	var agg Aggregate
	if err := s.getter.getJSON(ctx, s.path, &agg); err != nil {
		return Response{}, err
	}
	s.logger.Debug().Str("path", s.path).Msg("aggregate quote fetched")
	return Response{Aggregate: &agg}, nil
}

// P2PSource reads two offer lists, one per market side, and reports individual offer prices.
type P2PSource struct {
	exchange string
	bidPath  string
	askPath  string
	getter   httpGetter
	logger   zerolog.Logger
}

// NewP2PSource constructs a source for P2P advert listings such as binancep2p.
func NewP2PSource(exchange, bidPath, askPath string, opts HTTPOptions, logger zerolog.Logger) *P2PSource {
	return &P2PSource{
		exchange: exchange,
		bidPath:  bidPath,
		askPath:  askPath,
		getter:   newHTTPGetter(opts),
		logger:   logger.With().Str("component", "p2p_source").Str("exchange", exchange).Logger(),
	}
}

// Exchange names the quoted exchange.
func (s *P2PSource) Exchange() string { return s.exchange }

// Fetch retrieves both sides of the advert book.
func (s *P2PSource) Fetch(ctx context.Context) (Response, error) {
	bids, err := s.fetchSide(ctx, s.bidPath)
	if err != nil {
		return Response{}, fmt.Errorf("bid side: %w", err)
	}
	asks, err := s.fetchSide(ctx, s.askPath)
	if err != nil {
		return Response{}, fmt.Errorf("ask side: %w", err)
	}

	s.logger.Debug().Int("bids", len(bids)).Int("asks", len(asks)).Msg("p2p offers fetched")
	return Response{Offers: &OfferBook{Bids: bids, Asks: asks}}, nil
}

func (s *P2PSource) fetchSide(ctx context.Context, path string) ([]decimal.Decimal, error) {
	var listing p2pListing
	if err := s.getter.getJSON(ctx, path, &listing); err != nil {
		return nil, err
	}

	prices := make([]decimal.Decimal, 0, len(listing.Data))
	for i, offer := range listing.Data {
		if !offer.Adv.Price.Valid {
			return nil, fmt.Errorf("offer %d has no price", i)
		}
		prices = append(prices, offer.Adv.Price.Decimal)
	}
	return prices, nil
}

type p2pListing struct {
	Data []struct {
		Adv struct {
			Price decimal.NullDecimal `json:"price"`
		} `json:"adv"`
	} `json:"data"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("quote api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("quote api error (%d): %s", status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("quote api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("quote api error (%d)", status)
}

var (
	_ Source = (*AggregateSource)(nil)
	_ Source = (*P2PSource)(nil)
)
