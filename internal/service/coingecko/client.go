package coingecko

import (
	"context"
	"fmt"
	"strings"
	"time"

	"MorningBrief/internal/domain/models"
	xhttp "MorningBrief/pkg/http"
)

const DefaultBaseURL = "https://api.coingecko.com/api/v3"

// CoinIDs maps tickers to CoinGecko coin ids.
var CoinIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"BNB":   "binancecoin",
	"SOL":   "solana",
	"ADA":   "cardano",
	"XRP":   "ripple",
	"DOGE":  "dogecoin",
	"DOT":   "polkadot",
	"MATIC": "matic-network",
	"AVAX":  "avalanche-2",
}

type price struct {
	USD       float64 `json:"usd"`
	Change24h float64 `json:"usd_24h_change"`
	Volume24h float64 `json:"usd_24h_vol"`
	MarketCap float64 `json:"usd_market_cap"`
}

// Client reads spot quotes from the public /simple/price endpoint.
type Client struct {
	http    *xhttp.Client
	baseURL string
	apiKey  string
	now     func() time.Time
}

func New(client *xhttp.Client, baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		now:     time.Now,
	}
}

// Spot returns quotes for the symbols CoinGecko knows; others are dropped before
// the request is made.
func (c *Client) Spot(ctx context.Context, symbols []string) (models.SpotSnapshot, error) {
	ids := make([]string, 0, len(symbols))
	byID := make(map[string]string, len(symbols))
	for _, s := range models.NormalizeSymbols(symbols) {
		if id, ok := CoinIDs[s]; ok {
			ids = append(ids, id)
			byID[id] = s
		}
	}
	if len(ids) == 0 {
		return models.SpotSnapshot{}, nil
	}

	opts := &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/simple/price",
		QueryParams: map[string][]string{
			"ids":                 {strings.Join(ids, ",")},
			"vs_currencies":       {"usd"},
			"include_24hr_change": {"true"},
			"include_24hr_vol":    {"true"},
			"include_market_cap":  {"true"},
		},
		Headers: map[string]string{"Accept": "application/json"},
	}
	if c.apiKey != "" {
		opts.Headers["x-cg-demo-api-key"] = c.apiKey
	}

	var resp map[string]price
	if err := c.http.SendAndParse(ctx, opts, &resp); err != nil {
		return nil, fmt.Errorf("coingecko simple price: %w", err)
	}

	now := c.now().UTC()
	out := make(models.SpotSnapshot, len(resp))
	for id, p := range resp {
		symbol, ok := byID[id]
		if !ok || p.USD <= 0 {
			continue
		}
		out[symbol] = models.SpotQuote{
			Price:     p.USD,
			Change24h: p.Change24h,
			Volume24h: p.Volume24h,
			MarketCap: p.MarketCap,
			Timestamp: now,
		}
	}
	return out, nil
}
