package binance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"MorningBrief/internal/domain/models"
	xhttp "MorningBrief/pkg/http"

	"github.com/shopspring/decimal"
)

const (
	DefaultBaseURL = "https://fapi.binance.com"

	// settlementsPerDay is the number of funding settlements summed into the daily rate.
	settlementsPerDay = 3
)

type premiumIndex struct {
	Symbol          string          `json:"symbol"`
	MarkPrice       decimal.Decimal `json:"markPrice"`
	LastFundingRate decimal.Decimal `json:"lastFundingRate"`
}

type fundingRate struct {
	Symbol      string          `json:"symbol"`
	FundingRate decimal.Decimal `json:"fundingRate"`
	FundingTime int64           `json:"fundingTime"`
}

type openInterest struct {
	Symbol       string          `json:"symbol"`
	OpenInterest decimal.Decimal `json:"openInterest"`
}

type longShortRatio struct {
	Symbol         string          `json:"symbol"`
	LongShortRatio decimal.Decimal `json:"longShortRatio"`
}

// Client reads perpetual futures metrics from the public USDⓈ-M endpoints.
type Client struct {
	http    *xhttp.Client
	baseURL string
	now     func() time.Time
}

func New(client *xhttp.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: client, baseURL: strings.TrimRight(baseURL, "/"), now: time.Now}
}

// Pair is the USDT-margined perpetual for a ticker.
func Pair(symbol string) string {
	return strings.ToUpper(symbol) + "USDT"
}

// Derivatives fetches symbols concurrently. A symbol whose calls fail is left out
// of the snapshot; the error is returned only when no symbol succeeded. Liquidation
// totals are not published by these endpoints and stay zero.
func (c *Client) Derivatives(ctx context.Context, symbols []string) (models.DerivativesSnapshot, error) {
	symbols = models.NormalizeSymbols(symbols)

	type result struct {
		symbol string
		quote  models.DerivativesQuote
		err    error
	}
	results := make(chan result, len(symbols))
	var wg sync.WaitGroup
	for _, s := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			q, err := c.quote(ctx, symbol)
			results <- result{symbol: symbol, quote: q, err: err}
		}(s)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	out := make(models.DerivativesSnapshot, len(symbols))
	var errs []error
	for r := range results {
		if r.err != nil {
			errs = append(errs, fmt.Errorf("binance %s: %w", r.symbol, r.err))
			continue
		}
		out[r.symbol] = r.quote
	}
	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func (c *Client) quote(ctx context.Context, symbol string) (models.DerivativesQuote, error) {
	pair := Pair(symbol)

	var idx premiumIndex
	if err := c.get(ctx, "/fapi/v1/premiumIndex", map[string][]string{"symbol": {pair}}, &idx); err != nil {
		return models.DerivativesQuote{}, fmt.Errorf("premium index: %w", err)
	}

	var rates []fundingRate
	if err := c.get(ctx, "/fapi/v1/fundingRate", map[string][]string{
		"symbol": {pair},
		"limit":  {strconv.Itoa(settlementsPerDay)},
	}, &rates); err != nil {
		return models.DerivativesQuote{}, fmt.Errorf("funding history: %w", err)
	}

	var oi openInterest
	if err := c.get(ctx, "/fapi/v1/openInterest", map[string][]string{"symbol": {pair}}, &oi); err != nil {
		return models.DerivativesQuote{}, fmt.Errorf("open interest: %w", err)
	}

	var ratios []longShortRatio
	if err := c.get(ctx, "/futures/data/globalLongShortAccountRatio", map[string][]string{
		"symbol": {pair},
		"period": {"5m"},
		"limit":  {"1"},
	}, &ratios); err != nil {
		return models.DerivativesQuote{}, fmt.Errorf("long short ratio: %w", err)
	}
	if len(ratios) == 0 {
		return models.DerivativesQuote{}, fmt.Errorf("long short ratio: no data")
	}

	return models.DerivativesQuote{
		FundingRate:     idx.LastFundingRate.InexactFloat64(),
		FundingRate24h:  dailyFunding(rates).InexactFloat64(),
		OpenInterest:    oi.OpenInterest.InexactFloat64(),
		OpenInterestUSD: oi.OpenInterest.Mul(idx.MarkPrice).InexactFloat64(),
		LongShortRatio:  ratios[0].LongShortRatio.InexactFloat64(),
		Timestamp:       c.now().UTC(),
	}, nil
}

// dailyFunding sums the most recent settlements, at most three of them.
func dailyFunding(rates []fundingRate) decimal.Decimal {
	sum := decimal.Zero
	start := 0
	if len(rates) > settlementsPerDay {
		start = len(rates) - settlementsPerDay
	}
	for _, r := range rates[start:] {
		sum = sum.Add(r.FundingRate)
	}
	return sum
}

func (c *Client) get(ctx context.Context, path string, query map[string][]string, dest interface{}) error {
	return c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + path,
		QueryParams: query,
	}, dest)
}
