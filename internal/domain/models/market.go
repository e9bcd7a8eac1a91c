package models

import (
	"sort"
	"strings"
	"time"
)

// SpotQuote is one symbol's spot market state. Optional fields that a source does
// not report are left at zero.
type SpotQuote struct {
	Price     float64   `json:"price"`
	Change24h float64   `json:"change_24h"` // percent, signed
	Volume24h float64   `json:"volume_24h"`
	MarketCap float64   `json:"market_cap"`
	High24h   float64   `json:"high_24h"`
	Low24h    float64   `json:"low_24h"`
	Timestamp time.Time `json:"timestamp"`
}

// SpotSnapshot maps an uppercase ticker ("BTC") to its quote.
type SpotSnapshot map[string]SpotQuote

// DerivativesQuote is one symbol's perpetual futures state.
type DerivativesQuote struct {
	FundingRate         float64   `json:"funding_rate"`     // fraction per 8h settlement
	FundingRate24h      float64   `json:"funding_rate_24h"` // fraction per day, sum of the day's settlements
	OpenInterest        float64   `json:"open_interest"`    // base asset units
	OpenInterestUSD     float64   `json:"open_interest_usd"`
	LongShortRatio      float64   `json:"long_short_ratio"`
	LongLiquidation24h  float64   `json:"long_liquidation_24h"`
	ShortLiquidation24h float64   `json:"short_liquidation_24h"`
	Timestamp           time.Time `json:"timestamp"`
}

// DerivativesSnapshot maps an uppercase ticker to its derivatives quote.
type DerivativesSnapshot map[string]DerivativesQuote

// Sentiment of a headline.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

type NewsItem struct {
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	URL         string    `json:"url"`
	Sentiment   Sentiment `json:"sentiment"`
	Summary     string    `json:"summary"`
	Keywords    []string  `json:"keywords,omitempty"`
}

// Symbols returns the snapshot keys in sorted order.
func (s SpotSnapshot) Symbols() []string {
	return sortedKeys(s)
}

func (s DerivativesSnapshot) Symbols() []string {
	return sortedKeys(s)
}

// TotalMarketCap sums market caps across every symbol in the snapshot.
func (s SpotSnapshot) TotalMarketCap() float64 {
	var total float64
	for _, q := range s {
		total += q.MarketCap
	}
	return total
}

// VolumeRatio is volume_24h / market_cap, or 0 when market cap is not positive.
func (q SpotQuote) VolumeRatio() float64 {
	if q.MarketCap <= 0 {
		return 0
	}
	return q.Volume24h / q.MarketCap
}

// TotalLiquidations returns long plus short liquidations over 24h.
func (q DerivativesQuote) TotalLiquidations() float64 {
	return q.LongLiquidation24h + q.ShortLiquidation24h
}

// NormalizeSymbols uppercases, trims and de-duplicates symbols, keeping order.
func NormalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
