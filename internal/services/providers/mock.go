package providers

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"MorningBrief/internal/domain/models"
	icache "MorningBrief/internal/service/cache"
)

const MockName = "mock"

// Base prices and market caps for the symbols the mock knows about.
var mockBasePrices = map[string]float64{
	"BTC":   45000.0,
	"ETH":   2500.0,
	"BNB":   300.0,
	"SOL":   100.0,
	"ADA":   0.5,
	"XRP":   0.6,
	"DOGE":  0.08,
	"DOT":   7.0,
	"MATIC": 0.9,
	"AVAX":  35.0,
}

var mockBaseMarketCaps = map[string]float64{
	"BTC": 900_000_000_000,
	"ETH": 300_000_000_000,
}

type newsTemplate struct {
	title     string
	source    string
	sentiment models.Sentiment
}

var mockNewsTemplates = []newsTemplate{
	{"%s Price Surges Amid Institutional Adoption", "CryptoNews", models.SentimentPositive},
	{"Market Analysis: %s Shows Strong Technical Indicators", "BlockchainDaily", models.SentimentNeutral},
	{"%s Faces Regulatory Scrutiny in Key Markets", "CryptoWatch", models.SentimentNegative},
	{"Experts Predict %s Will Reach New Highs", "DigitalAssets", models.SentimentPositive},
	{"%s Network Upgrade Scheduled for Next Month", "TechCrypto", models.SentimentNeutral},
}

type MockOption func(*MockProvider)

func WithMockSeed(seed int64) MockOption {
	return func(p *MockProvider) {
		if seed != 0 {
			p.rng = rand.New(rand.NewSource(seed))
		}
	}
}

func WithMockCacheTTL(ttl time.Duration) MockOption {
	return func(p *MockProvider) {
		if ttl > 0 {
			p.cacheTTL = ttl
		}
	}
}

func WithMockClock(now func() time.Time) MockOption {
	return func(p *MockProvider) { p.now = now }
}

// MockProvider produces plausible random market data. Quotes are cached per
// symbol so repeated calls inside the TTL return identical values.
type MockProvider struct {
	mu       sync.Mutex
	rng      *rand.Rand
	now      func() time.Time
	cacheTTL time.Duration

	spot  *icache.TTLCache[models.SpotQuote]
	deriv *icache.TTLCache[models.DerivativesQuote]
}

func NewMockProvider(opts ...MockOption) *MockProvider {
	p := &MockProvider{
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
		cacheTTL: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.spot = icache.NewTTLCache[models.SpotQuote](p.cacheTTL, icache.WithClock(p.now))
	p.deriv = icache.NewTTLCache[models.DerivativesQuote](p.cacheTTL, icache.WithClock(p.now))
	return p
}

func (p *MockProvider) Name() string { return MockName }

func (p *MockProvider) IsAvailable() bool { return true }

// KnownSymbols lists every symbol the mock can quote, sorted.
func KnownSymbols() []string {
	out := make([]string, 0, len(mockBasePrices))
	for s := range mockBasePrices {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (p *MockProvider) SpotSnapshot(_ context.Context, symbols []string) models.SpotSnapshot {
	out := make(models.SpotSnapshot)
	for _, symbol := range models.NormalizeSymbols(symbols) {
		base, ok := mockBasePrices[symbol]
		if !ok {
			continue
		}
		if q, ok := p.spot.Get(symbol); ok {
			out[symbol] = q
			continue
		}
		q := p.generateSpot(symbol, base)
		p.spot.Set(symbol, q)
		out[symbol] = q
	}
	return out
}

func (p *MockProvider) generateSpot(symbol string, base float64) models.SpotQuote {
	p.mu.Lock()
	defer p.mu.Unlock()

	baseCap := mockMarketCap(symbol)
	price := base * (1 + p.uniform(-0.03, 0.03))
	change := p.uniform(-8, 8)

	return models.SpotQuote{
		Price:     round(price, 2),
		Change24h: round(change, 2),
		Volume24h: round(baseCap*p.uniform(0.02, 0.05), 2),
		MarketCap: round(baseCap*(1+change/100), 2),
		High24h:   round(price*p.uniform(1.0, 1.05), 2),
		Low24h:    round(price*p.uniform(0.95, 1.0), 2),
		Timestamp: p.now().UTC(),
	}
}

func (p *MockProvider) DerivativesSnapshot(_ context.Context, symbols []string) models.DerivativesSnapshot {
	out := make(models.DerivativesSnapshot)
	for _, symbol := range models.NormalizeSymbols(symbols) {
		if _, ok := mockBasePrices[symbol]; !ok {
			continue
		}
		if q, ok := p.deriv.Get(symbol); ok {
			out[symbol] = q
			continue
		}
		q := p.generateDerivatives(symbol)
		p.deriv.Set(symbol, q)
		out[symbol] = q
	}
	return out
}

func (p *MockProvider) generateDerivatives(symbol string) models.DerivativesQuote {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Three settlements a day at a constant rate.
	funding := p.uniform(-0.001, 0.001)
	oi := round(mockMarketCap(symbol)*p.uniform(0.1, 0.3), 2)

	return models.DerivativesQuote{
		FundingRate:         round(funding, 6),
		FundingRate24h:      round(funding*3, 6),
		OpenInterest:        oi,
		OpenInterestUSD:     oi,
		LongShortRatio:      round(p.uniform(0.8, 1.2), 3),
		LongLiquidation24h:  round(p.uniform(10_000_000, 100_000_000), 2),
		ShortLiquidation24h: round(p.uniform(10_000_000, 100_000_000), 2),
		Timestamp:           p.now().UTC(),
	}
}

// NewsSnapshot makes 2 to 4 headlines per keyword from fixed templates. Titles are
// never repeated and the result is newest first.
func (p *MockProvider) NewsSnapshot(_ context.Context, keywords []string) []models.NewsItem {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now().UTC()
	used := make(map[string]struct{})
	out := make([]models.NewsItem, 0)

	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		n := 2 + p.rng.Intn(3)
		for i := 0; i < n; i++ {
			tpl := mockNewsTemplates[p.rng.Intn(len(mockNewsTemplates))]
			title := fmt.Sprintf(tpl.title, kw)
			if _, dup := used[title]; dup {
				continue
			}
			used[title] = struct{}{}

			hoursAgo := p.uniform(0, 24)
			out = append(out, models.NewsItem{
				Title:       title,
				Source:      tpl.source,
				PublishedAt: now.Add(-time.Duration(hoursAgo * float64(time.Hour))),
				URL:         fmt.Sprintf("https://example.com/news/%s-%d", strings.ToLower(kw), 1000+p.rng.Intn(9000)),
				Sentiment:   tpl.sentiment,
				Summary:     fmt.Sprintf("Latest developments regarding %s in the cryptocurrency market.", kw),
				Keywords:    []string{kw},
			})
		}
	}

	sortNewestFirst(out)
	return out
}

// uniform must be called with p.mu held.
func (p *MockProvider) uniform(lo, hi float64) float64 {
	return lo + p.rng.Float64()*(hi-lo)
}

func mockMarketCap(symbol string) float64 {
	if c, ok := mockBaseMarketCaps[symbol]; ok {
		return c
	}
	return mockBasePrices[symbol] * 20_000_000
}

func round(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}

func sortNewestFirst(items []models.NewsItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
}
