package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"MorningBrief/internal/domain/models"
	"MorningBrief/internal/service/binance"
	"MorningBrief/internal/service/coingecko"
	xhttp "MorningBrief/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNews struct {
	feedItems []models.NewsItem
	feedErr   error
	ccItems   []models.NewsItem
	ccErr     error
	ccCalls   int
}

func (s *stubNews) FromFeeds(context.Context) ([]models.NewsItem, string, error) {
	return s.feedItems, "https://feed.test/rss", s.feedErr
}

func (s *stubNews) FromCryptoCompare(context.Context) ([]models.NewsItem, error) {
	s.ccCalls++
	return s.ccItems, s.ccErr
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func coinGeckoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		out := map[string]map[string]float64{}
		for _, id := range ids {
			switch id {
			case "bitcoin":
				out[id] = map[string]float64{"usd": 65000, "usd_24h_change": 2.5, "usd_24h_vol": 3e10, "usd_market_cap": 1.2e12}
			case "ethereum":
				out[id] = map[string]float64{"usd": 3200, "usd_24h_change": -1.25, "usd_24h_vol": 1.5e10, "usd_market_cap": 3.8e11}
			}
		}
		writeJSON(w, out)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func binanceServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pair := r.URL.Query().Get("symbol")
		if pair == "FOOUSDT" {
			http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
			return
		}
		switch r.URL.Path {
		case "/fapi/v1/premiumIndex":
			writeJSON(w, map[string]string{"symbol": pair, "markPrice": "50000", "lastFundingRate": "0.0001"})
		case "/fapi/v1/fundingRate":
			assert.Equal(t, "3", r.URL.Query().Get("limit"))
			writeJSON(w, []map[string]interface{}{
				{"symbol": pair, "fundingRate": "0.0001", "fundingTime": 1},
				{"symbol": pair, "fundingRate": "0.0002", "fundingTime": 2},
				{"symbol": pair, "fundingRate": "0.0003", "fundingTime": 3},
			})
		case "/fapi/v1/openInterest":
			writeJSON(w, map[string]string{"symbol": pair, "openInterest": "1000"})
		case "/futures/data/globalLongShortAccountRatio":
			writeJSON(w, []map[string]string{{"symbol": pair, "longShortRatio": "1.25"}})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func failingServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestLive(t *testing.T, spotURL, derivURL string, news NewsSource, opts ...LiveOption) *LiveProvider {
	t.Helper()
	client := xhttp.NewClient(xhttp.WithTimeout(2 * time.Second))
	return NewLiveProvider(
		coingecko.New(client, spotURL, ""),
		binance.New(client, derivURL),
		news,
		NewMockProvider(WithMockSeed(7)),
		opts...,
	)
}

func TestLiveSpotFromCoinGecko(t *testing.T) {
	p := newTestLive(t, coinGeckoServer(t).URL, failingServer(t).URL, &stubNews{})

	spot := p.SpotSnapshot(context.Background(), []string{"BTC", "ETH", "UNKNOWN"})

	require.Equal(t, []string{"BTC", "ETH"}, spot.Symbols())
	assert.Equal(t, 65000.0, spot["BTC"].Price)
	assert.Equal(t, -1.25, spot["ETH"].Change24h)
	assert.Equal(t, 1.2e12, spot["BTC"].MarketCap)
	assert.Equal(t, SourceCoinGecko, p.LastSources()[KindSpot])
}

func TestLiveDerivativesFromBinance(t *testing.T) {
	p := newTestLive(t, failingServer(t).URL, binanceServer(t).URL, &stubNews{})

	deriv := p.DerivativesSnapshot(context.Background(), []string{"BTC"})

	require.Contains(t, deriv, "BTC")
	q := deriv["BTC"]
	assert.InDelta(t, 0.0001, q.FundingRate, 1e-12)
	assert.InDelta(t, 0.0006, q.FundingRate24h, 1e-12)
	assert.Equal(t, 1000.0, q.OpenInterest)
	assert.Equal(t, 5e7, q.OpenInterestUSD)
	assert.Equal(t, 1.25, q.LongShortRatio)
	assert.Zero(t, q.TotalLiquidations())
	assert.Equal(t, SourceBinance, p.LastSources()[KindDerivatives])
}

func TestLiveDerivativesOmitsUnlistedPair(t *testing.T) {
	p := newTestLive(t, failingServer(t).URL, binanceServer(t).URL, &stubNews{})

	deriv := p.DerivativesSnapshot(context.Background(), []string{"BTC", "FOO"})

	assert.Equal(t, []string{"BTC"}, deriv.Symbols())
	assert.Equal(t, 5e7, deriv["BTC"].OpenInterestUSD)
	assert.Equal(t, SourceBinance, p.LastSources()[KindDerivatives])
}

func TestLiveDerivativesFailureFallsBackWithoutTouchingSpot(t *testing.T) {
	p := newTestLive(t, coinGeckoServer(t).URL, failingServer(t).URL, &stubNews{})
	ctx := context.Background()

	spot := p.SpotSnapshot(ctx, []string{"BTC", "ETH"})
	deriv := p.DerivativesSnapshot(ctx, []string{"BTC", "ETH"})

	assert.Equal(t, []string{"BTC", "ETH"}, deriv.Symbols())
	for _, q := range deriv {
		assert.InDelta(t, q.FundingRate*3, q.FundingRate24h, 3e-6)
	}
	assert.Equal(t, 65000.0, spot["BTC"].Price)

	sources := p.LastSources()
	assert.Equal(t, SourceCoinGecko, sources[KindSpot])
	assert.Equal(t, MockName, sources[KindDerivatives])
}

func TestLiveSpotTimeoutFallsBack(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(slow.Close)

	p := newTestLive(t, slow.URL, slow.URL, &stubNews{}, WithCallTimeout(50*time.Millisecond))

	start := time.Now()
	spot := p.SpotSnapshot(context.Background(), []string{"BTC"})
	assert.Less(t, time.Since(start), time.Second)
	assert.Contains(t, spot, "BTC")
	assert.Equal(t, MockName, p.LastSources()[KindSpot])
}

func TestLiveEmptyUpstreamFallsBack(t *testing.T) {
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{})
	}))
	t.Cleanup(empty.Close)

	p := newTestLive(t, empty.URL, failingServer(t).URL, &stubNews{})
	spot := p.SpotSnapshot(context.Background(), []string{"SOL"})
	assert.Contains(t, spot, "SOL")
	assert.Equal(t, MockName, p.LastSources()[KindSpot])
}

func TestLiveNewsMatchesKeywordsOrGenericTerms(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	news := &stubNews{feedItems: []models.NewsItem{
		{Title: "Solana validators ship upgrade", PublishedAt: now.Add(-3 * time.Hour)},
		{Title: "Bitcoin ETF inflows surge", PublishedAt: now.Add(-1 * time.Hour)},
		{Title: "Local bakery wins award", PublishedAt: now},
		{Title: "bitcoin etf inflows surge", PublishedAt: now.Add(-2 * time.Hour)},
		{Title: "Exchange hacked, funds drained", Summary: "crypto exchange", PublishedAt: now.Add(-30 * time.Minute)},
	}}
	p := newTestLive(t, failingServer(t).URL, failingServer(t).URL, news)

	items := p.NewsSnapshot(context.Background(), []string{"Solana"})

	titles := make([]string, 0, len(items))
	for _, it := range items {
		titles = append(titles, it.Title)
	}
	assert.Equal(t, []string{
		"Exchange hacked, funds drained",
		"Bitcoin ETF inflows surge",
		"Solana validators ship upgrade",
	}, titles)
	assert.Equal(t, models.SentimentNegative, items[0].Sentiment)
	assert.Equal(t, models.SentimentPositive, items[1].Sentiment)
	assert.Equal(t, []string{"Solana"}, items[2].Keywords)
	assert.Equal(t, SourceRSS, p.LastSources()[KindNews])
	assert.Zero(t, news.ccCalls)
}

func TestMatchTermsWholeWords(t *testing.T) {
	terms := DefaultGenericTerms()

	assert.Empty(t, matchTerms("second quarter sector outlook is secure", terms))
	assert.Equal(t, []string{"sec"}, matchTerms("the sec delays a filing", terms))
	assert.Equal(t, []string{"etf"}, matchTerms("spot etf, approved", terms))
	assert.Equal(t, []string{"Solana"}, matchTerms("solana-based dex", []string{"Solana"}))
	assert.Empty(t, matchTerms("solanas", []string{"Solana"}))
}

func TestLiveNewsCapsResults(t *testing.T) {
	now := time.Now()
	var feed []models.NewsItem
	for i := 0; i < 30; i++ {
		feed = append(feed, models.NewsItem{
			Title:       "crypto headline " + strings.Repeat("x", i+1),
			PublishedAt: now.Add(-time.Duration(i) * time.Minute),
		})
	}
	p := newTestLive(t, failingServer(t).URL, failingServer(t).URL, &stubNews{feedItems: feed}, WithMaxNews(5))

	items := p.NewsSnapshot(context.Background(), nil)
	require.Len(t, items, 5)
	assert.Equal(t, "crypto headline x", items[0].Title)
}

func TestLiveNewsFallsBackToCryptoCompareThenMock(t *testing.T) {
	news := &stubNews{
		feedErr: errors.New("all feeds down"),
		ccItems: []models.NewsItem{{Title: "Ethereum staking grows", PublishedAt: time.Now()}},
	}
	p := newTestLive(t, failingServer(t).URL, failingServer(t).URL, news)

	items := p.NewsSnapshot(context.Background(), []string{"ethereum"})
	require.Len(t, items, 1)
	assert.Equal(t, SourceCryptoCompare, p.LastSources()[KindNews])
	assert.Equal(t, 1, news.ccCalls)

	news.ccErr = errors.New("rate limited")
	items = p.NewsSnapshot(context.Background(), []string{"ethereum"})
	require.NotEmpty(t, items)
	assert.Equal(t, MockName, p.LastSources()[KindNews])
}

func TestResolveMakesOneHop(t *testing.T) {
	calls := 0
	fallback := func() int { calls++; return 2 }

	r := resolve(Success("primary", 1), "fb", fallback)
	assert.Equal(t, 1, r.value)
	assert.False(t, r.fellBack)
	assert.Zero(t, calls)

	r = resolve(Failure[int]("primary", errors.New("boom")), "fb", fallback)
	assert.Equal(t, 2, r.value)
	assert.Equal(t, "fb", r.source)
	assert.True(t, r.fellBack)
	assert.Equal(t, 1, calls)
}
