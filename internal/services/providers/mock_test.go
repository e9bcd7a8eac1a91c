package providers

import (
	"context"
	"testing"
	"time"

	"MorningBrief/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMock(now *time.Time) *MockProvider {
	return NewMockProvider(
		WithMockSeed(42),
		WithMockClock(func() time.Time { return *now }),
	)
}

func TestMockSpotIsCachedForTTL(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	p := newTestMock(&now)
	ctx := context.Background()

	first := p.SpotSnapshot(ctx, []string{"BTC", "ETH"})
	require.Len(t, first, 2)

	now = now.Add(30 * time.Second)
	assert.Equal(t, first, p.SpotSnapshot(ctx, []string{"btc", "eth"}))

	now = now.Add(31 * time.Second)
	again := p.SpotSnapshot(ctx, []string{"BTC"})
	assert.NotEqual(t, first["BTC"], again["BTC"])
}

func TestMockOmitsUnknownSymbols(t *testing.T) {
	now := time.Now()
	p := newTestMock(&now)

	spot := p.SpotSnapshot(context.Background(), []string{"BTC", "NOPE", ""})
	assert.Equal(t, []string{"BTC"}, spot.Symbols())

	deriv := p.DerivativesSnapshot(context.Background(), []string{"NOPE"})
	assert.Empty(t, deriv)
}

func TestMockQuotesStayInRange(t *testing.T) {
	now := time.Now()
	p := newTestMock(&now)
	symbols := KnownSymbols()
	require.Len(t, symbols, 10)

	spot := p.SpotSnapshot(context.Background(), symbols)
	deriv := p.DerivativesSnapshot(context.Background(), symbols)
	require.Len(t, spot, 10)
	require.Len(t, deriv, 10)

	for _, s := range symbols {
		q := spot[s]
		base := mockBasePrices[s]
		assert.InDelta(t, base, q.Price, base*0.03+0.006, s)
		assert.GreaterOrEqual(t, q.Change24h, -8.0)
		assert.LessOrEqual(t, q.Change24h, 8.0)
		assert.Positive(t, q.MarketCap)
		assert.GreaterOrEqual(t, q.High24h, q.Low24h)

		d := deriv[s]
		assert.InDelta(t, d.FundingRate*3, d.FundingRate24h, 3e-6, s)
		assert.Equal(t, d.OpenInterest, d.OpenInterestUSD)
		assert.GreaterOrEqual(t, d.LongShortRatio, 0.8)
		assert.LessOrEqual(t, d.LongShortRatio, 1.2)
	}
}

func TestMockNewsIsUniqueAndNewestFirst(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	p := newTestMock(&now)

	news := p.NewsSnapshot(context.Background(), []string{"bitcoin", "ethereum", " "})
	require.NotEmpty(t, news)
	assert.LessOrEqual(t, len(news), 8)

	titles := make(map[string]struct{})
	for i, n := range news {
		_, dup := titles[n.Title]
		assert.False(t, dup, n.Title)
		titles[n.Title] = struct{}{}

		assert.Contains(t, n.URL, "https://example.com/news/")
		assert.True(t, n.PublishedAt.After(now.Add(-24*time.Hour)))
		if i > 0 {
			assert.False(t, n.PublishedAt.After(news[i-1].PublishedAt))
		}
		assert.Contains(t, []models.Sentiment{models.SentimentPositive, models.SentimentNeutral, models.SentimentNegative}, n.Sentiment)
	}
}

func TestMockIsAlwaysAvailable(t *testing.T) {
	assert.True(t, NewMockProvider().IsAvailable())
}
