package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"MorningBrief/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoryUnknownKeyResolvesToMock(t *testing.T) {
	p := New("nonexistent", Deps{})

	require.IsType(t, &MockProvider{}, p)
	assert.True(t, p.IsAvailable())
	assert.NotEmpty(t, p.SpotSnapshot(context.Background(), []string{"BTC"}))
	assert.NotEmpty(t, p.DerivativesSnapshot(context.Background(), []string{"BTC"}))
}

func TestFactoryKeys(t *testing.T) {
	cases := map[string]string{
		"mock":   MockName,
		" MOCK ": MockName,
		"live":   LiveName,
		"public": LiveName,
		"":       MockName,
		"real":   MockName,
	}
	for key, want := range cases {
		assert.Equal(t, want, New(key, Deps{}).Name(), "key %q", key)
	}
}

func TestSentimentScorer(t *testing.T) {
	s := NewSentimentScorer()

	assert.Equal(t, "positive", string(s.Classify("Bitcoin rallies to record high")))
	assert.Equal(t, "negative", string(s.Classify("Exchange hacked as prices plunge")))
	assert.Equal(t, "neutral", string(s.Classify("Ethereum developers meet on Thursday")))
	assert.Zero(t, s.Score(""))
}

func TestFactoryLiveDoesNotRetryFailedFetch(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "upstream down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := config.Default().Provider
	cfg.CoinGecko.BaseURL = srv.URL
	p := New("live", Deps{Config: cfg})

	spot := p.SpotSnapshot(context.Background(), []string{"BTC"})

	assert.Contains(t, spot, "BTC")
	assert.Equal(t, int32(1), hits.Load())
}
