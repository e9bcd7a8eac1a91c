package providers

import (
	"strings"
	"time"

	"MorningBrief/internal/domain/repository"
	"MorningBrief/internal/service/binance"
	"MorningBrief/internal/service/coingecko"
	"MorningBrief/internal/service/newsfeed"
	"MorningBrief/pkg/config"
	xhttp "MorningBrief/pkg/http"
	applogger "MorningBrief/pkg/logger"
)

const defaultHTTPTimeout = 8 * time.Second

// Deps carries what the factory needs to build any provider.
type Deps struct {
	Config  config.ProviderConfig
	Logger  *applogger.Logger
	Metrics repository.Metrics
}

// New picks a provider by key. Unknown keys resolve to the mock so a report can
// always be produced.
func New(key string, deps Deps) repository.MarketProvider {
	if deps.Logger == nil {
		deps.Logger = applogger.Nop()
	}
	if deps.Metrics == nil {
		deps.Metrics = repository.NopMetrics{}
	}
	cfg := deps.Config
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = defaultHTTPTimeout
	}

	mock := NewMockProvider(WithMockSeed(cfg.MockSeed), WithMockCacheTTL(cfg.MockCacheTTL))

	switch k := strings.ToLower(strings.TrimSpace(key)); k {
	case MockName:
		deps.Logger.Info("using mock market provider")
		return mock
	case LiveName, "public":
		deps.Logger.Info("using live market provider", applogger.String("key", k))
		// No retries: a failed call degrades to the mock instead.
		client := xhttp.NewClient(xhttp.WithTimeout(cfg.HTTPTimeout))
		return NewLiveProvider(
			coingecko.New(client, cfg.CoinGecko.BaseURL, cfg.CoinGecko.APIKey),
			binance.New(client, cfg.Binance.BaseURL),
			newsfeed.New(client, cfg.News.Feeds, cfg.News.FallbackURL),
			mock,
			WithLiveLogger(deps.Logger),
			WithLiveMetrics(deps.Metrics),
			WithCallTimeout(cfg.HTTPTimeout),
			WithGenericTerms(genericTerms(cfg.News.GenericTerms)),
			WithMaxNews(cfg.News.MaxItems),
		)
	default:
		deps.Logger.Warn("unknown provider type, using mock", applogger.String("key", key))
		return mock
	}
}

func genericTerms(configured []string) []string {
	if len(configured) == 0 {
		return DefaultGenericTerms()
	}
	return configured
}
