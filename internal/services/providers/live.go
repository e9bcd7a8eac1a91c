package providers

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"MorningBrief/internal/domain/models"
	"MorningBrief/internal/domain/repository"
	applogger "MorningBrief/pkg/logger"
)

const (
	LiveName = "live"

	SourceCoinGecko     = "coingecko"
	SourceBinance       = "binance"
	SourceRSS           = "rss"
	SourceCryptoCompare = "cryptocompare"
)

// SpotSource is the primary upstream for spot quotes.
type SpotSource interface {
	Spot(ctx context.Context, symbols []string) (models.SpotSnapshot, error)
}

// DerivativesSource is the primary upstream for perpetual futures metrics.
type DerivativesSource interface {
	Derivatives(ctx context.Context, symbols []string) (models.DerivativesSnapshot, error)
}

// NewsSource serves raw headlines from feeds, and from a second API when feeds fail.
type NewsSource interface {
	FromFeeds(ctx context.Context) ([]models.NewsItem, string, error)
	FromCryptoCompare(ctx context.Context) ([]models.NewsItem, error)
}

type LiveOption func(*LiveProvider)

func WithLiveLogger(l *applogger.Logger) LiveOption {
	return func(p *LiveProvider) { p.logger = l }
}

func WithLiveMetrics(m repository.Metrics) LiveOption {
	return func(p *LiveProvider) { p.metrics = m }
}

// WithCallTimeout bounds each data-kind fetch, including every upstream call in it.
func WithCallTimeout(d time.Duration) LiveOption {
	return func(p *LiveProvider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithGenericTerms(terms []string) LiveOption {
	return func(p *LiveProvider) { p.genericTerms = terms }
}

func WithMaxNews(n int) LiveOption {
	return func(p *LiveProvider) {
		if n > 0 {
			p.maxNews = n
		}
	}
}

// LiveProvider composes the upstream sources and substitutes the mock for any data
// kind whose primary fetch fails. Each kind falls back independently.
type LiveProvider struct {
	spot     SpotSource
	deriv    DerivativesSource
	news     NewsSource
	fallback repository.MarketProvider

	sentiment    *SentimentScorer
	genericTerms []string
	maxNews      int
	timeout      time.Duration

	logger  *applogger.Logger
	metrics repository.Metrics

	mu      sync.Mutex
	sources map[string]string
}

func NewLiveProvider(spot SpotSource, deriv DerivativesSource, news NewsSource, fallback repository.MarketProvider, opts ...LiveOption) *LiveProvider {
	p := &LiveProvider{
		spot:         spot,
		deriv:        deriv,
		news:         news,
		fallback:     fallback,
		sentiment:    NewSentimentScorer(),
		genericTerms: DefaultGenericTerms(),
		maxNews:      20,
		timeout:      8 * time.Second,
		logger:       applogger.Nop(),
		metrics:      repository.NopMetrics{},
		sources:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(applogger.String("component", "provider.live"))
	return p
}

// DefaultGenericTerms widens news matching beyond the requested keywords.
func DefaultGenericTerms() []string {
	return []string{"crypto", "cryptocurrency", "bitcoin", "ethereum", "blockchain", "defi", "stablecoin", "etf", "sec", "market"}
}

func (p *LiveProvider) Name() string { return LiveName }

// IsAvailable is always true since every kind can be served by the fallback.
func (p *LiveProvider) IsAvailable() bool { return true }

// LastSources reports which source served the latest fetch of each kind.
func (p *LiveProvider) LastSources() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.sources))
	for k, v := range p.sources {
		out[k] = v
	}
	return out
}

func (p *LiveProvider) SpotSnapshot(ctx context.Context, symbols []string) models.SpotSnapshot {
	start := time.Now()
	primary := p.fetchSpot(ctx, symbols)
	r := resolve(primary, MockName, func() models.SpotSnapshot {
		return p.fallback.SpotSnapshot(ctx, symbols)
	})
	p.observe(KindSpot, primary.Source, primary.Err, r.source, r.fellBack, start)
	return r.value
}

func (p *LiveProvider) fetchSpot(ctx context.Context, symbols []string) Outcome[models.SpotSnapshot] {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	snap, err := p.spot.Spot(ctx, symbols)
	if err != nil {
		return Failure[models.SpotSnapshot](SourceCoinGecko, err)
	}
	if len(snap) == 0 {
		return Failure[models.SpotSnapshot](SourceCoinGecko, ErrEmptyResult)
	}
	return Success(SourceCoinGecko, snap)
}

func (p *LiveProvider) DerivativesSnapshot(ctx context.Context, symbols []string) models.DerivativesSnapshot {
	start := time.Now()
	primary := p.fetchDerivatives(ctx, symbols)
	r := resolve(primary, MockName, func() models.DerivativesSnapshot {
		return p.fallback.DerivativesSnapshot(ctx, symbols)
	})
	p.observe(KindDerivatives, primary.Source, primary.Err, r.source, r.fellBack, start)
	return r.value
}

func (p *LiveProvider) fetchDerivatives(ctx context.Context, symbols []string) Outcome[models.DerivativesSnapshot] {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	snap, err := p.deriv.Derivatives(ctx, symbols)
	if err != nil {
		return Failure[models.DerivativesSnapshot](SourceBinance, err)
	}
	if len(snap) == 0 {
		return Failure[models.DerivativesSnapshot](SourceBinance, ErrEmptyResult)
	}
	return Success(SourceBinance, snap)
}

func (p *LiveProvider) NewsSnapshot(ctx context.Context, keywords []string) []models.NewsItem {
	start := time.Now()
	primary := p.fetchNews(ctx, keywords)
	r := resolve(primary, MockName, func() []models.NewsItem {
		return p.fallback.NewsSnapshot(ctx, keywords)
	})
	p.observe(KindNews, primary.Source, primary.Err, r.source, r.fellBack, start)
	return r.value
}

// fetchNews walks feeds first and CryptoCompare second. A stage whose items all
// fail the match filter counts as failed.
func (p *LiveProvider) fetchNews(ctx context.Context, keywords []string) Outcome[[]models.NewsItem] {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	items, _, feedErr := p.news.FromFeeds(ctx)
	if feedErr == nil {
		if out := p.selectNews(items, keywords); len(out) > 0 {
			return Success(SourceRSS, out)
		}
		feedErr = ErrEmptyResult
	}
	p.logger.Debug("news feeds unusable, trying cryptocompare", applogger.Error(feedErr))

	items, ccErr := p.news.FromCryptoCompare(ctx)
	if ccErr == nil {
		if out := p.selectNews(items, keywords); len(out) > 0 {
			return Success(SourceCryptoCompare, out)
		}
		ccErr = ErrEmptyResult
	}
	return Failure[[]models.NewsItem](SourceCryptoCompare, errors.Join(feedErr, ccErr))
}

// selectNews keeps items matching a keyword or a generic term, tags sentiment and
// matched keywords, drops duplicate titles, sorts newest first and caps the list.
func (p *LiveProvider) selectNews(items []models.NewsItem, keywords []string) []models.NewsItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]models.NewsItem, 0, len(items))
	for _, it := range items {
		text := strings.ToLower(it.Title + " " + it.Summary)
		matched := matchTerms(text, keywords)
		if len(matched) == 0 && len(matchTerms(text, p.genericTerms)) == 0 {
			continue
		}
		key := strings.ToLower(it.Title)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		it.Keywords = matched
		it.Sentiment = p.sentiment.Classify(it.Title + " " + it.Summary)
		out = append(out, it)
	}

	sortNewestFirst(out)
	if p.maxNews > 0 && len(out) > p.maxNews {
		out = out[:p.maxNews]
	}
	return out
}

// matchTerms returns the terms found in text as whole words, so "sec" does not
// match "second".
func matchTerms(text string, terms []string) []string {
	var out []string
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t != "" && containsWord(text, strings.ToLower(t)) {
			out = append(out, t)
		}
	}
	return out
}

func containsWord(text, word string) bool {
	for from := 0; from <= len(text)-len(word); {
		i := strings.Index(text[from:], word)
		if i < 0 {
			return false
		}
		start, end := from+i, from+i+len(word)
		if !isWordByte(text, start-1) && !isWordByte(text, end) {
			return true
		}
		from = start + 1
	}
	return false
}

func isWordByte(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	if r == utf8.RuneError {
		r, _ = utf8.DecodeLastRuneInString(text[:i+1])
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (p *LiveProvider) observe(kind, primarySource string, primaryErr error, servedBy string, fellBack bool, start time.Time) {
	outcome := "success"
	if fellBack {
		outcome = "fallback"
		p.logger.Warn("upstream fetch failed, using fallback",
			applogger.String("kind", kind),
			applogger.String("source", primarySource),
			applogger.String("fallback", servedBy),
			applogger.Error(primaryErr),
		)
		p.metrics.RecordError("provider." + kind)
	}
	p.metrics.RecordFetch(primarySource, kind, outcome)
	p.metrics.RecordLatency("provider."+kind, time.Since(start).Seconds())

	p.mu.Lock()
	p.sources[kind] = servedBy
	p.mu.Unlock()
}
