package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"MorningBrief/internal/domain/models"
	"MorningBrief/internal/domain/repository"
	"MorningBrief/internal/domain/service"
	"MorningBrief/internal/services/signals"
	applogger "MorningBrief/pkg/logger"
)

const DefaultTimezone = "Asia/Seoul"

var (
	ErrProviderUnavailable = errors.New("market data provider is unavailable")
	ErrNoMarketData        = errors.New("no market data available")
	ErrInvalidDate         = errors.New("invalid date, expected YYYY-MM-DD")
)

var (
	defaultSymbols  = []string{"BTC", "ETH"}
	defaultKeywords = []string{"bitcoin", "ethereum"}
)

// Deliverer hands a finished brief to the configured channels.
type Deliverer interface {
	Deliver(ctx context.Context, brief *models.Brief) []models.DeliveryResult
}

type BriefParams struct {
	Symbols  []string
	Keywords []string
	Timezone string
	// Date labels the brief (YYYY-MM-DD); empty means today in Timezone.
	Date    string
	Deliver bool
	// Daily runs on the long-lived engine, so each day is compared with the
	// previous ones. Other runs analyze on a fresh engine and leave that
	// history untouched.
	Daily bool
}

// AnalyzerFactory builds an engine with empty history for one ad-hoc run.
type AnalyzerFactory func() service.SignalAnalyzer

type BriefOption func(*BriefUseCase)

func WithBriefLogger(l *applogger.Logger) BriefOption {
	return func(uc *BriefUseCase) {
		if l != nil {
			uc.log = l
		}
	}
}

func WithBriefMetrics(m repository.Metrics) BriefOption {
	return func(uc *BriefUseCase) {
		if m != nil {
			uc.metrics = m
		}
	}
}

func WithBriefClock(now func() time.Time) BriefOption {
	return func(uc *BriefUseCase) { uc.now = now }
}

func WithAnalyzerFactory(fn AnalyzerFactory) BriefOption {
	return func(uc *BriefUseCase) {
		if fn != nil {
			uc.newAnalyzer = fn
		}
	}
}

// WithBriefTimeout bounds the concurrent data fetch.
func WithBriefTimeout(d time.Duration) BriefOption {
	return func(uc *BriefUseCase) {
		if d > 0 {
			uc.timeout = d
		}
	}
}

// BriefUseCase runs fetch → analyze → render → deliver.
type BriefUseCase struct {
	provider    repository.MarketProvider
	daily       service.SignalAnalyzer
	newAnalyzer AnalyzerFactory
	writer      service.ReportWriter
	delivery    Deliverer

	log     *applogger.Logger
	metrics repository.Metrics
	now     func() time.Time
	timeout time.Duration
}

// NewBriefUseCase takes the engine that carries the daily series. Ad-hoc runs use
// engines from WithAnalyzerFactory, or a default signals engine.
func NewBriefUseCase(provider repository.MarketProvider, daily service.SignalAnalyzer, writer service.ReportWriter, delivery Deliverer, opts ...BriefOption) *BriefUseCase {
	uc := &BriefUseCase{
		provider:    provider,
		daily:       daily,
		newAnalyzer: func() service.SignalAnalyzer { return signals.New() },
		writer:      writer,
		delivery:    delivery,
		log:         applogger.Nop(),
		metrics:     repository.NopMetrics{},
		now:         time.Now,
		timeout:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(uc)
	}
	uc.log = uc.log.With(applogger.String("component", "usecase.brief"))
	return uc
}

func (uc *BriefUseCase) ProviderName() string { return uc.provider.Name() }

func (uc *BriefUseCase) Generate(ctx context.Context, p BriefParams) (*models.Brief, error) {
	start := uc.now()
	symbols := NormalizeSymbols(p.Symbols)
	keywords := NormalizeKeywords(p.Keywords)
	loc := uc.location(p.Timezone)

	date := p.Date
	if date == "" {
		date = start.In(loc).Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}

	if !uc.provider.IsAvailable() {
		return nil, ErrProviderUnavailable
	}

	spot, deriv, news := uc.fetch(ctx, symbols, keywords, true)
	if len(spot) == 0 || len(deriv) == 0 {
		uc.log.Error("missing market data", applogger.Int("spot", len(spot)), applogger.Int("derivatives", len(deriv)))
		return nil, ErrNoMarketData
	}

	analyzer := uc.daily
	if !p.Daily {
		analyzer = uc.newAnalyzer()
	}
	analysis, err := uc.analyze(analyzer, spot, deriv)
	if err != nil {
		return nil, err
	}

	markdown := uc.writer.Generate(service.ReportInput{
		Date:        date,
		Timezone:    loc.String(),
		Spot:        spot,
		Derivatives: deriv,
		Signals:     analysis.Signals,
		Regime:      analysis.Regime,
		News:        news,
	})

	brief := &models.Brief{
		Date:        date,
		Timezone:    loc.String(),
		Markdown:    markdown,
		Signals:     analysis.Signals,
		Regime:      analysis.Regime,
		Spot:        spot,
		Derivatives: deriv,
		News:        news,
		Provider:    uc.provider.Name(),
		GeneratedAt: uc.now().UTC(),
	}
	if sr, ok := uc.provider.(repository.SourceReporter); ok {
		brief.Sources = sr.LastSources()
	}

	if p.Deliver && uc.delivery != nil {
		brief.Deliveries = uc.delivery.Deliver(ctx, brief)
	}

	elapsed := uc.now().Sub(start)
	uc.metrics.RecordLatency("brief.generate", elapsed.Seconds())
	uc.log.Info("brief generated",
		applogger.String("date", date),
		applogger.Bool("daily", p.Daily),
		applogger.String("regime", string(analysis.Regime.Label)),
		applogger.Int("signals", len(analysis.Signals)),
		applogger.Int("news", len(news)),
		applogger.Duration("elapsed", elapsed))
	return brief, nil
}

// Analyze runs a fresh engine over current spot and derivatives snapshots.
func (uc *BriefUseCase) Analyze(ctx context.Context, symbols []string) (*models.Analysis, error) {
	if !uc.provider.IsAvailable() {
		return nil, ErrProviderUnavailable
	}
	spot, deriv, _ := uc.fetch(ctx, NormalizeSymbols(symbols), nil, false)
	return uc.analyze(uc.newAnalyzer(), spot, deriv)
}

func (uc *BriefUseCase) Spot(ctx context.Context, symbols []string) models.SpotSnapshot {
	return uc.provider.SpotSnapshot(ctx, NormalizeSymbols(symbols))
}

func (uc *BriefUseCase) Derivatives(ctx context.Context, symbols []string) models.DerivativesSnapshot {
	return uc.provider.DerivativesSnapshot(ctx, NormalizeSymbols(symbols))
}

func (uc *BriefUseCase) News(ctx context.Context, keywords []string) []models.NewsItem {
	return uc.provider.NewsSnapshot(ctx, NormalizeKeywords(keywords))
}

func (uc *BriefUseCase) analyze(a service.SignalAnalyzer, spot models.SpotSnapshot, deriv models.DerivativesSnapshot) (*models.Analysis, error) {
	analysis, err := a.Analyze(spot, deriv)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	return analysis, nil
}

// fetch pulls the snapshots concurrently under the use case timeout.
func (uc *BriefUseCase) fetch(ctx context.Context, symbols, keywords []string, withNews bool) (models.SpotSnapshot, models.DerivativesSnapshot, []models.NewsItem) {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	type item struct {
		name string
		val  interface{}
	}
	ch := make(chan item, 3)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		ch <- item{"spot", uc.provider.SpotSnapshot(ctx, symbols)}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		ch <- item{"derivatives", uc.provider.DerivativesSnapshot(ctx, symbols)}
	}()
	if withNews {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch <- item{"news", uc.provider.NewsSnapshot(ctx, keywords)}
		}()
	}

	go func() { wg.Wait(); close(ch) }()

	var (
		spot  models.SpotSnapshot
		deriv models.DerivativesSnapshot
		news  []models.NewsItem
	)
	for it := range ch {
		switch it.name {
		case "spot":
			spot = it.val.(models.SpotSnapshot)
		case "derivatives":
			deriv = it.val.(models.DerivativesSnapshot)
		case "news":
			news = it.val.([]models.NewsItem)
		}
	}
	if spot == nil {
		spot = models.SpotSnapshot{}
	}
	if deriv == nil {
		deriv = models.DerivativesSnapshot{}
	}
	return spot, deriv, news
}

func (uc *BriefUseCase) location(tz string) *time.Location {
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		uc.log.Warn("invalid timezone, using default", applogger.String("tz", tz),
			applogger.String("default", DefaultTimezone), applogger.Error(err))
		loc, _ = time.LoadLocation(DefaultTimezone)
	}
	return loc
}

// NormalizeSymbols applies models.NormalizeSymbols and falls back to BTC, ETH.
func NormalizeSymbols(symbols []string) []string {
	out := models.NormalizeSymbols(symbols)
	if len(out) == 0 {
		return append([]string(nil), defaultSymbols...)
	}
	return out
}

// NormalizeKeywords trims and drops blanks, falling back to bitcoin, ethereum.
func NormalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), defaultKeywords...)
	}
	return out
}
