package repository

import (
	"context"

	"MorningBrief/internal/domain/models"
)

// MarketProvider supplies spot, derivatives and news snapshots. Unknown symbols or
// keywords are omitted from results; the data methods never fail outright.
type MarketProvider interface {
	SpotSnapshot(ctx context.Context, symbols []string) models.SpotSnapshot
	DerivativesSnapshot(ctx context.Context, symbols []string) models.DerivativesSnapshot
	NewsSnapshot(ctx context.Context, keywords []string) []models.NewsItem
	IsAvailable() bool
	Name() string
}

// SourceReporter is implemented by providers that can tell which upstream served
// the most recent fetch of each data kind.
type SourceReporter interface {
	LastSources() map[string]string
}

type Metrics interface {
	RecordFetch(source, kind, outcome string)
	RecordSignal(level string)
	RecordRegime(label string)
	RecordDelivery(channel, outcome string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) RecordFetch(string, string, string) {}
func (NopMetrics) RecordSignal(string)                {}
func (NopMetrics) RecordRegime(string)                {}
func (NopMetrics) RecordDelivery(string, string)      {}
func (NopMetrics) RecordError(string)                 {}
func (NopMetrics) RecordLatency(string, float64)      {}
