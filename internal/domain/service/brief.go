package service

import (
	"context"

	"MorningBrief/internal/domain/models"
)

// SignalAnalyzer turns one pair of snapshots into signals and a regime.
type SignalAnalyzer interface {
	Analyze(spot models.SpotSnapshot, deriv models.DerivativesSnapshot) (*models.Analysis, error)
}

// Notifier delivers a finished brief to one channel.
type Notifier interface {
	Name() string
	Enabled() bool
	Send(ctx context.Context, brief *models.Brief) error
}

// ReportWriter renders a brief's markdown body.
type ReportWriter interface {
	Generate(in ReportInput) string
}

type ReportInput struct {
	Date        string
	Timezone    string
	Spot        models.SpotSnapshot
	Derivatives models.DerivativesSnapshot
	Signals     []models.Signal
	Regime      models.Regime
	News        []models.NewsItem
}
