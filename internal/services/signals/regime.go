package signals

import "MorningBrief/internal/domain/models"

const (
	maxRationale      = 10
	noSignalRationale = "No significant signals detected"
)

// ClassifyRegime derives the regime from signal counts only. An empty list is
// neutral with a single explanatory rationale.
func ClassifyRegime(signals []models.Signal, rationale []string) models.Regime {
	if len(signals) == 0 {
		return models.Regime{Label: models.Neutral, Rationale: []string{noSignalRationale}}
	}

	counts := models.CountByLevel(signals)
	critical, warn := counts[models.LevelCritical], counts[models.LevelWarn]

	var label models.RegimeLabel
	switch {
	case critical >= 2:
		label = models.RiskOff
	case critical >= 1 || warn >= 3:
		label = models.RiskOff
	case warn >= 1:
		label = models.Neutral
	default:
		label = models.RiskOn
	}

	if len(rationale) > maxRationale {
		rationale = rationale[:maxRationale]
	}
	out := make([]string, len(rationale))
	copy(out, rationale)

	return models.Regime{Label: label, Rationale: out}
}
