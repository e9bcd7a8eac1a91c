package providers

import (
	"strings"

	"MorningBrief/internal/domain/models"
)

// SentimentScorer tags headlines with a lexicon-weighted sentiment.
type SentimentScorer struct {
	positive map[string]float64
	negative map[string]float64
	band     float64
}

func NewSentimentScorer() *SentimentScorer {
	return &SentimentScorer{
		positive: map[string]float64{
			"surge": 1.0, "surges": 1.0, "soar": 1.0, "soars": 1.0, "skyrocket": 1.0,
			"bullish": 0.95, "rally": 0.95, "rallies": 0.95, "breakout": 0.9, "record": 0.9,
			"approval": 0.85, "approved": 0.85, "approves": 0.85, "adoption": 0.85, "upgrade": 0.8,
			"gain": 0.8, "gains": 0.8, "jump": 0.8, "jumps": 0.8, "strong": 0.8, "boost": 0.8,
			"inflows": 0.8, "highs": 0.75, "rising": 0.75, "climb": 0.75, "climbs": 0.75,
			"recover": 0.7, "recovers": 0.7, "rebound": 0.7, "rebounds": 0.7, "partnership": 0.7,
			"launch": 0.65, "launches": 0.65, "rise": 0.65, "rises": 0.65, "higher": 0.65,
			"institutional": 0.6, "support": 0.6, "accumulate": 0.6, "accumulation": 0.6,
			"optimistic": 0.85, "positive": 0.65, "growth": 0.8, "stable": 0.5,
		},
		negative: map[string]float64{
			"crash": 1.0, "crashes": 1.0, "plunge": 1.0, "plunges": 1.0, "collapse": 1.0,
			"hack": 1.0, "hacked": 1.0, "exploit": 0.95, "exploited": 0.95, "bankruptcy": 0.95,
			"plummet": 0.95, "plummets": 0.95, "tumble": 0.95, "tumbles": 0.95, "panic": 0.9,
			"liquidations": 0.85, "liquidated": 0.85, "bearish": 0.85, "scrutiny": 0.85,
			"lawsuit": 0.85, "ban": 0.85, "bans": 0.85, "crackdown": 0.85, "fraud": 0.9,
			"outflows": 0.8, "decline": 0.8, "declines": 0.8, "slump": 0.8, "loss": 0.8, "losses": 0.8,
			"drop": 0.75, "drops": 0.75, "fall": 0.75, "falls": 0.75, "weak": 0.75,
			"concern": 0.7, "concerns": 0.7, "fears": 0.7, "warning": 0.85, "delay": 0.6, "delays": 0.6,
			"risk": 0.65, "risks": 0.65, "volatile": 0.65, "uncertainty": 0.65, "pressure": 0.6,
			"dip": 0.55, "dips": 0.55, "selloff": 0.85, "sell-off": 0.85, "correction": 0.5,
		},
		band: 0.1,
	}
}

// Score returns the mean weight of matched words in text, in [-1, 1].
func (s *SentimentScorer) Score(text string) float64 {
	var score float64
	var matches int
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?\"'()[]{}:;")
		if v, ok := s.positive[word]; ok {
			score += v
			matches++
		} else if v, ok := s.negative[word]; ok {
			score -= v
			matches++
		}
	}
	if matches == 0 {
		return 0
	}
	return score / float64(matches)
}

func (s *SentimentScorer) Classify(text string) models.Sentiment {
	score := s.Score(text)
	switch {
	case score > s.band:
		return models.SentimentPositive
	case score < -s.band:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}
