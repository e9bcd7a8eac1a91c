package models

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// ErrInvalidSnapshot is returned when the engine receives a nil snapshot.
var ErrInvalidSnapshot = errors.New("invalid snapshot: nil mapping")

type Level string

const (
	LevelCritical Level = "critical"
	LevelWarn     Level = "warn"
	LevelInfo     Level = "info"
)

// Rank orders levels for prioritisation; lower is more severe.
func (l Level) Rank() int {
	switch l {
	case LevelCritical:
		return 0
	case LevelWarn:
		return 1
	default:
		return 2
	}
}

// SignalValue is either a number or, for combination rules, a description.
type SignalValue struct {
	Number float64
	Text   string
	IsText bool
}

func Number(v float64) SignalValue { return SignalValue{Number: v} }

func Text(s string) SignalValue { return SignalValue{Text: s, IsText: true} }

func (v SignalValue) String() string {
	if v.IsText {
		return v.Text
	}
	return strconv.FormatFloat(v.Number, 'f', -1, 64)
}

func (v SignalValue) MarshalJSON() ([]byte, error) {
	if v.IsText {
		return json.Marshal(v.Text)
	}
	return json.Marshal(v.Number)
}

func (v *SignalValue) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*v = Text(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*v = Number(f)
	return nil
}

type Signal struct {
	ID        string      `json:"id"`
	Level     Level       `json:"level"`
	Title     string      `json:"title"`
	Reason    string      `json:"reason"`
	Metric    string      `json:"metric"`
	Threshold SignalValue `json:"threshold"`
	Value     SignalValue `json:"value"`
}

type RegimeLabel string

const (
	RiskOn  RegimeLabel = "risk_on"
	Neutral RegimeLabel = "neutral"
	RiskOff RegimeLabel = "risk_off"
)

type Regime struct {
	Label     RegimeLabel `json:"label"`
	Rationale []string    `json:"rationale"`
}

// Analysis is the result of one engine pass.
type Analysis struct {
	Signals   []Signal  `json:"signals"`
	Regime    Regime    `json:"regime"`
	Timestamp time.Time `json:"timestamp"`
}

// CountByLevel returns how many signals carry each level.
func CountByLevel(signals []Signal) map[Level]int {
	out := map[Level]int{LevelCritical: 0, LevelWarn: 0, LevelInfo: 0}
	for _, s := range signals {
		out[s.Level]++
	}
	return out
}
