// Package signals evaluates rule-based market signals and classifies the regime.
//
// An Engine keeps a short rolling history per symbol, so results depend on prior
// calls. Give each independent report session its own Engine, or share one and
// let its mutex serialize Analyze.
package signals

import (
	"sync"
	"time"

	"MorningBrief/internal/domain/models"
	"MorningBrief/internal/domain/repository"
	applogger "MorningBrief/pkg/logger"
)

type Option func(*Engine)

func WithThresholds(t Thresholds) Option {
	return func(e *Engine) { e.thresholds = t }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(l *applogger.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithMetrics(m repository.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

type Engine struct {
	mu         sync.Mutex
	history    *History
	thresholds Thresholds
	now        func() time.Time
	logger     *applogger.Logger
	metrics    repository.Metrics
}

func New(opts ...Option) *Engine {
	e := &Engine{
		history:    NewHistory(),
		thresholds: DefaultThresholds(),
		now:        time.Now,
		logger:     applogger.Nop(),
		metrics:    repository.NopMetrics{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// History exposes the engine's rolling state for inspection.
func (e *Engine) History() *History {
	return e.history
}

// Analyze runs every rule for each symbol present in both snapshots, in sorted
// symbol order, and classifies the regime. Calls are serialized.
func (e *Engine) Analyze(spot models.SpotSnapshot, deriv models.DerivativesSnapshot) (*models.Analysis, error) {
	if spot == nil || deriv == nil {
		return nil, models.ErrInvalidSnapshot
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	signals := make([]models.Signal, 0)
	rationale := make([]string, 0)

	for _, symbol := range spot.Symbols() {
		dq, ok := deriv[symbol]
		if !ok {
			continue
		}
		ev := e.begin(symbol, spot, dq)

		for _, r := range ruleChain {
			sig, fired := r.eval(ev)
			if !fired {
				continue
			}
			signals = append(signals, sig)
			rationale = append(rationale, symbol+": "+r.rationale)
			e.logger.Debug("signal fired",
				applogger.String("symbol", symbol),
				applogger.String("rule", r.name),
				applogger.String("level", string(sig.Level)),
			)
		}

		e.history.Append(symbol, ev.pending)
	}

	regime := ClassifyRegime(signals, rationale)

	for _, s := range signals {
		e.metrics.RecordSignal(string(s.Level))
	}
	e.metrics.RecordRegime(string(regime.Label))
	e.metrics.RecordLatency("signals.analyze", time.Since(start).Seconds())

	return &models.Analysis{
		Signals:   signals,
		Regime:    regime,
		Timestamp: e.now().UTC(),
	}, nil
}

func (e *Engine) begin(symbol string, spot models.SpotSnapshot, dq models.DerivativesQuote) *evaluation {
	ev := &evaluation{
		symbol:   symbol,
		spot:     spot[symbol],
		deriv:    dq,
		snapshot: spot,
		t:        e.thresholds,
		recent:   e.history.Tail(symbol, e.thresholds.VolumeWindow),
	}
	ev.last, ev.hasLast = e.history.Last(symbol)
	ev.pending.ObservedAt = e.now().UTC()
	return ev
}
