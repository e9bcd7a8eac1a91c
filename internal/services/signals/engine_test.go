package signals

import (
	"sync"
	"testing"
	"time"

	"MorningBrief/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 1, 2, 23, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	return New(WithClock(func() time.Time { return fixedNow }))
}

func calmSpot() models.SpotQuote {
	return models.SpotQuote{Price: 100, Change24h: 0, Volume24h: 2e9, MarketCap: 1e11}
}

func calmDeriv() models.DerivativesQuote {
	return models.DerivativesQuote{LongShortRatio: 1.0, OpenInterestUSD: 1e10}
}

func findSignal(signals []models.Signal, id string) (models.Signal, bool) {
	for _, s := range signals {
		if s.ID == id {
			return s, true
		}
	}
	return models.Signal{}, false
}

func analyze(t *testing.T, e *Engine, spot models.SpotSnapshot, deriv models.DerivativesSnapshot) *models.Analysis {
	t.Helper()
	res, err := e.Analyze(spot, deriv)
	require.NoError(t, err)
	return res
}

func TestAnalyzeRejectsNilSnapshots(t *testing.T) {
	e := newTestEngine()

	_, err := e.Analyze(nil, models.DerivativesSnapshot{})
	assert.ErrorIs(t, err, models.ErrInvalidSnapshot)

	_, err = e.Analyze(models.SpotSnapshot{}, nil)
	assert.ErrorIs(t, err, models.ErrInvalidSnapshot)
}

func TestAnalyzeEmptySnapshots(t *testing.T) {
	res := analyze(t, newTestEngine(), models.SpotSnapshot{}, models.DerivativesSnapshot{})

	assert.Empty(t, res.Signals)
	assert.Equal(t, models.Neutral, res.Regime.Label)
	assert.Equal(t, []string{"No significant signals detected"}, res.Regime.Rationale)
	assert.Equal(t, fixedNow, res.Timestamp)
}

func TestAnalyzeOverheatedMarket(t *testing.T) {
	spot := models.SpotSnapshot{"BTC": {Price: 45000, Change24h: 12.0, Volume24h: 2e10, MarketCap: 9e11}}
	deriv := models.DerivativesSnapshot{"BTC": {
		FundingRate:         0.06,
		FundingRate24h:      0.08,
		OpenInterestUSD:     1.5e11,
		LongShortRatio:      2.0,
		LongLiquidation24h:  2e8,
		ShortLiquidation24h: 1e8,
	}}

	res := analyze(t, newTestEngine(), spot, deriv)

	ids := make([]string, 0, len(res.Signals))
	for _, s := range res.Signals {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{
		"BTC_funding_overheated",
		"BTC_volatility_spike",
		"BTC_long_short_imbalance",
		"BTC_extreme_funding",
	}, ids)

	counts := models.CountByLevel(res.Signals)
	assert.Equal(t, 2, counts[models.LevelCritical])
	assert.Equal(t, models.RiskOff, res.Regime.Label)
	assert.Equal(t, []string{
		"BTC: Funding rate elevated",
		"BTC: High volatility",
		"BTC: Long/short imbalance",
		"BTC: Extreme funding rate",
	}, res.Regime.Rationale)

	s, _ := findSignal(res.Signals, "BTC_funding_overheated")
	assert.Equal(t, "BTC Funding Rate Overheated (long bias)", s.Title)
	assert.Equal(t, "24h funding rate 8.000% exceeds threshold", s.Reason)
	assert.Equal(t, models.Number(0.01), s.Threshold)
}

func TestFundingOverheatedLevels(t *testing.T) {
	cases := []struct {
		rate  float64
		fired bool
		level models.Level
		title string
	}{
		{0.0099, false, "", ""},
		{0.01, true, models.LevelWarn, "BTC Funding Rate Overheated (long bias)"},
		{-0.02, true, models.LevelWarn, "BTC Funding Rate Overheated (short bias)"},
		{0.049, true, models.LevelWarn, "BTC Funding Rate Overheated (long bias)"},
		{0.05, true, models.LevelCritical, "BTC Funding Rate Overheated (long bias)"},
		{-0.07, true, models.LevelCritical, "BTC Funding Rate Overheated (short bias)"},
	}
	for _, tc := range cases {
		d := calmDeriv()
		d.FundingRate24h = tc.rate
		res := analyze(t, newTestEngine(), models.SpotSnapshot{"BTC": calmSpot()}, models.DerivativesSnapshot{"BTC": d})

		s, ok := findSignal(res.Signals, "BTC_funding_overheated")
		assert.Equal(t, tc.fired, ok, "rate %v", tc.rate)
		if tc.fired {
			assert.Equal(t, tc.level, s.Level, "rate %v", tc.rate)
			assert.Equal(t, tc.title, s.Title)
		}
	}
}

func TestOISurgeNeedsHistory(t *testing.T) {
	e := newTestEngine()
	spot := models.SpotSnapshot{"ETH": calmSpot()}

	d := calmDeriv()
	first := analyze(t, e, spot, models.DerivativesSnapshot{"ETH": d})
	_, ok := findSignal(first.Signals, "ETH_oi_surge")
	assert.False(t, ok, "first call only seeds history")
	assert.Equal(t, 1, e.History().Len("ETH"))

	d.OpenInterestUSD = 1.4e10
	second := analyze(t, e, spot, models.DerivativesSnapshot{"ETH": d})
	s, ok := findSignal(second.Signals, "ETH_oi_surge")
	require.True(t, ok)
	assert.Equal(t, models.LevelCritical, s.Level)
	assert.Equal(t, "OI increased 40.0% in 24h", s.Reason)
	assert.Equal(t, models.Number(0.30), s.Threshold)

	d.OpenInterestUSD = 1.75e10
	third := analyze(t, e, spot, models.DerivativesSnapshot{"ETH": d})
	s, ok = findSignal(third.Signals, "ETH_oi_surge")
	require.True(t, ok)
	assert.Equal(t, models.LevelWarn, s.Level)
	assert.Equal(t, 3, e.History().Len("ETH"))
}

func TestPriceOISurgeSharesBaselineWithOISurge(t *testing.T) {
	e := newTestEngine()
	d := calmDeriv()
	analyze(t, e, models.SpotSnapshot{"BTC": calmSpot()}, models.DerivativesSnapshot{"BTC": d})

	s := calmSpot()
	s.Change24h = 6
	d.OpenInterestUSD = 1.25e10
	res := analyze(t, e, models.SpotSnapshot{"BTC": s}, models.DerivativesSnapshot{"BTC": d})

	oi, ok := findSignal(res.Signals, "BTC_oi_surge")
	require.True(t, ok)
	assert.Equal(t, models.LevelWarn, oi.Level)

	combo, ok := findSignal(res.Signals, "BTC_liquidation_risk_alert")
	require.True(t, ok, "rule 6 must see the same pre-update baseline as rule 2")
	assert.Equal(t, models.LevelCritical, combo.Level)
	assert.Equal(t, models.Text("6.0% price, 25.0% OI"), combo.Value)
	assert.Equal(t, models.Text("5.0% price, 20.0% OI"), combo.Threshold)
}

func TestVolumeSurge(t *testing.T) {
	e := newTestEngine()
	d := calmDeriv()
	analyze(t, e, models.SpotSnapshot{"SOL": calmSpot()}, models.DerivativesSnapshot{"SOL": d})

	s := calmSpot()
	s.Volume24h = 3e9 // ratio 0.03 vs single prior sample 0.02 with std 0.002
	res := analyze(t, e, models.SpotSnapshot{"SOL": s}, models.DerivativesSnapshot{"SOL": d})

	sig, ok := findSignal(res.Signals, "SOL_volume_surge")
	require.True(t, ok)
	assert.Equal(t, models.LevelWarn, sig.Level)
	assert.InDelta(t, 5.0, sig.Value.Number, 1e-9)
	assert.Equal(t, "Volume z-score 5.00 indicates unusual activity", sig.Reason)
}

func TestVolumeSurgeFlatHistoryDoesNotFire(t *testing.T) {
	e := newTestEngine()
	spot := models.SpotSnapshot{"SOL": calmSpot()}
	deriv := models.DerivativesSnapshot{"SOL": calmDeriv()}
	for i := 0; i < 6; i++ {
		res := analyze(t, e, spot, deriv)
		_, ok := findSignal(res.Signals, "SOL_volume_surge")
		assert.False(t, ok)
	}
}

func TestPanicSelling(t *testing.T) {
	e := newTestEngine()
	d := calmDeriv()
	analyze(t, e, models.SpotSnapshot{"ETH": calmSpot()}, models.DerivativesSnapshot{"ETH": d})

	s := calmSpot()
	s.Change24h = -6
	s.Volume24h = 3.5e9
	res := analyze(t, e, models.SpotSnapshot{"ETH": s}, models.DerivativesSnapshot{"ETH": d})

	sig, ok := findSignal(res.Signals, "ETH_panic_selling_risk")
	require.True(t, ok)
	assert.Equal(t, models.LevelWarn, sig.Level)
	assert.Equal(t, models.Text("-6.0% price, 75.0% volume"), sig.Value)
	assert.Equal(t, models.Text("-5.0% price, 50.0% volume"), sig.Threshold)
}

func TestLongShortRatio(t *testing.T) {
	cases := []struct {
		ratio float64
		fired bool
		level models.Level
		dir   string
	}{
		{1.0, false, "", ""},
		{1.5, true, models.LevelWarn, "long"},
		{0.6, true, models.LevelWarn, "short"},
		{1.3, true, models.LevelInfo, "long"},
		{0.76, true, models.LevelInfo, "short"},
		{1.29, false, "", ""},
	}
	for _, tc := range cases {
		d := calmDeriv()
		d.LongShortRatio = tc.ratio
		res := analyze(t, newTestEngine(), models.SpotSnapshot{"BTC": calmSpot()}, models.DerivativesSnapshot{"BTC": d})

		s, ok := findSignal(res.Signals, "BTC_long_short_imbalance")
		require.Equal(t, tc.fired, ok, "ratio %v", tc.ratio)
		if tc.fired {
			assert.Equal(t, tc.level, s.Level)
			assert.Equal(t, "BTC Long/Short Imbalance ("+tc.dir+" bias)", s.Title)
		}
	}
}

func TestVolatilitySpike(t *testing.T) {
	s := calmSpot()
	s.Change24h = -16
	res := analyze(t, newTestEngine(), models.SpotSnapshot{"BTC": s}, models.DerivativesSnapshot{"BTC": calmDeriv()})

	sig, ok := findSignal(res.Signals, "BTC_volatility_spike")
	require.True(t, ok)
	assert.Equal(t, models.LevelCritical, sig.Level)
	assert.Equal(t, "BTC Volatility Spike (down)", sig.Title)
	assert.InDelta(t, 15.0, sig.Threshold.Number, 1e-9)
	assert.Equal(t, 16.0, sig.Value.Number)
}

func TestLiquidationRisk(t *testing.T) {
	d := calmDeriv()
	d.OpenInterestUSD = 1e9
	d.LongLiquidation24h = 6e7
	d.ShortLiquidation24h = 5e7
	res := analyze(t, newTestEngine(), models.SpotSnapshot{"BTC": calmSpot()}, models.DerivativesSnapshot{"BTC": d})

	sig, ok := findSignal(res.Signals, "BTC_high_liquidation_risk")
	require.True(t, ok)
	assert.InDelta(t, 0.11, sig.Value.Number, 1e-9)

	d.OpenInterestUSD = 0
	res = analyze(t, newTestEngine(), models.SpotSnapshot{"BTC": calmSpot()}, models.DerivativesSnapshot{"BTC": d})
	_, ok = findSignal(res.Signals, "BTC_high_liquidation_risk")
	assert.False(t, ok)
}

func TestMomentumDivergence(t *testing.T) {
	s := calmSpot()
	s.Change24h = 6
	d := calmDeriv()
	d.FundingRate = -0.001
	res := analyze(t, newTestEngine(), models.SpotSnapshot{"BTC": s}, models.DerivativesSnapshot{"BTC": d})

	sig, ok := findSignal(res.Signals, "BTC_momentum_divergence")
	require.True(t, ok)
	assert.Equal(t, models.LevelInfo, sig.Level)
	assert.Equal(t, models.Text("Price up >5% with negative funding or OI decrease"), sig.Threshold)
	assert.Equal(t, models.Text("6.0% price, -0.100% funding, 0.0% OI"), sig.Value)

	s.Change24h = -7
	d.FundingRate = 0.001
	res = analyze(t, newTestEngine(), models.SpotSnapshot{"BTC": s}, models.DerivativesSnapshot{"BTC": d})
	sig, ok = findSignal(res.Signals, "BTC_momentum_divergence")
	require.True(t, ok)
	assert.Equal(t, "Price down -7.0% but derivatives show bullish signals", sig.Reason)
}

func TestBTCDominanceShift(t *testing.T) {
	e := newTestEngine()
	deriv := models.DerivativesSnapshot{"BTC": calmDeriv(), "ETH": calmDeriv()}

	btc, eth := calmSpot(), calmSpot()
	btc.MarketCap, eth.MarketCap = 6e11, 4e11
	first := analyze(t, e, models.SpotSnapshot{"BTC": btc, "ETH": eth}, deriv)
	_, ok := findSignal(first.Signals, "btc_dominance_change")
	assert.False(t, ok)

	btc.MarketCap, eth.MarketCap = 7e11, 3e11
	second := analyze(t, e, models.SpotSnapshot{"BTC": btc, "ETH": eth}, deriv)
	sig, ok := findSignal(second.Signals, "btc_dominance_change")
	require.True(t, ok)
	assert.Equal(t, "BTC Dominance Increasing", sig.Title)
	assert.InDelta(t, 0.1, sig.Value.Number, 1e-9)
	assert.Contains(t, second.Regime.Rationale, "BTC: BTC dominance shift")
}

func TestBTCDominanceSkippedForSingleSymbol(t *testing.T) {
	e := newTestEngine()
	btc := calmSpot()
	for i := 0; i < 3; i++ {
		btc.MarketCap *= 2
		res := analyze(t, e, models.SpotSnapshot{"BTC": btc}, models.DerivativesSnapshot{"BTC": calmDeriv()})
		_, ok := findSignal(res.Signals, "btc_dominance_change")
		assert.False(t, ok)
	}
}

func TestSymbolOnlyInSpotIsSkipped(t *testing.T) {
	e := newTestEngine()
	hot := calmSpot()
	hot.Change24h = 30

	res := analyze(t, e,
		models.SpotSnapshot{"BTC": hot, "ETH": calmSpot()},
		models.DerivativesSnapshot{"ETH": calmDeriv()},
	)

	for _, s := range res.Signals {
		assert.NotContains(t, s.ID, "BTC_")
	}
	for _, r := range res.Regime.Rationale {
		assert.NotContains(t, r, "BTC:")
	}
	assert.Zero(t, e.History().Len("BTC"))
	assert.Equal(t, 1, e.History().Len("ETH"))
}

func TestColdEnginesAgree(t *testing.T) {
	spot := models.SpotSnapshot{"BTC": {Price: 45000, Change24h: -11, Volume24h: 3e10, MarketCap: 9e11}}
	deriv := models.DerivativesSnapshot{"BTC": {FundingRate: 0.002, FundingRate24h: 0.02, OpenInterestUSD: 2e10, LongShortRatio: 0.7}}

	a := analyze(t, newTestEngine(), spot, deriv)
	b := analyze(t, newTestEngine(), spot, deriv)
	assert.Equal(t, a.Signals, b.Signals)
	assert.Equal(t, a.Regime, b.Regime)
}

func TestRationaleOrderFollowsSortedSymbolsAndRules(t *testing.T) {
	hot := calmDeriv()
	hot.FundingRate24h = 0.02
	spot := models.SpotSnapshot{"SOL": calmSpot(), "ADA": calmSpot()}
	deriv := models.DerivativesSnapshot{"SOL": hot, "ADA": hot}

	res := analyze(t, newTestEngine(), spot, deriv)
	assert.Equal(t, []string{"ADA: Funding rate elevated", "SOL: Funding rate elevated"}, res.Regime.Rationale)
	assert.Equal(t, models.Neutral, res.Regime.Label)
}

func TestAnalyzeConcurrentCallsAreSerialized(t *testing.T) {
	e := newTestEngine()
	spot := models.SpotSnapshot{"BTC": calmSpot(), "ETH": calmSpot()}
	deriv := models.DerivativesSnapshot{"BTC": calmDeriv(), "ETH": calmDeriv()}

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Analyze(spot, deriv)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, HistoryCapacity, e.History().Len("BTC"))
	assert.Equal(t, HistoryCapacity, e.History().Len("ETH"))
}
