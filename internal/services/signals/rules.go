package signals

import (
	"fmt"
	"math"
	"strings"

	"MorningBrief/internal/domain/models"
)

// evaluation carries one symbol's inputs through the rule chain. Baselines are read
// from history before any rule writes, so every rule in the pass compares against
// the previous call.
type evaluation struct {
	symbol   string
	spot     models.SpotQuote
	deriv    models.DerivativesQuote
	snapshot models.SpotSnapshot
	t        Thresholds

	last    Observation
	hasLast bool
	recent  []Observation

	// pending becomes the symbol's newest history slot once all rules ran.
	pending Observation
}

// oiChange is the fractional OI change against the previous observation.
func (ev *evaluation) oiChange() (float64, bool) {
	if !ev.hasLast {
		return 0, false
	}
	cur := ev.deriv.OpenInterestUSD
	prev, ok := ev.last.OpenInterestUSD()
	if !ok {
		prev = cur
	}
	if prev <= 0 {
		return 0, false
	}
	return (cur - prev) / prev, true
}

type rule struct {
	name      string
	rationale string
	eval      func(ev *evaluation) (models.Signal, bool)
}

// ruleChain is evaluated in this exact order for every symbol.
var ruleChain = []rule{
	{"funding_overheated", "Funding rate elevated", checkFundingOverheated},
	{"oi_surge", "Open interest surge", checkOISurge},
	{"volatility_spike", "High volatility", checkVolatilitySpike},
	{"volume_surge", "Volume surge", checkVolumeSurge},
	{"long_short_imbalance", "Long/short imbalance", checkLongShortRatio},
	{"liquidation_risk_alert", "Liquidation risk alert", checkPriceOISurge},
	{"panic_selling_risk", "Potential panic selling", checkPriceDropVolume},
	{"extreme_funding", "Extreme funding rate", checkExtremeFunding},
	{"high_liquidation_risk", "High liquidation risk", checkLiquidationRisk},
	{"momentum_divergence", "Momentum divergence", checkMomentumDivergence},
	{"btc_dominance_change", "BTC dominance shift", checkBTCDominance},
}

func signalID(symbol, name string) string {
	return symbol + "_" + name
}

func direction(v float64, pos, neg string) string {
	if v > 0 {
		return pos
	}
	return neg
}

// Rule 1.
func checkFundingOverheated(ev *evaluation) (models.Signal, bool) {
	rate := ev.deriv.FundingRate24h
	if math.Abs(rate) < ev.t.FundingOverheated {
		return models.Signal{}, false
	}
	level := models.LevelWarn
	if math.Abs(rate) >= ev.t.FundingExtreme {
		level = models.LevelCritical
	}
	return models.Signal{
		ID:        signalID(ev.symbol, "funding_overheated"),
		Level:     level,
		Title:     fmt.Sprintf("%s Funding Rate Overheated (%s bias)", ev.symbol, direction(rate, "long", "short")),
		Reason:    fmt.Sprintf("24h funding rate %.3f%% exceeds threshold", rate*100),
		Metric:    "funding_rate_24h",
		Threshold: models.Number(ev.t.FundingOverheated),
		Value:     models.Number(rate),
	}, true
}

// Rule 2. Always records the current OI; the first call for a symbol only seeds.
func checkOISurge(ev *evaluation) (models.Signal, bool) {
	ev.pending.SetOpenInterestUSD(ev.deriv.OpenInterestUSD)

	change, ok := ev.oiChange()
	if !ok {
		return models.Signal{}, false
	}

	var level models.Level
	var threshold float64
	switch {
	case change >= ev.t.OISurgeCritical:
		level, threshold = models.LevelCritical, ev.t.OISurgeCritical
	case change >= ev.t.OISurgeWarn:
		level, threshold = models.LevelWarn, ev.t.OISurgeWarn
	default:
		return models.Signal{}, false
	}

	return models.Signal{
		ID:        signalID(ev.symbol, "oi_surge"),
		Level:     level,
		Title:     fmt.Sprintf("%s Open Interest Surge", ev.symbol),
		Reason:    fmt.Sprintf("OI increased %.1f%% in 24h", change*100),
		Metric:    "open_interest_change_24h",
		Threshold: models.Number(threshold),
		Value:     models.Number(change),
	}, true
}

// Rule 3.
func checkVolatilitySpike(ev *evaluation) (models.Signal, bool) {
	absChange := math.Abs(ev.spot.Change24h)
	move := absChange / 100

	var level models.Level
	var threshold float64
	switch {
	case move >= ev.t.VolatilityCritical:
		level, threshold = models.LevelCritical, ev.t.VolatilityCritical
	case move >= ev.t.VolatilityWarn:
		level, threshold = models.LevelWarn, ev.t.VolatilityWarn
	default:
		return models.Signal{}, false
	}

	return models.Signal{
		ID:        signalID(ev.symbol, "volatility_spike"),
		Level:     level,
		Title:     fmt.Sprintf("%s Volatility Spike (%s)", ev.symbol, direction(ev.spot.Change24h, "up", "down")),
		Reason:    fmt.Sprintf("24h price change %.2f%% exceeds threshold", absChange),
		Metric:    "change_24h_abs",
		Threshold: models.Number(threshold * 100),
		Value:     models.Number(absChange),
	}, true
}

// Rule 4. z-score of volume/market cap against the recent window.
func checkVolumeSurge(ev *evaluation) (models.Signal, bool) {
	ratio := ev.spot.VolumeRatio()
	ev.pending.SetVolumeRatio(ratio)

	if len(ev.recent) == 0 {
		return models.Signal{}, false
	}

	samples := make([]float64, 0, len(ev.recent))
	for _, o := range ev.recent {
		v, ok := o.VolumeRatio()
		if !ok {
			v = ratio
		}
		samples = append(samples, v)
	}

	mean, std := meanStd(samples)
	if std <= 0 {
		return models.Signal{}, false
	}
	z := (ratio - mean) / std
	if z < ev.t.VolumeZScore {
		return models.Signal{}, false
	}

	return models.Signal{
		ID:        signalID(ev.symbol, "volume_surge"),
		Level:     models.LevelWarn,
		Title:     fmt.Sprintf("%s Volume Surge", ev.symbol),
		Reason:    fmt.Sprintf("Volume z-score %.2f indicates unusual activity", z),
		Metric:    "volume_zscore",
		Threshold: models.Number(ev.t.VolumeZScore),
		Value:     models.Number(z),
	}, true
}

// meanStd uses the population deviation; a single sample gets 10% of its mean.
func meanStd(xs []float64) (float64, float64) {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	if len(xs) == 1 {
		return mean, mean * 0.1
	}
	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(sq / float64(len(xs)))
}

// Rule 5.
func checkLongShortRatio(ev *evaluation) (models.Signal, bool) {
	ratio := ev.deriv.LongShortRatio
	extreme, warn := ev.t.LongShortExtreme, ev.t.LongShortWarn

	var level models.Level
	var threshold float64
	var dir string
	switch {
	case ratio >= extreme:
		level, threshold, dir = models.LevelWarn, extreme, "long"
	case ratio <= 1/extreme:
		level, threshold, dir = models.LevelWarn, 1/extreme, "short"
	case ratio >= warn:
		level, threshold, dir = models.LevelInfo, warn, "long"
	case ratio <= 1/warn:
		level, threshold, dir = models.LevelInfo, 1/warn, "short"
	default:
		return models.Signal{}, false
	}

	return models.Signal{
		ID:        signalID(ev.symbol, "long_short_imbalance"),
		Level:     level,
		Title:     fmt.Sprintf("%s Long/Short Imbalance (%s bias)", ev.symbol, dir),
		Reason:    fmt.Sprintf("Long/short ratio %.3f indicates %s bias", ratio, dir),
		Metric:    "long_short_ratio",
		Threshold: models.Number(threshold),
		Value:     models.Number(ratio),
	}, true
}

// Rule 6.
func checkPriceOISurge(ev *evaluation) (models.Signal, bool) {
	change := ev.spot.Change24h / 100
	oiChange, _ := ev.oiChange()

	if change < ev.t.PriceOIPrice || oiChange < ev.t.PriceOIOpenInterest {
		return models.Signal{}, false
	}

	return models.Signal{
		ID:     signalID(ev.symbol, "liquidation_risk_alert"),
		Level:  models.LevelCritical,
		Title:  fmt.Sprintf("%s Liquidation Risk Alert", ev.symbol),
		Reason: fmt.Sprintf("Price surge %.1f%% + OI surge %.1f%% indicates liquidation risk", change*100, oiChange*100),
		Metric: "price_oi_surge_combo",
		Threshold: models.Text(fmt.Sprintf("%.1f%% price, %.1f%% OI",
			ev.t.PriceOIPrice*100, ev.t.PriceOIOpenInterest*100)),
		Value: models.Text(fmt.Sprintf("%.1f%% price, %.1f%% OI", change*100, oiChange*100)),
	}, true
}

// Rule 7.
func checkPriceDropVolume(ev *evaluation) (models.Signal, bool) {
	change := ev.spot.Change24h / 100
	ratio := ev.spot.VolumeRatio()

	var volumeChange float64
	if ev.hasLast {
		prev, ok := ev.last.VolumeRatio()
		if !ok {
			prev = ratio
		}
		if prev > 0 {
			volumeChange = (ratio - prev) / prev
		}
	}

	if change > ev.t.PanicPriceDrop || volumeChange < ev.t.PanicVolumeChange {
		return models.Signal{}, false
	}

	return models.Signal{
		ID:     signalID(ev.symbol, "panic_selling_risk"),
		Level:  models.LevelWarn,
		Title:  fmt.Sprintf("%s Potential Panic Selling", ev.symbol),
		Reason: fmt.Sprintf("Price drop %.1f%% + volume surge %.1f%% indicates panic selling", change*100, volumeChange*100),
		Metric: "price_drop_volume_combo",
		Threshold: models.Text(fmt.Sprintf("%.1f%% price, %.1f%% volume",
			ev.t.PanicPriceDrop*100, ev.t.PanicVolumeChange*100)),
		Value: models.Text(fmt.Sprintf("%.1f%% price, %.1f%% volume", change*100, volumeChange*100)),
	}, true
}

// Rule 8. Single settlement period, independent of rule 1.
func checkExtremeFunding(ev *evaluation) (models.Signal, bool) {
	rate := ev.deriv.FundingRate
	if math.Abs(rate) < ev.t.FundingExtreme {
		return models.Signal{}, false
	}
	return models.Signal{
		ID:        signalID(ev.symbol, "extreme_funding"),
		Level:     models.LevelCritical,
		Title:     fmt.Sprintf("%s Extreme Funding Rate (%s)", ev.symbol, direction(rate, "long", "short")),
		Reason:    fmt.Sprintf("Funding rate %.3f%% per 8h is extremely high", rate*100),
		Metric:    "funding_rate",
		Threshold: models.Number(ev.t.FundingExtreme),
		Value:     models.Number(rate),
	}, true
}

// Rule 9.
func checkLiquidationRisk(ev *evaluation) (models.Signal, bool) {
	oi := ev.deriv.OpenInterestUSD
	if oi <= 0 {
		return models.Signal{}, false
	}
	ratio := ev.deriv.TotalLiquidations() / oi
	if ratio < ev.t.LiquidationRatio {
		return models.Signal{}, false
	}
	return models.Signal{
		ID:        signalID(ev.symbol, "high_liquidation_risk"),
		Level:     models.LevelWarn,
		Title:     fmt.Sprintf("%s High Liquidation Risk", ev.symbol),
		Reason:    fmt.Sprintf("24h liquidation %.1f%% of OI indicates high risk", ratio*100),
		Metric:    "liquidation_ratio",
		Threshold: models.Number(ev.t.LiquidationRatio),
		Value:     models.Number(ratio),
	}, true
}

// Rule 10. Price and derivatives point in opposite directions.
func checkMomentumDivergence(ev *evaluation) (models.Signal, bool) {
	change := ev.spot.Change24h
	funding := ev.deriv.FundingRate
	oiChange, _ := ev.oiChange()
	t := ev.t

	value := models.Text(fmt.Sprintf("%.1f%% price, %.3f%% funding, %.1f%% OI", change, funding*100, oiChange*100))
	sig := models.Signal{
		ID:     signalID(ev.symbol, "momentum_divergence"),
		Level:  models.LevelInfo,
		Title:  fmt.Sprintf("%s Momentum Divergence", ev.symbol),
		Metric: "momentum_divergence",
		Value:  value,
	}

	switch {
	case change > t.DivergencePrice && (funding < -t.DivergenceFunding || oiChange < -t.DivergenceOI):
		sig.Reason = fmt.Sprintf("Price up %.1f%% but derivatives show bearish signals", change)
		sig.Threshold = models.Text(fmt.Sprintf("Price up >%g%% with negative funding or OI decrease", t.DivergencePrice))
		return sig, true
	case change < -t.DivergencePrice && (funding > t.DivergenceFunding || oiChange > t.DivergenceOI):
		sig.Reason = fmt.Sprintf("Price down %.1f%% but derivatives show bullish signals", change)
		sig.Threshold = models.Text(fmt.Sprintf("Price down >%g%% with positive funding or OI increase", t.DivergencePrice))
		return sig, true
	}
	return models.Signal{}, false
}

// Rule 11. Only for BTC when the spot snapshot covers other symbols too.
func checkBTCDominance(ev *evaluation) (models.Signal, bool) {
	if ev.symbol != "BTC" || len(ev.snapshot) <= 1 {
		return models.Signal{}, false
	}
	total := ev.snapshot.TotalMarketCap()
	if total == 0 {
		return models.Signal{}, false
	}
	dominance := ev.spot.MarketCap / total
	ev.pending.SetBTCDominance(dominance)

	if !ev.hasLast {
		return models.Signal{}, false
	}
	prev, ok := ev.last.BTCDominance()
	if !ok {
		prev = dominance
	}
	change := dominance - prev
	if math.Abs(change) < ev.t.DominanceShift {
		return models.Signal{}, false
	}

	dir := direction(change, "increasing", "decreasing")
	return models.Signal{
		ID:        "btc_dominance_change",
		Level:     models.LevelInfo,
		Title:     "BTC Dominance " + strings.ToUpper(dir[:1]) + dir[1:],
		Reason:    fmt.Sprintf("BTC dominance changed %.2f%% to %.2f%%", change*100, dominance*100),
		Metric:    "btc_dominance_change",
		Threshold: models.Number(ev.t.DominanceShift),
		Value:     models.Number(change),
	}, true
}
