package report

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"MorningBrief/internal/domain/models"
	"MorningBrief/internal/domain/service"

	"github.com/shopspring/decimal"
)

const (
	maxRegimeFactors = 5
	maxSignals       = 5
	maxNews          = 5
	maxTriggers      = 3

	disclaimer = "This report is for research purposes only and does not constitute " +
		"investment advice. The information provided is based on market data " +
		"and technical analysis, and should not be used as the sole basis " +
		"for investment decisions. Always conduct your own research and " +
		"consult with a qualified financial advisor before making any " +
		"investment decisions."
)

type Option func(*Writer)

func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// Writer renders the markdown morning brief.
type Writer struct {
	now func() time.Time
}

func NewWriter(opts ...Option) *Writer {
	w := &Writer{now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Writer) Generate(in service.ReportInput) string {
	var b strings.Builder
	line := func(s string) {
		b.WriteString(s)
		b.WriteByte('\n')
	}
	section := func(header, body string) {
		line(header)
		line("")
		line(body)
		line("")
	}

	line(fmt.Sprintf("# Crypto Morning Brief — %s (%s)", in.Date, TimezoneLabel(in.Timezone, w.now())))
	line("")
	section("## 📊 Market Summary", marketSummary(in.Spot))
	section("## 🎯 Market Regime", regimeSection(in.Regime))
	section("## ⚠️ Key Signals", signalsSection(in.Signals))
	section("## 📈 Key Metrics", metricsSection(in.Spot, in.Derivatives))
	section("## 📰 News & Events", newsSection(in.News))
	section("## 🔮 Market Scenarios", scenariosSection(in.Spot, in.Derivatives, in.Signals))
	section("## ⚠️ Disclaimer", disclaimer)
	line("---")
	line("")
	b.WriteString(fmt.Sprintf("*Report generated at %s*", w.now().UTC().Format("2006-01-02 15:04:05 UTC")))

	return b.String()
}

// TimezoneLabel is the zone abbreviation at t, e.g. "KST", or the name itself when
// the zone cannot be loaded.
func TimezoneLabel(tz string, t time.Time) string {
	if tz == "" {
		return "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return tz
	}
	return t.In(loc).Format("MST")
}

func marketSummary(spot models.SpotSnapshot) string {
	btc, eth := spot["BTC"], spot["ETH"]

	s := fmt.Sprintf("**BTC** %s $%s (%+.2f%%) | **ETH** %s $%s (%+.2f%%)",
		trendEmoji(btc.Change24h), Money(btc.Price, 0), btc.Change24h,
		trendEmoji(eth.Change24h), Money(eth.Price, 0), eth.Change24h,
	)
	switch {
	case btc.Change24h > 0 && eth.Change24h > 0:
		return s + " — Market showing bullish momentum"
	case btc.Change24h < 0 && eth.Change24h < 0:
		return s + " — Market under selling pressure"
	default:
		return s + " — Mixed signals in the market"
	}
}

func trendEmoji(change float64) string {
	if change >= 0 {
		return "📈"
	}
	return "📉"
}

func regimeSection(r models.Regime) string {
	var emoji, name, desc string
	switch r.Label {
	case models.RiskOn:
		emoji, name, desc = "🟢", "Risk-On", "Market participants are showing risk appetite"
	case models.RiskOff:
		emoji, name, desc = "🔴", "Risk-Off", "Market participants are risk-averse"
	default:
		emoji, name, desc = "🟡", "Neutral", "Market is in a balanced state"
	}

	lines := []string{fmt.Sprintf("**%s %s** — %s", emoji, name, desc), ""}
	if len(r.Rationale) == 0 {
		return strings.Join(append(lines, "No significant factors identified."), "\n")
	}
	lines = append(lines, "**Key Factors:**")
	for i, item := range r.Rationale {
		if i == maxRegimeFactors {
			break
		}
		lines = append(lines, "- "+item)
	}
	return strings.Join(lines, "\n")
}

// TopSignals orders by severity, keeping engine order within a level, and keeps n.
func TopSignals(signals []models.Signal, n int) []models.Signal {
	out := make([]models.Signal, len(signals))
	copy(out, signals)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Level.Rank() < out[j].Level.Rank()
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func signalsSection(signals []models.Signal) string {
	if len(signals) == 0 {
		return "No significant signals detected at this time."
	}
	var lines []string
	for _, s := range TopSignals(signals, maxSignals) {
		lines = append(lines, fmt.Sprintf("**%s %s**", levelEmoji(s.Level), s.Title), "- "+s.Reason, "")
	}
	return strings.Join(lines, "\n")
}

func levelEmoji(l models.Level) string {
	switch l {
	case models.LevelCritical:
		return "🔴"
	case models.LevelWarn:
		return "🟡"
	case models.LevelInfo:
		return "🔵"
	default:
		return "⚪"
	}
}

// metricOrder puts BTC and ETH first, then the rest alphabetically.
func metricOrder(spot models.SpotSnapshot) []string {
	out := make([]string, 0, len(spot))
	for _, s := range []string{"BTC", "ETH"} {
		if _, ok := spot[s]; ok {
			out = append(out, s)
		}
	}
	for _, s := range spot.Symbols() {
		if s != "BTC" && s != "ETH" {
			out = append(out, s)
		}
	}
	return out
}

func metricsSection(spot models.SpotSnapshot, deriv models.DerivativesSnapshot) string {
	if len(spot) == 0 {
		return "No market data available."
	}
	var lines []string
	for _, symbol := range metricOrder(spot) {
		q := spot[symbol]
		lines = append(lines,
			"### "+symbol,
			"",
			"| Metric | Value |",
			"|--------|-------|",
			fmt.Sprintf("| Price | $%s |", Money(q.Price, 2)),
			fmt.Sprintf("| 24h Change | %+.2f%% |", q.Change24h),
			fmt.Sprintf("| 24h Volume | $%s |", Money(q.Volume24h, 0)),
			fmt.Sprintf("| Market Cap | $%s |", Money(q.MarketCap, 0)),
			fmt.Sprintf("| 24h High | $%s |", Money(q.High24h, 2)),
			fmt.Sprintf("| 24h Low | $%s |", Money(q.Low24h, 2)),
		)
		if d, ok := deriv[symbol]; ok {
			lines = append(lines,
				fmt.Sprintf("| Funding Rate (8h) | %.4f%% |", d.FundingRate*100),
				fmt.Sprintf("| Funding Rate (24h) | %.4f%% |", d.FundingRate24h*100),
				fmt.Sprintf("| Open Interest | $%s |", Money(d.OpenInterestUSD, 0)),
				fmt.Sprintf("| Long/Short Ratio | %.3f |", d.LongShortRatio),
				fmt.Sprintf("| Long Liquidation (24h) | $%s |", Money(d.LongLiquidation24h, 0)),
				fmt.Sprintf("| Short Liquidation (24h) | $%s |", Money(d.ShortLiquidation24h, 0)),
			)
		}
		lines = append(lines, "")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

func newsSection(news []models.NewsItem) string {
	if len(news) == 0 {
		return "No significant news or events at this time."
	}
	var lines []string
	for i, n := range news {
		if i == maxNews {
			break
		}
		lines = append(lines, fmt.Sprintf("**%s %s**", sentimentEmoji(n.Sentiment), n.Title))
		source := n.Source
		if source == "" {
			source = "Unknown"
		}
		lines = append(lines, "- Source: "+source)
		if !n.PublishedAt.IsZero() {
			lines = append(lines, "- Published: "+n.PublishedAt.UTC().Format("2006-01-02 15:04 UTC"))
		}
		if n.URL != "" {
			lines = append(lines, fmt.Sprintf("- [Read more](%s)", n.URL))
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func sentimentEmoji(s models.Sentiment) string {
	switch s {
	case models.SentimentPositive:
		return "🟢"
	case models.SentimentNegative:
		return "🔴"
	case models.SentimentNeutral:
		return "🟡"
	default:
		return "⚪"
	}
}

func scenariosSection(spot models.SpotSnapshot, deriv models.DerivativesSnapshot, signals []models.Signal) string {
	btcChange, ethChange := spot["BTC"].Change24h, spot["ETH"].Change24h
	funding := deriv["BTC"].FundingRate
	lsRatio := 1.0
	if d, ok := deriv["BTC"]; ok {
		lsRatio = d.LongShortRatio
	}
	counts := models.CountByLevel(signals)
	critical, warn := counts[models.LevelCritical], counts[models.LevelWarn]

	var lines []string
	block := func(header string, triggers []string, otherwise string) {
		if len(triggers) == 0 {
			triggers = []string{otherwise}
		}
		if len(triggers) > maxTriggers {
			triggers = triggers[:maxTriggers]
		}
		lines = append(lines, header)
		for _, t := range triggers {
			lines = append(lines, "- "+t)
		}
	}

	var up []string
	if btcChange > 0 && ethChange > 0 {
		up = append(up, "Sustained positive momentum in both BTC and ETH")
	}
	if funding < 0.001 {
		up = append(up, "Funding rate remains low (no long squeeze risk)")
	}
	if lsRatio < 1.2 {
		up = append(up, "Long/short ratio not overly extended")
	}
	if warn == 0 && critical == 0 {
		up = append(up, "No critical warning signals present")
	}
	block("### 📈 Upside Scenario", up, "Break above key resistance levels with volume confirmation")
	lines = append(lines, "")

	var side []string
	if math.Abs(btcChange) < 3 && math.Abs(ethChange) < 3 {
		side = append(side, "Low volatility and range-bound price action")
	}
	if funding > -0.001 && funding < 0.001 {
		side = append(side, "Funding rate near neutral (equilibrium)")
	}
	if warn > 0 && critical == 0 {
		side = append(side, "Some warning signals but no critical issues")
	}
	block("### ➡️ Sideways Scenario", side, "Price consolidates between support and resistance levels")
	lines = append(lines, "")

	var down []string
	if critical >= 1 {
		down = append(down, "Critical signals detected (e.g., extreme funding, liquidation risk)")
	}
	if btcChange < -5 || ethChange < -5 {
		down = append(down, "Sharp price decline with increased selling pressure")
	}
	if funding > 0.01 {
		down = append(down, "High funding rate indicates long squeeze risk")
	}
	if lsRatio > 1.5 {
		down = append(down, "Extreme long/short ratio suggests over-leveraged longs")
	}
	block("### 📉 Downside Scenario", down, "Break below key support levels with volume confirmation")

	return strings.Join(lines, "\n")
}

// Money formats v with thousands separators and a fixed number of decimals.
func Money(v float64, places int32) string {
	s := decimal.NewFromFloat(v).StringFixed(places)

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + frac
}
