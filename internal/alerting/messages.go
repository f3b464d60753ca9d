package alerting

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"crypto-anomaly-monitor/internal/records"
	"crypto-anomaly-monitor/internal/regime"
	"crypto-anomaly-monitor/internal/stats"
)

// MarketContext carries optional technical context appended to alert texts.
type MarketContext struct {
	RSI       float64
	HasRSI    bool
	VWAP      float64
	HasVWAP   bool
	Momentum  stats.Momentum
	Trend     stats.TrendScore
	Pattern   regime.Pattern
	Sentiment string // pre-rendered sentiment summary, empty when unavailable
}

func (c MarketContext) render(b *strings.Builder) {
	if c.HasRSI {
		fmt.Fprintf(b, "RSI: %.1f\n", c.RSI)
	}
	if c.HasVWAP {
		fmt.Fprintf(b, "VWAP: $%.2f\n", c.VWAP)
	}
	if c.Momentum.Direction != "" {
		fmt.Fprintf(b, "Momentum: %s (%s, %+.2f%%)\n", c.Momentum.Direction, c.Momentum.Strength, c.Momentum.RateOfChangePct)
	}
	if c.Trend.Direction != "" {
		fmt.Fprintf(b, "Trend: %s (%.0f%% up-moves)\n", c.Trend.Direction, c.Trend.PositivePercentage)
	}
	if c.Pattern.Kind != "" && c.Pattern.Kind != regime.PatternNeutral {
		fmt.Fprintf(b, "Pattern: %s\n", c.Pattern.Kind)
	}
	if c.Sentiment != "" {
		b.WriteString(c.Sentiment)
	}
}

// RenderAnomaly formats a fired evaluator decision.
func RenderAnomaly(symbol, kind string, obs Observation, windowHours int, mctx MarketContext) string {
	b := &strings.Builder{}
	switch kind {
	case AlertExtremeEvent:
		fmt.Fprintf(b, "*EXTREME EVENT %s*\n", symbol)
	case AlertPreMovement:
		fmt.Fprintf(b, "*VOLUME SPIKE %s*\n", symbol)
	default:
		fmt.Fprintf(b, "*ANOMALY %s*\n", symbol)
	}

	direction := "above"
	if obs.PriceZ < 0 {
		direction = "below"
	}
	fmt.Fprintf(b, "Price `$%.2f` is *%.1f sigma %s* the mean\n", obs.Price, math.Abs(obs.PriceZ), direction)
	fmt.Fprintf(b, "Mean %dh: `$%.2f` (+-`$%.2f`)\n", windowHours, obs.PriceMean, obs.PriceStdDev)
	fmt.Fprintf(b, "Normal range: `$%.2f` - `$%.2f`\n",
		obs.PriceMean-2*obs.PriceStdDev, obs.PriceMean+2*obs.PriceStdDev)
	fmt.Fprintf(b, "Volume z-score: %.2f\n", obs.VolumeZ)
	if kind == AlertPreMovement {
		b.WriteString("Volume spike without a matching price move, watch for movement\n")
	}
	mctx.render(b)
	return b.String()
}

// RenderBreakout formats the notification emitted when a sideways regime ends
// with a price escape. Weak breakouts lack volume corroboration.
func RenderBreakout(symbol string, bo regime.Breakout, sw regime.Sideways, price float64, mctx MarketContext) string {
	b := &strings.Builder{}
	if bo.Type == regime.BreakoutConfirmed {
		fmt.Fprintf(b, "*BREAKOUT %s (%s)*\n", symbol, bo.Direction)
	} else {
		fmt.Fprintf(b, "*WEAK BREAKOUT %s (%s)*\n", symbol, bo.Direction)
		b.WriteString("No volume confirmation, possible false breakout\n")
	}
	fmt.Fprintf(b, "Price `$%.2f` left the range `$%.2f` - `$%.2f` by %.2f%%\n",
		price, sw.PriceMin, sw.PriceMax, bo.BreakoutPct)
	fmt.Fprintf(b, "Lateral phase lasted %.0f minutes\n", sw.DurationMinutes)
	mctx.render(b)
	return b.String()
}

// RenderSidewaysHeartbeat formats the periodic still-lateral notification.
func RenderSidewaysHeartbeat(symbol string, sw regime.Sideways, inRegimeMinutes float64) string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "*LATERAL %s*\n", symbol)
	fmt.Fprintf(b, "Price compressed between `$%.2f` and `$%.2f` (%.2f%% band)\n",
		sw.PriceMin, sw.PriceMax, sw.VolatilityPct)
	fmt.Fprintf(b, "In regime for %.0f minutes, awaiting breakout\n", inRegimeMinutes)
	return b.String()
}

// RenderNewHigh formats an all-time-high notification.
func RenderNewHigh(symbol string, price, previous float64, rec records.Recency) string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "*RECORD %s*\n", symbol)
	fmt.Fprintf(b, "New all-time high: `$%.2f`\n", price)
	fmt.Fprintf(b, "Previous: `$%.2f`\n", previous)
	if rec.ATHRecent {
		fmt.Fprintf(b, "Previous high was set only %.0f minutes ago\n", rec.ATHMinutesAgo)
	}
	return b.String()
}

// RenderNewLow formats an all-time-low notification. A +Inf previous low
// (never observed) renders as N/A.
func RenderNewLow(symbol string, price, previous float64, rec records.Recency) string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "*NEW LOW %s*\n", symbol)
	fmt.Fprintf(b, "Lowest price on record: `$%.2f`\n", price)
	if math.IsInf(previous, 1) {
		b.WriteString("Previous: `N/A`\n")
	} else {
		fmt.Fprintf(b, "Previous: `$%.2f`\n", previous)
	}
	if rec.ATLRecent {
		fmt.Fprintf(b, "Previous low was set only %.0f minutes ago\n", rec.ATLMinutesAgo)
	}
	return b.String()
}

// RenderVariation formats the simple variation-threshold notification.
func RenderVariation(symbol string, variationPct, last, current decimal.Decimal) string {
	direction := "rose"
	if variationPct.Sign() < 0 {
		direction = "fell"
	}
	b := &strings.Builder{}
	fmt.Fprintf(b, "*VARIATION %s*\n", symbol)
	fmt.Fprintf(b, "Price %s `%s%%`\n", direction, variationPct.StringFixed(2))
	fmt.Fprintf(b, "From `$%s` to `$%s`\n", last.StringFixed(2), current.StringFixed(2))
	return b.String()
}

// RenderFetchWarning formats the per-symbol skip warning.
func RenderFetchWarning(symbol string, err error) string {
	return fmt.Sprintf("Failed to fetch %s: %v", symbol, err)
}
