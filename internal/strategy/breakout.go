package strategy

import (
	"fmt"
	"math"

	"github.com/ahmethakanbesel/nse-scanner/internal/indicator"
	"github.com/ahmethakanbesel/nse-scanner/internal/market"
)

// Breakout matches when the close sits within thresholdPct of the prior
// 52-week high. Today's bar is excluded from the high.
type Breakout struct {
	thresholdPct float64
}

type BreakoutOption func(*Breakout)

// WithBreakoutThreshold sets the maximum distance from the high in percent (default 2).
func WithBreakoutThreshold(pct float64) BreakoutOption {
	return func(s *Breakout) { s.thresholdPct = pct }
}

func NewBreakout(opts ...BreakoutOption) *Breakout {
	s := &Breakout{thresholdPct: 2}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Breakout) Name() string { return "52-Week High Breakout" }
func (s *Breakout) Description() string {
	return fmt.Sprintf("Stocks trading within %g%% of their 52-week high, momentum breakout candidates.", s.thresholdPct)
}
func (s *Breakout) LookbackDays() int { return 365 }
func (s *Breakout) MinBars() int      { return 50 }

func (s *Breakout) Evaluate(symbol string, series market.Series) *Result {
	if len(series) < s.MinBars() {
		return nil
	}
	closes := series.Closes()
	volumes := series.Volumes()
	n := len(closes)

	high := indicator.Highest(series.Highs()[:n-1])
	price := last(closes)
	raw := (high - price) / high * 100
	if raw > s.thresholdPct {
		return nil
	}
	dist := roundWithin(raw, math.Inf(-1), s.thresholdPct, 2)

	avgVol := indicator.Mean(volumes[n-21 : n-1])
	volRatio := 0.0
	if avgVol > 0 {
		volRatio = round(last(volumes)/avgVol, 2)
	}

	strength := Moderate
	if raw < 0.5 {
		strength = Strong
	}
	return &Result{
		Ticker:      symbol,
		Price:       round(price, 2),
		ChangePct:   priceChange(closes),
		Signal:      fmt.Sprintf("Near 52W High (%.2f%% away)", dist),
		Strength:    strength,
		MetricLabel: "Dist. from High",
		MetricValue: fmt.Sprintf("%.2f%%", dist),
		Details: map[string]any{
			"week52High":  round(high, 2),
			"week52Low":   round(indicator.Lowest(closes), 2),
			"distancePct": dist,
			"volumeRatio": volRatio,
		},
	}
}
