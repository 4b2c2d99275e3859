package strategy

import (
	"fmt"

	"github.com/ahmethakanbesel/nse-scanner/internal/indicator"
	"github.com/ahmethakanbesel/nse-scanner/internal/market"
)

// MACDCrossover matches when the MACD line crossed above its signal line
// within the last few bars.
type MACDCrossover struct {
	fast, slow, signal int
	window             int
}

func NewMACDCrossover() *MACDCrossover {
	return &MACDCrossover{fast: 12, slow: 26, signal: 9, window: 3}
}

func (s *MACDCrossover) Name() string { return "MACD Bullish Crossover" }
func (s *MACDCrossover) Description() string {
	return "Stocks where MACD line crossed above its Signal line in the last 3 sessions."
}
func (s *MACDCrossover) LookbackDays() int { return defaultLookbackDays }
func (s *MACDCrossover) MinBars() int      { return 40 }

func (s *MACDCrossover) Evaluate(symbol string, series market.Series) *Result {
	if len(series) < s.MinBars() {
		return nil
	}
	closes := series.Closes()
	m := indicator.MACD(closes, s.fast, s.slow, s.signal)
	n := len(closes)

	for i := n - s.window; i < n; i++ {
		if !(m.Line[i-1] < m.Signal[i-1] && m.Line[i] > m.Signal[i]) {
			continue
		}
		h := round(last(m.Histogram), 4)
		strength := Moderate
		if h > 0 {
			strength = Strong
		}
		return &Result{
			Ticker:      symbol,
			Price:       round(last(closes), 2),
			ChangePct:   priceChange(closes),
			Signal:      "MACD Bullish Crossover",
			Strength:    strength,
			MetricLabel: "Histogram",
			MetricValue: fmt.Sprintf("%+.3f", h),
			Details: map[string]any{
				"macd":       round(last(m.Line), 4),
				"signalLine": round(last(m.Signal), 4),
				"histogram":  h,
			},
		}
	}
	return nil
}
