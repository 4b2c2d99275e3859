package strategy

import (
	"fmt"
	"math"

	"github.com/ahmethakanbesel/nse-scanner/internal/indicator"
	"github.com/ahmethakanbesel/nse-scanner/internal/market"
)

// GoldenCross matches when SMA50 crossed above SMA200 within the last 5 bars.
type GoldenCross struct {
	fast, slow int
	window     int
}

func NewGoldenCross() *GoldenCross {
	return &GoldenCross{fast: 50, slow: 200, window: 5}
}

func (s *GoldenCross) Name() string { return "Golden Cross (50/200 SMA)" }
func (s *GoldenCross) Description() string {
	return "Stocks where the 50-day SMA crossed above 200-day SMA, a classic long-term bull signal."
}
func (s *GoldenCross) LookbackDays() int { return 365 }
func (s *GoldenCross) MinBars() int      { return s.slow + s.window }

func (s *GoldenCross) Evaluate(symbol string, series market.Series) *Result {
	if len(series) < s.MinBars() {
		return nil
	}
	closes := series.Closes()
	fast := indicator.SMA(closes, s.fast)
	slow := indicator.SMA(closes, s.slow)
	n := len(closes)

	for i := n - s.window; i < n; i++ {
		p50, p200 := fast[i-1], slow[i-1]
		c50, c200 := fast[i], slow[i]
		if math.IsNaN(p50) || math.IsNaN(p200) {
			continue
		}
		if !(p50 < p200 && c50 > c200) {
			continue
		}
		gap := round((c50-c200)/c200*100, 2)
		return &Result{
			Ticker:      symbol,
			Price:       round(last(closes), 2),
			ChangePct:   priceChange(closes),
			Signal:      "Golden Cross",
			Strength:    Strong,
			MetricLabel: "SMA50/200 Gap",
			MetricValue: fmt.Sprintf("+%.2f%%", gap),
			Details: map[string]any{
				"sma50":  round(c50, 2),
				"sma200": round(c200, 2),
			},
		}
	}
	return nil
}
