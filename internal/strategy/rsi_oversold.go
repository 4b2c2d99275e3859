package strategy

import (
	"fmt"
	"math"

	"github.com/ahmethakanbesel/nse-scanner/internal/indicator"
	"github.com/ahmethakanbesel/nse-scanner/internal/market"
)

// RSIOversold matches when RSI(14) drops below a threshold.
type RSIOversold struct {
	period    int
	threshold float64
}

type RSIOption func(*RSIOversold)

// WithRSIThreshold sets the oversold level (default 35).
func WithRSIThreshold(v float64) RSIOption {
	return func(s *RSIOversold) { s.threshold = v }
}

func NewRSIOversold(opts ...RSIOption) *RSIOversold {
	s := &RSIOversold{period: 14, threshold: 35}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *RSIOversold) Name() string { return "RSI Oversold" }
func (s *RSIOversold) Description() string {
	return fmt.Sprintf("Stocks where RSI(%d) has dropped below %g, oversold and potential bounce candidates.", s.period, s.threshold)
}
func (s *RSIOversold) LookbackDays() int { return defaultLookbackDays }
func (s *RSIOversold) MinBars() int      { return 20 }

func (s *RSIOversold) Evaluate(symbol string, series market.Series) *Result {
	if len(series) < s.MinBars() {
		return nil
	}
	closes := series.Closes()
	rsi := last(indicator.RSI(closes, s.period))
	if math.IsNaN(rsi) || rsi >= s.threshold {
		return nil
	}

	strength := Moderate
	if rsi < 25 {
		strength = Strong
	}
	shown := roundBelow(rsi, s.threshold, 1)
	return &Result{
		Ticker:      symbol,
		Price:       round(last(closes), 2),
		ChangePct:   priceChange(closes),
		Signal:      fmt.Sprintf("RSI Oversold @ %.1f", shown),
		Strength:    strength,
		MetricLabel: fmt.Sprintf("RSI(%d)", s.period),
		MetricValue: fmt.Sprintf("%.1f", shown),
		Details:     map[string]any{"rsi": shown},
	}
}
