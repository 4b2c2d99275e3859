package strategy

import (
	"fmt"

	"github.com/ahmethakanbesel/nse-scanner/internal/indicator"
	"github.com/ahmethakanbesel/nse-scanner/internal/market"
)

// Everest matches a close above the highest high of the prior 65 bars
// (about 13 weeks, today excluded) while Supertrend(7,3) is bullish.
type Everest struct {
	lookbackBars int
	atrPeriod    int
	multiplier   float64
}

func NewEverest() *Everest {
	return &Everest{lookbackBars: 65, atrPeriod: 7, multiplier: 3}
}

func (s *Everest) Name() string { return "Advanced Everest" }
func (s *Everest) Description() string {
	return "Close breaks above the 13-week high AND Supertrend(7,3) is green, a strong momentum breakout setup."
}

// LookbackDays covers MinBars trading sessions plus weekends and holidays.
func (s *Everest) LookbackDays() int { return 180 }
func (s *Everest) MinBars() int      { return 100 }

func (s *Everest) Evaluate(symbol string, series market.Series) *Result {
	if len(series) < s.MinBars() {
		return nil
	}
	closes := series.Closes()
	highs := series.Highs()
	n := len(closes)

	priorHigh := indicator.Highest(highs[n-s.lookbackBars-1 : n-1])
	price := last(closes)
	if !(price > priorHigh) {
		return nil
	}

	st := indicator.Supertrend(highs, series.Lows(), closes, s.atrPeriod, s.multiplier)
	now := st[n-1]
	if now.Direction != indicator.Bullish {
		return nil
	}

	line := round(now.Line, 2)
	pctAbove := round((price-line)/line*100, 2)
	pctBreakout := round((price-priorHigh)/priorHigh*100, 2)
	flipped := st[n-2].Direction != indicator.Bullish

	strength := Moderate
	if flipped || pctBreakout > 1.0 {
		strength = Strong
	}
	return &Result{
		Ticker:      symbol,
		Price:       round(price, 2),
		ChangePct:   priceChange(closes),
		Signal:      fmt.Sprintf("Everest Breakout +%.2f%% above 13W high", pctBreakout),
		Strength:    strength,
		MetricLabel: fmt.Sprintf("Above ST(%d,%g)", s.atrPeriod, s.multiplier),
		MetricValue: fmt.Sprintf("%+.2f%%", pctAbove),
		Details: map[string]any{
			"week13High":  round(priorHigh, 2),
			"supertrend":  line,
			"stFlipped":   flipped,
			"pctBreakout": pctBreakout,
		},
	}
}
