package strategy

import (
	"fmt"
	"math"

	"github.com/ahmethakanbesel/nse-scanner/internal/indicator"
	"github.com/ahmethakanbesel/nse-scanner/internal/market"
)

// EMAPullback matches an uptrend (close and EMA20 above EMA50) whose close
// has pulled back to within [-tolerance, +2*tolerance] percent of EMA20.
type EMAPullback struct {
	tolerancePct float64
}

type EMAPullbackOption func(*EMAPullback)

// WithTolerance sets the pullback band in percent (default 1.5).
func WithTolerance(pct float64) EMAPullbackOption {
	return func(s *EMAPullback) { s.tolerancePct = pct }
}

func NewEMAPullback(opts ...EMAPullbackOption) *EMAPullback {
	s := &EMAPullback{tolerancePct: 1.5}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *EMAPullback) Name() string { return "EMA Pullback (Trend Dip)" }
func (s *EMAPullback) Description() string {
	return "Stocks in an uptrend (above 50 EMA) pulling back to the 20 EMA, a buy-the-dip setup."
}
func (s *EMAPullback) LookbackDays() int { return defaultLookbackDays }
func (s *EMAPullback) MinBars() int      { return 55 }

func (s *EMAPullback) Evaluate(symbol string, series market.Series) *Result {
	if len(series) < s.MinBars() {
		return nil
	}
	closes := series.Closes()
	price := last(closes)
	e20 := last(indicator.EMA(closes, 20))
	e50 := last(indicator.EMA(closes, 50))

	inUptrend := price > e50 && e20 > e50
	raw := (price - e20) / e20 * 100
	lo, hi := -s.tolerancePct, s.tolerancePct*2
	if !inUptrend || raw < lo || raw > hi {
		return nil
	}

	strength := Moderate
	if math.Abs(raw) < 0.5 {
		strength = Strong
	}
	dist := roundWithin(raw, lo, hi, 2)
	return &Result{
		Ticker:      symbol,
		Price:       round(price, 2),
		ChangePct:   priceChange(closes),
		Signal:      fmt.Sprintf("EMA20 Pullback (%+.1f%%)", dist),
		Strength:    strength,
		MetricLabel: "Δ EMA20",
		MetricValue: fmt.Sprintf("%+.1f%%", dist),
		Details: map[string]any{
			"ema20":       round(e20, 2),
			"ema50":       round(e50, 2),
			"distFromEma": dist,
		},
	}
}
