package strategy

import (
	"fmt"
	"math"

	"github.com/ahmethakanbesel/nse-scanner/internal/indicator"
	"github.com/ahmethakanbesel/nse-scanner/internal/market"
)

// VolumeSurge matches heavy volume against the trailing 20-day average
// combined with a meaningful price move in either direction.
type VolumeSurge struct {
	volMult   float64
	minChange float64
}

type VolumeSurgeOption func(*VolumeSurge)

// WithVolumeMultiple sets the required multiple of average volume (default 3).
func WithVolumeMultiple(v float64) VolumeSurgeOption {
	return func(s *VolumeSurge) { s.volMult = v }
}

// WithMinChange sets the minimum absolute daily change in percent (default 1.5).
func WithMinChange(pct float64) VolumeSurgeOption {
	return func(s *VolumeSurge) { s.minChange = pct }
}

func NewVolumeSurge(opts ...VolumeSurgeOption) *VolumeSurge {
	s := &VolumeSurge{volMult: 3, minChange: 1.5}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *VolumeSurge) Name() string { return "Volume Surge" }
func (s *VolumeSurge) Description() string {
	return fmt.Sprintf("Stocks with %gx or more their 20-day average volume and a %g%%+ price move, institutional activity.", s.volMult, s.minChange)
}
func (s *VolumeSurge) LookbackDays() int { return defaultLookbackDays }
func (s *VolumeSurge) MinBars() int      { return 25 }

func (s *VolumeSurge) Evaluate(symbol string, series market.Series) *Result {
	if len(series) < s.MinBars() {
		return nil
	}
	closes := series.Closes()
	volumes := series.Volumes()
	n := len(volumes)

	avgVol := indicator.Mean(volumes[n-21 : n-1])
	curVol := last(volumes)
	if avgVol <= 0 {
		return nil
	}
	raw := curVol / avgVol
	move := rawChange(closes)
	if raw < s.volMult || math.Abs(move) < s.minChange {
		return nil
	}

	chg := priceChange(closes)
	direction := "Bearish"
	if move > 0 {
		direction = "Bullish"
	}
	strength := Moderate
	if raw >= 5 {
		strength = Strong
	}
	ratio := roundWithin(raw, s.volMult, math.Inf(1), 2)
	return &Result{
		Ticker:      symbol,
		Price:       round(last(closes), 2),
		ChangePct:   chg,
		Signal:      fmt.Sprintf("%s Volume Surge (%gx avg)", direction, ratio),
		Strength:    strength,
		MetricLabel: "Vol Ratio",
		MetricValue: fmt.Sprintf("%gx", ratio),
		Details: map[string]any{
			"volumeRatio":   ratio,
			"avgVolume":     int64(avgVol),
			"currentVolume": int64(curVol),
		},
	}
}
