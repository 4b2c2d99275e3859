package indicator

import "math"

// Direction is the Supertrend trend state.
type Direction int

const (
	Undefined Direction = 0
	Bullish   Direction = 1
	Bearish   Direction = -1
)

func (d Direction) String() string {
	switch d {
	case Bullish:
		return "bullish"
	case Bearish:
		return "bearish"
	default:
		return "undefined"
	}
}

// SupertrendPoint is the Supertrend state after one bar.
type SupertrendPoint struct {
	Upper     float64
	Lower     float64
	Line      float64
	Direction Direction
}

// Supertrend computes the ATR-band trend overlay. The final bands ratchet
// (they only move against the trend unless price closed through them) and
// the direction is a state machine seeded bullish at index period, so each
// point depends on the previous one and the series is built as a fold.
func Supertrend(high, low, close []float64, period int, multiplier float64) []SupertrendPoint {
	n := min(len(high), len(low), len(close))
	if period < 1 {
		period = 1
	}
	atr := ATR(high[:n], low[:n], close[:n], period)

	out := make([]SupertrendPoint, n)
	st := supertrendState{
		period:     period,
		multiplier: multiplier,
		prevClose:  math.NaN(),
		upper:      math.NaN(),
		lower:      math.NaN(),
	}
	for i := range n {
		out[i] = st.next(i, high[i], low[i], close[i], atr[i])
	}
	return out
}

type supertrendState struct {
	period     int
	multiplier float64

	prevClose float64
	upper     float64
	lower     float64
	dir       Direction
}

func (s *supertrendState) next(i int, high, low, close, atr float64) SupertrendPoint {
	hl2 := (high + low) / 2
	basicUpper := hl2 + s.multiplier*atr
	basicLower := hl2 - s.multiplier*atr

	upper := s.upper
	if math.IsNaN(s.upper) || basicUpper < s.upper || s.prevClose > s.upper {
		upper = basicUpper
	}
	lower := s.lower
	if math.IsNaN(s.lower) || basicLower > s.lower || s.prevClose < s.lower {
		lower = basicLower
	}

	dir := s.dir
	switch {
	case i < s.period:
		dir = Undefined
	case i == s.period:
		dir = Bullish
	case s.dir == Bearish && close > upper:
		dir = Bullish
	case s.dir == Bullish && close < lower:
		dir = Bearish
	}

	line := math.NaN()
	switch dir {
	case Bullish:
		line = lower
	case Bearish:
		line = upper
	}

	s.prevClose = close
	s.upper = upper
	s.lower = lower
	s.dir = dir

	return SupertrendPoint{Upper: upper, Lower: lower, Line: line, Direction: dir}
}
