// Package indicator computes technical-analysis series over daily price data.
//
// Every function is pure: it takes input columns and returns a new slice of
// the same length. Entries for which the indicator is not yet defined (not
// enough history) are NaN.
package indicator

import "math"

// SMA returns the simple moving average over a rolling window of period values.
func SMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA returns the exponential moving average with alpha = 2/(span+1),
// seeded with the first value and without bias adjustment.
func EMA(values []float64, span int) []float64 {
	out := nanSlice(len(values))
	if len(values) == 0 || span <= 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RSI returns Wilder's relative strength index. The first average gain and
// loss are the simple means of the first period deltas; later values use
// Wilder smoothing. RSI is 100 when the average loss is zero.
func RSI(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) <= period {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		gain, loss := splitDelta(closes[i] - closes[i-1])
		avgGain += gain
		avgLoss += loss
	}
	p := float64(period)
	avgGain /= p
	avgLoss /= p
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		gain, loss := splitDelta(closes[i] - closes[i-1])
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func splitDelta(delta float64) (gain, loss float64) {
	if delta > 0 {
		return delta, 0
	}
	return 0, -delta
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACDSeries holds the MACD line, its signal line and their difference.
type MACDSeries struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes EMA(fast) - EMA(slow) and its signal EMA.
func MACD(closes []float64, fast, slow, signal int) MACDSeries {
	fastEMA := EMA(closes, fast)
	slowEMA := EMA(closes, slow)

	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	sig := EMA(line, signal)

	hist := make([]float64, len(closes))
	for i := range closes {
		hist[i] = line[i] - sig[i]
	}
	return MACDSeries{Line: line, Signal: sig, Histogram: hist}
}

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|).
// The first bar has no previous close, so its range is high-low.
func TrueRange(high, low, close []float64) []float64 {
	n := min(len(high), len(low), len(close))
	out := make([]float64, n)
	for i := range n {
		tr := high[i] - low[i]
		if i > 0 {
			tr = max(tr, math.Abs(high[i]-close[i-1]), math.Abs(low[i]-close[i-1]))
		}
		out[i] = tr
	}
	return out
}

// ATR returns Wilder's average true range: exponential smoothing of the true
// range with alpha = 1/period, seeded with the first true range. Values
// before index period-1 are undefined.
func ATR(high, low, close []float64, period int) []float64 {
	tr := TrueRange(high, low, close)
	out := nanSlice(len(tr))
	if period <= 0 || len(tr) == 0 {
		return out
	}
	alpha := 1.0 / float64(period)
	avg := tr[0]
	for i := range tr {
		if i > 0 {
			avg = alpha*tr[i] + (1-alpha)*avg
		}
		if i >= period-1 {
			out[i] = avg
		}
	}
	return out
}

// Highest returns the maximum of values, ignoring NaN. NaN if nothing is defined.
func Highest(values []float64) float64 {
	best := math.NaN()
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(best) || v > best {
			best = v
		}
	}
	return best
}

// Lowest returns the minimum of values, ignoring NaN.
func Lowest(values []float64) float64 {
	best := math.NaN()
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(best) || v < best {
			best = v
		}
	}
	return best
}

// Mean returns the arithmetic mean of values, or NaN for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
