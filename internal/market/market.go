// Package market holds the price-history types shared by providers,
// indicators and strategies.
package market

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
)

var (
	// ErrUnauthorized is returned by providers when the stored credential is
	// missing or rejected. Scans treat it as fatal.
	ErrUnauthorized = errors.New("provider rejected credentials")

	// ErrNotFound is returned when a symbol cannot be resolved by the provider.
	// Scans treat it as an empty series.
	ErrNotFound = errors.New("symbol not found")
)

// Provider fetches daily OHLCV history for one symbol.
type Provider interface {
	FetchSeries(ctx context.Context, symbol string, lookbackDays int) (Series, error)
}

// Bar is one trading day.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Series is a date-ascending sequence of bars for a single symbol.
type Series []Bar

// Normalize sorts bars by date and drops duplicate dates, keeping the last
// occurrence.
func Normalize(bars []Bar) Series {
	if len(bars) == 0 {
		return Series{}
	}
	sorted := make([]Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	out := make(Series, 0, len(sorted))
	for _, b := range sorted {
		if n := len(out); n > 0 && out[n-1].Date.Equal(b.Date) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}

func (s Series) Closes() []float64  { return s.column(func(b Bar) float64 { return b.Close }) }
func (s Series) Highs() []float64   { return s.column(func(b Bar) float64 { return b.High }) }
func (s Series) Lows() []float64    { return s.column(func(b Bar) float64 { return b.Low }) }
func (s Series) Volumes() []float64 { return s.column(func(b Bar) float64 { return b.Volume }) }

func (s Series) column(f func(Bar) float64) []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = f(b)
	}
	return out
}

// CleanSymbol strips Yahoo-style exchange suffixes (".NS", ".BO").
func CleanSymbol(symbol string) string {
	symbol = strings.TrimSpace(symbol)
	symbol = strings.TrimSuffix(symbol, ".NS")
	return strings.TrimSuffix(symbol, ".BO")
}
