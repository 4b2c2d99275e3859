// Package strategy defines the per-symbol screening rules.
//
// A Strategy inspects one symbol's daily series and either reports a match
// (a *Result) or declines by returning nil. Strategies are stateless and safe
// for concurrent use by scanner workers.
package strategy

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"github.com/ahmethakanbesel/nse-scanner/internal/market"
)

// MinHistory is the shortest series any scan will evaluate, regardless of a
// strategy's own minimum.
const MinHistory = 30

const defaultLookbackDays = 180

type Strategy interface {
	Name() string
	Description() string
	// LookbackDays is the calendar-day window requested from the provider.
	LookbackDays() int
	// MinBars is the bar count below which Evaluate declines.
	MinBars() int
	Evaluate(symbol string, s market.Series) *Result
}

type Strength string

const (
	Strong   Strength = "Strong"
	Moderate Strength = "Moderate"
)

// Result is a single match. Details carries the strategy-specific fields and
// is flattened into the top-level JSON object.
type Result struct {
	Ticker      string
	Price       float64
	ChangePct   float64
	Signal      string
	Strength    Strength
	MetricLabel string
	MetricValue string
	Details     map[string]any
}

func (r Result) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Details)+7)
	for k, v := range r.Details {
		m[k] = v
	}
	m["ticker"] = r.Ticker
	m["price"] = r.Price
	m["changePct"] = r.ChangePct
	m["signal"] = r.Signal
	m["strength"] = r.Strength
	m["metricLabel"] = r.MetricLabel
	m["metricValue"] = r.MetricValue
	return json.Marshal(m)
}

// Clone returns a copy that shares nothing mutable with r.
func (r Result) Clone() Result {
	if r.Details != nil {
		d := make(map[string]any, len(r.Details))
		for k, v := range r.Details {
			d[k] = v
		}
		r.Details = d
	}
	return r
}

// Info is the public description of a registered strategy.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
	order      []string
}

func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
	}
}

// Default returns a registry holding every built-in strategy with its
// default parameters.
func Default() *Registry {
	r := NewRegistry()
	r.Register(NewRSIOversold())
	r.Register(NewMACDCrossover())
	r.Register(NewGoldenCross())
	r.Register(NewBreakout())
	r.Register(NewVolumeSurge())
	r.Register(NewEMAPullback())
	r.Register(NewEverest())
	return r
}

func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.strategies[s.Name()]; !ok {
		r.order = append(r.order, s.Name())
	}
	r.strategies[s.Name()] = s
}

func (r *Registry) Get(name string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy: %s", name)
	}
	return s, nil
}

// List returns strategies in registration order.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]Info, 0, len(r.order))
	for _, name := range r.order {
		s := r.strategies[name]
		infos = append(infos, Info{Name: s.Name(), Description: s.Description()})
	}
	return infos
}

func priceChange(closes []float64) float64 {
	return round(rawChange(closes), 2)
}

// rawChange is the unrounded percent change of the last close.
func rawChange(closes []float64) float64 {
	n := len(closes)
	if n < 2 || closes[n-2] == 0 {
		return 0
	}
	return (closes[n-1] - closes[n-2]) / closes[n-2] * 100
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// roundWithin rounds v for display. When v lies in [lo, hi] the rounded
// value does too: it is truncated toward v instead of rounded past a bound.
func roundWithin(v, lo, hi float64, places int) float64 {
	p := math.Pow(10, float64(places))
	r := math.Round(v*p) / p
	switch {
	case r > hi:
		return math.Floor(v*p) / p
	case r < lo:
		return math.Ceil(v*p) / p
	}
	return r
}

// roundBelow rounds v for display, keeping a value under limit strictly
// under it.
func roundBelow(v, limit float64, places int) float64 {
	r := round(v, places)
	if r >= limit {
		p := math.Pow(10, float64(places))
		return math.Floor(v*p) / p
	}
	return r
}

func last(values []float64) float64 {
	return values[len(values)-1]
}
