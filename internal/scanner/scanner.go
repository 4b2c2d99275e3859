// Package scanner fans a strategy evaluation out over a universe of symbols
// under a concurrency bound and a process-wide request rate.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ahmethakanbesel/nse-scanner/internal/apperror"
	"github.com/ahmethakanbesel/nse-scanner/internal/market"
	"github.com/ahmethakanbesel/nse-scanner/internal/metrics"
	"github.com/ahmethakanbesel/nse-scanner/internal/strategy"
)

const (
	defaultWorkers  = 20
	defaultInterval = 45 * time.Millisecond
)

// EvaluateFunc fetches one symbol and runs a strategy on it. A nil result
// with a nil error means the symbol did not match.
type EvaluateFunc func(ctx context.Context, symbol string) (*strategy.Result, error)

type EventType string

const (
	EventProgress EventType = "progress"
	EventMatch    EventType = "match"
	EventDone     EventType = "done"
	EventError    EventType = "error"
)

// Event is one step of a scan. Every symbol yields exactly one progress or
// match event, and the stream ends with exactly one done or error event.
type Event struct {
	Type      EventType        `json:"type"`
	Symbol    string           `json:"symbol,omitempty"`
	Completed int              `json:"completed"`
	Total     int              `json:"total"`
	Result    *strategy.Result `json:"result,omitempty"`
	Matches   int              `json:"matches"`
	Message   string           `json:"message,omitempty"`
	Code      apperror.Code    `json:"code,omitempty"`
}

// Terminal reports whether e ends the stream.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

type Scanner struct {
	workers int
	limiter *rate.Limiter
	metrics *metrics.Metrics
}

type Option func(*Scanner)

// WithWorkers bounds the number of symbols evaluated at once.
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithInterval sets the minimum spacing between evaluation starts across
// every scan run by this Scanner. Zero disables pacing.
func WithInterval(d time.Duration) Option {
	return func(s *Scanner) {
		if d <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		s.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scanner) { s.metrics = m }
}

func New(opts ...Option) *Scanner {
	s := &Scanner{
		workers: defaultWorkers,
		limiter: rate.NewLimiter(rate.Every(defaultInterval), 1),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Scanner) Workers() int { return s.workers }

type completion struct {
	symbol string
	result *strategy.Result
}

// Scan evaluates every symbol and streams events on the returned channel,
// which is closed after the terminal event. Events arrive in completion
// order. Cancelling ctx stops the scan; an unread channel does not leak
// goroutines once ctx is done.
func (s *Scanner) Scan(ctx context.Context, symbols []string, eval EvaluateFunc) <-chan Event {
	out := make(chan Event, s.workers)
	go s.run(ctx, symbols, eval, out)
	return out
}

func (s *Scanner) run(ctx context.Context, symbols []string, eval EvaluateFunc, out chan<- Event) {
	defer close(out)

	total := len(symbols)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	completions := make(chan completion, s.workers)
	var fatal atomic.Bool
	var fatalErr error

	go func() {
		defer close(completions)
		for _, symbol := range symbols {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				return s.evaluate(gctx, symbol, eval, completions, &fatal)
			})
		}
		fatalErr = g.Wait()
	}()

	completed, matches := 0, 0
	for c := range completions {
		if fatal.Load() {
			continue
		}
		completed++
		ev := Event{Type: EventProgress, Symbol: c.symbol, Completed: completed, Total: total, Matches: matches}
		if c.result != nil {
			matches++
			ev.Type = EventMatch
			ev.Result = c.result
			ev.Matches = matches
		}
		send(ctx, out, ev)
	}

	terminal := Event{Type: EventDone, Completed: completed, Total: total, Matches: matches}
	switch {
	case errors.Is(fatalErr, market.ErrUnauthorized):
		slog.Error("scan aborted", "error", fatalErr, "completed", completed, "total", total)
		terminal.Type = EventError
		terminal.Code = apperror.Unauthorized
		terminal.Message = "access token expired or invalid, please log in again"
		s.metrics.ScanFinished(string(EventError))
	case fatalErr != nil:
		terminal.Type = EventError
		terminal.Code = apperror.Internal
		terminal.Message = fatalErr.Error()
		s.metrics.ScanFinished(string(EventError))
	case ctx.Err() != nil:
		terminal.Type = EventError
		terminal.Code = apperror.Internal
		terminal.Message = "scan canceled"
		s.metrics.ScanFinished("canceled")
	default:
		s.metrics.ScanFinished(string(EventDone))
	}
	send(ctx, out, terminal)
}

// evaluate runs one symbol. Only credential failures are returned to the
// group; every other outcome becomes a completion.
func (s *Scanner) evaluate(
	ctx context.Context,
	symbol string,
	eval EvaluateFunc,
	completions chan<- completion,
	fatal *atomic.Bool,
) error {
	if werr := s.limiter.Wait(ctx); werr != nil {
		if ctx.Err() != nil {
			return nil
		}
		slog.Warn("scan: rate limiter", "symbol", symbol, "error", werr)
		return s.complete(ctx, completions, completion{symbol: symbol})
	}

	done := s.metrics.EvalStarted()
	res, evalErr := s.safeEval(ctx, symbol, eval)

	switch {
	case errors.Is(evalErr, market.ErrUnauthorized):
		done(metrics.OutcomeFatal)
		fatal.Store(true)
		return fmt.Errorf("evaluate %s: %w", symbol, evalErr)
	case ctx.Err() != nil:
		done(metrics.OutcomeCanceled)
		return nil
	case evalErr != nil:
		done(metrics.OutcomeError)
		slog.Warn("scan: evaluate symbol", "symbol", symbol, "error", evalErr)
		res = nil
	case res != nil:
		done(metrics.OutcomeMatch)
	default:
		done(metrics.OutcomeNoMatch)
	}
	return s.complete(ctx, completions, completion{symbol: symbol, result: res})
}

func (s *Scanner) safeEval(ctx context.Context, symbol string, eval EvaluateFunc) (res *strategy.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return eval(ctx, symbol)
}

func (s *Scanner) complete(ctx context.Context, completions chan<- completion, c completion) error {
	select {
	case completions <- c:
	case <-ctx.Done():
	}
	return nil
}

func send(ctx context.Context, out chan<- Event, ev Event) {
	select {
	case out <- ev:
	case <-ctx.Done():
	}
}
