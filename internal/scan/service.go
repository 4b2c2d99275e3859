// Package scan drives strategy scans for the API: asynchronous jobs that are
// polled for progress, synchronous runs, and raw event streams.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ahmethakanbesel/nse-scanner/internal/apperror"
	"github.com/ahmethakanbesel/nse-scanner/internal/job"
	"github.com/ahmethakanbesel/nse-scanner/internal/market"
	"github.com/ahmethakanbesel/nse-scanner/internal/scanner"
	"github.com/ahmethakanbesel/nse-scanner/internal/strategy"
)

// Universes resolves a universe name to its member symbols. An unknown name
// yields an empty list.
type Universes interface {
	Names() []string
	Get(ctx context.Context, name string) []string
}

// Authenticator reports whether a usable provider credential exists.
type Authenticator interface {
	AccessToken(ctx context.Context) (string, error)
}

type Service struct {
	baseCtx      context.Context
	scanner      *scanner.Scanner
	strategies   *strategy.Registry
	universes    Universes
	provider     market.Provider
	store        *job.Store
	auth         Authenticator
	fetchTimeout time.Duration
}

type Option func(*Service)

// WithAuth makes every scan require a credential before it starts.
func WithAuth(a Authenticator) Option {
	return func(s *Service) { s.auth = a }
}

// WithFetchTimeout bounds each symbol's provider call.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) { s.fetchTimeout = d }
}

// NewService creates a scan service. Background jobs run on baseCtx, so they
// outlive the request that started them and stop on shutdown.
func NewService(
	baseCtx context.Context,
	sc *scanner.Scanner,
	strategies *strategy.Registry,
	universes Universes,
	provider market.Provider,
	store *job.Store,
	opts ...Option,
) *Service {
	s := &Service{
		baseCtx:    baseCtx,
		scanner:    sc,
		strategies: strategies,
		universes:  universes,
		provider:   provider,
		store:      store,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start validates the request, registers a job and runs the scan in the
// background. The returned id can be polled through the job service.
func (s *Service) Start(ctx context.Context, req ScanRequest) (*StartScanResponse, error) {
	st, symbols, err := s.prepare(ctx, &req)
	if err != nil {
		return nil, err
	}

	id := s.store.Create(st.Name(), req.Universe)
	s.store.UpdateProgress(id, 0, len(symbols))
	slog.Info("scan started", "job", id, "strategy", st.Name(), "universe", req.Universe, "symbols", len(symbols))

	go s.drive(id, st, symbols)

	return &StartScanResponse{JobID: id, Total: len(symbols)}, nil
}

func (s *Service) drive(id string, st strategy.Strategy, symbols []string) {
	ctx, cancel := context.WithCancel(s.baseCtx)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scan driver panicked", "job", id, "panic", r)
			s.store.Fail(id, apperror.Internal, fmt.Sprintf("internal error: %v", r))
		}
		s.store.Cleanup()
	}()

	for ev := range s.scanner.Scan(ctx, symbols, s.evaluator(st)) {
		switch ev.Type {
		case scanner.EventProgress:
			s.store.UpdateProgress(id, ev.Completed, ev.Total)
		case scanner.EventMatch:
			s.store.AddMatch(id, *ev.Result)
			s.store.UpdateProgress(id, ev.Completed, ev.Total)
		case scanner.EventDone:
			s.store.Finish(id)
			slog.Info("scan finished", "job", id, "total", ev.Total, "matches", ev.Matches)
		case scanner.EventError:
			s.store.Fail(id, ev.Code, ev.Message)
			slog.Warn("scan failed", "job", id, "code", ev.Code, "error", ev.Message)
		}
	}
	// The terminal event is not delivered once ctx is done. Fail is a no-op
	// when the job already finished.
	s.store.Fail(id, apperror.Internal, "scan canceled")
}

// Run scans synchronously and returns the matches, strongest first.
func (s *Service) Run(ctx context.Context, req ScanRequest) (*RunScanResponse, error) {
	st, symbols, err := s.prepare(ctx, &req)
	if err != nil {
		return nil, err
	}
	slog.Info("scanning", "strategy", st.Name(), "universe", req.Universe, "symbols", len(symbols))

	results := []strategy.Result{}
	for ev := range s.scanner.Scan(ctx, symbols, s.evaluator(st)) {
		switch ev.Type {
		case scanner.EventMatch:
			results = append(results, *ev.Result)
		case scanner.EventError:
			if ev.Code == apperror.Unauthorized {
				return nil, apperror.New(apperror.Unauthorized, ev.Message)
			}
			return nil, apperror.New(apperror.Internal, ev.Message)
		}
	}
	SortResults(results)

	return &RunScanResponse{
		Strategy:     st.Name(),
		Universe:     req.Universe,
		TotalScanned: len(symbols),
		Matches:      len(results),
		Results:      results,
	}, nil
}

// Stream starts a scan bound to ctx and returns its raw events.
func (s *Service) Stream(ctx context.Context, req ScanRequest) (<-chan scanner.Event, error) {
	st, symbols, err := s.prepare(ctx, &req)
	if err != nil {
		return nil, err
	}
	slog.Info("streaming scan", "strategy", st.Name(), "universe", req.Universe, "symbols", len(symbols))
	return s.scanner.Scan(ctx, symbols, s.evaluator(st)), nil
}

func (s *Service) Strategies() []strategy.Info {
	return s.strategies.List()
}

// ListUniverses resolves every universe and reports its size. Universes that
// cannot be resolved report zero members.
func (s *Service) ListUniverses(ctx context.Context) []UniverseInfo {
	names := s.universes.Names()
	infos := make([]UniverseInfo, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, name := range names {
		g.Go(func() error {
			infos[i] = UniverseInfo{Name: name, Count: len(s.universes.Get(gctx, name))}
			return nil
		})
	}
	_ = g.Wait()
	return infos
}

// prepare runs the pre-flight checks in order: credential, request shape,
// strategy, universe.
func (s *Service) prepare(ctx context.Context, req *ScanRequest) (strategy.Strategy, []string, error) {
	if s.auth != nil {
		if _, err := s.auth.AccessToken(ctx); err != nil {
			return nil, nil, apperror.New(apperror.Unauthorized, "not authenticated, complete the Upstox login first")
		}
	}
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	st, err := s.strategies.Get(req.Strategy)
	if err != nil {
		return nil, nil, apperror.New(apperror.NotFound, fmt.Sprintf("unknown strategy: %s", req.Strategy))
	}

	members := s.universes.Get(ctx, req.Universe)
	if len(members) == 0 {
		return nil, nil, apperror.New(apperror.NotFound, fmt.Sprintf("unknown universe: %s", req.Universe))
	}
	symbols := make([]string, 0, len(members))
	for _, m := range members {
		if sym := market.CleanSymbol(m); sym != "" {
			symbols = append(symbols, sym)
		}
	}
	return st, symbols, nil
}

// evaluator fetches a symbol's history and applies st. Unknown symbols and
// short histories are non-matches, not errors.
func (s *Service) evaluator(st strategy.Strategy) scanner.EvaluateFunc {
	minBars := max(strategy.MinHistory, st.MinBars())
	return func(ctx context.Context, symbol string) (*strategy.Result, error) {
		if s.fetchTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
			defer cancel()
		}
		series, err := s.provider.FetchSeries(ctx, symbol, st.LookbackDays())
		if errors.Is(err, market.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", symbol, err)
		}
		if len(series) < minBars {
			return nil, nil
		}
		return st.Evaluate(symbol, series), nil
	}
}

// SortResults orders Strong matches first, then by the size of the daily move.
func SortResults(results []strategy.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		si, sj := results[i].Strength == strategy.Strong, results[j].Strength == strategy.Strong
		if si != sj {
			return si
		}
		return math.Abs(results[i].ChangePct) > math.Abs(results[j].ChangePct)
	})
}
