package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ahmethakanbesel/nse-scanner/internal/config"
	"github.com/ahmethakanbesel/nse-scanner/internal/job"
	"github.com/ahmethakanbesel/nse-scanner/internal/metrics"
	"github.com/ahmethakanbesel/nse-scanner/internal/platform/sqlite"
	"github.com/ahmethakanbesel/nse-scanner/internal/provider"
	"github.com/ahmethakanbesel/nse-scanner/internal/provider/upstox"
	"github.com/ahmethakanbesel/nse-scanner/internal/provider/yahoo"
	tokenrepo "github.com/ahmethakanbesel/nse-scanner/internal/repository/token"
	"github.com/ahmethakanbesel/nse-scanner/internal/scan"
	"github.com/ahmethakanbesel/nse-scanner/internal/scanner"
	"github.com/ahmethakanbesel/nse-scanner/internal/strategy"
	"github.com/ahmethakanbesel/nse-scanner/internal/token"
)

// app holds the components shared by the server and the CLI commands.
type app struct {
	cfg      config.Config
	db       *sqlite.DB
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	tokens  *token.Service
	upstox  *upstox.Client
	source  provider.Source
	scanner *scanner.Scanner
	store   *job.Store
	jobs    *job.Service
}

func newApp(cfg config.Config) (*app, error) {
	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	tokens := token.NewService(
		tokenrepo.NewRepository(db.DB),
		token.WithEnvToken(cfg.UpstoxAccessToken),
		token.WithOAuth(upstox.NewOAuth(cfg.UpstoxAPIKey, cfg.UpstoxAPISecret, cfg.UpstoxRedirectURI)),
		token.WithFrontendURL(cfg.FrontendURL),
	)

	// Provider registry
	upstoxClient := upstox.New(tokens)
	registry := provider.NewRegistry()
	registry.Register(upstoxClient)
	registry.Register(yahoo.New())

	source, err := registry.Get(cfg.Provider)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w (available: %v)", err, registry.Names())
	}

	store := job.NewStore(job.WithRetention(cfg.JobRetention))

	return &app{
		cfg:      cfg,
		db:       db,
		registry: reg,
		metrics:  m,
		tokens:   tokens,
		upstox:   upstoxClient,
		source:   source,
		scanner: scanner.New(
			scanner.WithWorkers(cfg.Workers),
			scanner.WithInterval(cfg.SubmitInterval),
			scanner.WithMetrics(m),
		),
		store: store,
		jobs:  job.NewService(store, m),
	}, nil
}

// scanService builds the scan service over the given universes. Background
// jobs run on baseCtx.
func (a *app) scanService(baseCtx context.Context, universes scan.Universes) *scan.Service {
	opts := []scan.Option{scan.WithFetchTimeout(a.cfg.FetchTimeout)}
	if a.source.Name() == a.upstox.Name() {
		opts = append(opts, scan.WithAuth(a.tokens))
	}
	return scan.NewService(baseCtx, a.scanner, strategy.Default(), universes, a.source, a.store, opts...)
}

// preload warms the instrument master when Upstox is the active provider.
func (a *app) preload(ctx context.Context) {
	if a.source.Name() != a.upstox.Name() {
		return
	}
	if err := a.upstox.Preload(ctx); err != nil {
		slog.Warn("instrument preload failed, will retry on first scan", "error", err)
		return
	}
	slog.Info("instruments loaded", "count", a.upstox.Instruments().Len())
}

func (a *app) Close() error {
	return a.db.Close()
}
