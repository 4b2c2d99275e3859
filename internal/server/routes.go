package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahmethakanbesel/nse-scanner/internal/job"
	"github.com/ahmethakanbesel/nse-scanner/internal/scan"
	"github.com/ahmethakanbesel/nse-scanner/internal/token"
)

// Deps are the services the HTTP API is built on.
type Deps struct {
	Scans  *scan.Service
	Jobs   *job.Service
	Tokens *token.Service
	// Gatherer backs /metrics. Nil uses the default Prometheus registry.
	Gatherer    prometheus.Gatherer
	CORSOrigins []string
}

// NewHandler creates the full HTTP handler with routes and middleware.
// Exported for use in tests (e.g., httptest.NewServer).
func NewHandler(d Deps) http.Handler {
	return newMux(d)
}

func newMux(d Deps) http.Handler {
	h := &handler{
		scanSvc:  d.Scans,
		jobSvc:   d.Jobs,
		tokenSvc: d.Tokens,
	}

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	api := http.NewServeMux()
	api.HandleFunc("GET /api/health", h.health)
	api.HandleFunc("GET /api/auth/login-url", h.loginURL)
	api.HandleFunc("GET /api/auth/callback", h.authCallback)
	api.HandleFunc("GET /api/strategies", h.listStrategies)
	api.HandleFunc("GET /api/universes", h.listUniverses)
	api.HandleFunc("POST /api/scan/start", h.startScan)
	api.HandleFunc("GET /api/scan/status/{id}", h.scanStatus)
	api.HandleFunc("POST /api/scan", h.runScan)
	api.HandleFunc("GET /api/scan/stream", h.streamScan)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/api/", withCORS(d.CORSOrigins, api))

	// Apply middleware stack: recovery -> requestID -> logging
	var handler http.Handler = mux
	handler = logging(handler)
	handler = requestID(handler)
	handler = recovery(handler)

	return handler
}
