package universe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ahmethakanbesel/nse-scanner/internal/metrics"
)

const (
	defaultNSEBase = "https://www.nseindia.com"
	defaultTTL     = time.Hour
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

type cacheEntry struct {
	symbols   []string
	fetchedAt time.Time
}

// NSE fetches live index constituents from the public NSE API. Results are
// cached per index for the TTL; failed fetches are not cached.
type NSE struct {
	baseURL string
	client  *http.Client
	ttl     time.Duration
	now     func() time.Time
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Metrics
	params  map[string]string

	sessionReady atomic.Bool
	sessionMu    sync.Mutex

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type Option func(*NSE)

func WithBaseURL(u string) Option {
	return func(n *NSE) { n.baseURL = u }
}

// WithClient sets the HTTP client. NSE requires the session cookie from the
// home page, so the client needs a cookie jar.
func WithClient(c *http.Client) Option {
	return func(n *NSE) { n.client = c }
}

func WithTTL(d time.Duration) Option {
	return func(n *NSE) {
		if d > 0 {
			n.ttl = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(n *NSE) { n.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(n *NSE) { n.metrics = m }
}

func NewNSE(opts ...Option) *NSE {
	jar, _ := cookiejar.New(nil)
	n := &NSE{
		baseURL: defaultNSEBase,
		client:  &http.Client{Jar: jar, Timeout: 15 * time.Second},
		ttl:     defaultTTL,
		now:     time.Now,
		params:  make(map[string]string, len(Indices)),
		cache:   make(map[string]cacheEntry),
	}
	for _, idx := range Indices {
		n.params[idx.Name] = idx.Param
	}
	for _, o := range opts {
		o(n)
	}
	n.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "nse-index",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 3 },
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			n.metrics.SetBreakerState(int(to))
		},
	})
	return n
}

func (n *NSE) Names() []string {
	names := make([]string, len(Indices))
	for i, idx := range Indices {
		names[i] = idx.Name
	}
	return names
}

// Get returns the members of the named index, or nil when the name is
// unknown or NSE cannot be reached.
func (n *NSE) Get(ctx context.Context, name string) []string {
	param, ok := n.params[name]
	if !ok {
		slog.Warn("unknown universe", "universe", name)
		return nil
	}

	n.mu.Lock()
	if e, ok := n.cache[name]; ok && n.now().Sub(e.fetchedAt) < n.ttl {
		n.mu.Unlock()
		return append([]string(nil), e.symbols...)
	}
	n.mu.Unlock()

	// Fetch outside the lock so other universes are not blocked.
	res, err := n.breaker.Execute(func() (any, error) {
		return n.fetch(ctx, param)
	})
	if err != nil {
		slog.Error("nse index fetch failed", "universe", name, "error", err)
		return nil
	}
	symbols := res.([]string)
	if len(symbols) == 0 {
		return nil
	}

	n.mu.Lock()
	n.cache[name] = cacheEntry{symbols: symbols, fetchedAt: n.now()}
	n.mu.Unlock()
	slog.Info("fetched nse index", "universe", name, "count", len(symbols))
	return append([]string(nil), symbols...)
}

// initSession visits the NSE home page once for the cookies the API
// requires. Failure is logged and not retried within the same call.
func (n *NSE) initSession(ctx context.Context) {
	if n.sessionReady.Load() {
		return
	}
	n.sessionMu.Lock()
	defer n.sessionMu.Unlock()
	if n.sessionReady.Load() {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/", nil)
	if err != nil {
		slog.Warn("nse session init", "error", err)
		return
	}
	setHeaders(req, n.baseURL)
	res, err := n.client.Do(req) //nolint:gosec // URL from internal config
	if err != nil {
		slog.Warn("nse session init", "error", err)
		return
	}
	_ = res.Body.Close()
	n.sessionReady.Store(true)
	slog.Info("nse session ready")
}

type indexResponse struct {
	Data []struct {
		Symbol string `json:"symbol"`
	} `json:"data"`
}

func (n *NSE) fetch(ctx context.Context, param string) ([]string, error) {
	n.initSession(ctx)

	reqURL := n.baseURL + "/api/equity-stockIndices?index=" + url.QueryEscape(param)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	setHeaders(req, n.baseURL)

	res, err := n.client.Do(req) //nolint:gosec // URL from internal config
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
			n.sessionReady.Store(false)
		}
		return nil, fmt.Errorf("nse returned HTTP %d for %s", res.StatusCode, param)
	}

	var body indexResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("parse nse response: %w", err)
	}
	if len(body.Data) == 0 {
		return nil, nil
	}

	// The first element is the index itself.
	symbols := make([]string, 0, len(body.Data)-1)
	for _, d := range body.Data[1:] {
		if d.Symbol != "" {
			symbols = append(symbols, d.Symbol)
		}
	}
	return symbols, nil
}

func setHeaders(req *http.Request, base string) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", base+"/")
}
