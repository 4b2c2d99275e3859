// Package yahoo reads NSE daily history from the Yahoo Finance v8 chart API.
// It uses cookie + crumb authentication, matching the approach used by the
// yfinance Python library, and needs no user credential.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ahmethakanbesel/nse-scanner/internal/market"
	"github.com/ahmethakanbesel/nse-scanner/internal/provider"
)

const (
	defaultChartEndpoint = "https://query2.finance.yahoo.com/v8/finance/chart"
	defaultCookieURL     = "https://fc.yahoo.com"
	defaultCrumbURL      = "https://query1.finance.yahoo.com/v1/test/getcrumb"
	exchangeSuffix       = ".NS"
	chunkDays            = 1250
	userAgent            = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// Client fetches daily OHLCV bars for NSE symbols.
type Client struct {
	workers       int
	client        *http.Client
	chartEndpoint string
	cookieURL     string
	crumbURL      string
	now           func() time.Time

	mu    sync.Mutex
	crumb string
}

// New creates a Client with the given options applied.
func New(opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		workers:       2,
		client:        &http.Client{Jar: jar, Timeout: 15 * time.Second},
		chartEndpoint: defaultChartEndpoint,
		cookieURL:     defaultCookieURL,
		crumbURL:      defaultCrumbURL,
		now:           time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type Option func(*Client)

// WithWorkers sets the concurrency for parallel chunk fetching.
func WithWorkers(n int) Option {
	return func(c *Client) { c.workers = n }
}

// WithClient sets the HTTP client. The client should have a cookie jar.
func WithClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

func WithChartEndpoint(ep string) Option {
	return func(c *Client) { c.chartEndpoint = ep }
}

func WithCookieURL(u string) Option {
	return func(c *Client) { c.cookieURL = u }
}

func WithCrumbURL(u string) Option {
	return func(c *Client) { c.crumbURL = u }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func (c *Client) Name() string { return "yahoo" }

type quote struct {
	Open   []any `json:"open"`
	High   []any `json:"high"`
	Low    []any `json:"low"`
	Close  []any `json:"close"`
	Volume []any `json:"volume"`
}

type chartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []quote `json:"quote"`
	} `json:"indicators"`
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchSeries returns lookbackDays of daily bars for an NSE symbol.
func (c *Client) FetchSeries(ctx context.Context, symbol string, lookbackDays int) (market.Series, error) {
	symbol = market.CleanSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol cannot be empty")
	}

	if err := c.ensureCrumb(ctx); err != nil {
		return nil, fmt.Errorf("yahoo auth: %w", err)
	}

	window := provider.Lookback(c.now(), lookbackDays)
	chunks := provider.SplitDateRange(window.From, window.To, chunkDays)
	results := make([][]market.Bar, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, ch := range chunks {
		g.Go(func() error {
			bars, err := c.fetchChart(gctx, symbol+exchangeSuffix, ch)
			if err != nil {
				return err
			}
			results[i] = bars
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []market.Bar
	for _, r := range results {
		all = append(all, r...)
	}
	return market.Normalize(all), nil
}

// ensureCrumb fetches a session cookie and crumb token if not already cached.
func (c *Client) ensureCrumb(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.crumb != "" {
		return nil
	}

	cookieReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cookieURL, nil)
	if err != nil {
		return fmt.Errorf("build cookie request: %w", err)
	}
	cookieReq.Header.Set("User-Agent", userAgent)

	cookieRes, err := c.client.Do(cookieReq) //nolint:gosec // URL from internal config
	if err != nil {
		return fmt.Errorf("fetch cookie: %w", err)
	}
	_ = cookieRes.Body.Close()

	crumbReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.crumbURL, nil)
	if err != nil {
		return fmt.Errorf("build crumb request: %w", err)
	}
	crumbReq.Header.Set("User-Agent", userAgent)

	crumbRes, err := c.client.Do(crumbReq) //nolint:gosec // URL from internal config
	if err != nil {
		return fmt.Errorf("fetch crumb: %w", err)
	}
	defer func() { _ = crumbRes.Body.Close() }()

	if crumbRes.StatusCode != http.StatusOK {
		return fmt.Errorf("crumb endpoint returned HTTP %d", crumbRes.StatusCode)
	}

	body, err := io.ReadAll(crumbRes.Body)
	if err != nil {
		return fmt.Errorf("read crumb: %w", err)
	}
	crumb := strings.TrimSpace(string(body))
	if crumb == "" {
		return fmt.Errorf("empty crumb received")
	}

	c.crumb = crumb
	slog.Info("yahoo: obtained crumb", "crumb_len", len(crumb))
	return nil
}

func (c *Client) fetchChart(ctx context.Context, ticker string, r provider.DateRange) ([]market.Bar, error) {
	c.mu.Lock()
	crumb := c.crumb
	c.mu.Unlock()

	q := url.Values{}
	q.Set("period1", strconv.FormatInt(r.From.Unix(), 10))
	// period2 is exclusive; include the whole last day.
	q.Set("period2", strconv.FormatInt(r.To.AddDate(0, 0, 1).Unix(), 10))
	q.Set("interval", "1d")
	q.Set("crumb", crumb)
	reqURL := fmt.Sprintf("%s/%s?%s", c.chartEndpoint, url.PathEscape(ticker), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	res, err := c.client.Do(req) //nolint:gosec // URL built from internal config
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, market.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		// Drop the crumb so the next fetch re-authenticates.
		c.mu.Lock()
		c.crumb = ""
		c.mu.Unlock()
		return nil, fmt.Errorf("yahoo returned HTTP %d for %s", res.StatusCode, ticker)
	default:
		return nil, fmt.Errorf("yahoo returned HTTP %d for %s", res.StatusCode, ticker)
	}

	var resp chartResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("parse yahoo response: %w", err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart error: %s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	result := resp.Chart.Result[0]
	qt := result.Indicators.Quote[0]
	n := min(len(result.Timestamp), len(qt.Open), len(qt.High), len(qt.Low), len(qt.Close), len(qt.Volume))
	bars := make([]market.Bar, 0, n)
	for i := range n {
		bar, ok := toBar(result.Timestamp[i], qt.Open[i], qt.High[i], qt.Low[i], qt.Close[i], qt.Volume[i])
		if !ok {
			continue
		}
		bars = append(bars, bar)
	}

	slog.Debug("retrieved yahoo data", "ticker", ticker,
		"from", r.From.Format(time.DateOnly), "to", r.To.Format(time.DateOnly), "count", len(bars))
	return bars, nil
}

// toBar builds a bar from one row of the chart columns. Yahoo uses null
// for missing values; such rows are skipped.
func toBar(ts int64, open, high, low, closePrice, volume any) (market.Bar, bool) {
	vals := make([]float64, 5)
	for i, v := range []any{open, high, low, closePrice, volume} {
		f, ok := toFloat64(v)
		if !ok {
			return market.Bar{}, false
		}
		vals[i] = f
	}
	return market.Bar{
		Date:   time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, true
}

// toFloat64 converts a JSON number (which may be float64 or json.Number) to float64.
func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
