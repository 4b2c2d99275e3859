// Package upstox reads NSE daily candles from the Upstox v2 API and handles
// the Upstox OAuth login.
package upstox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/ahmethakanbesel/nse-scanner/internal/market"
	"github.com/ahmethakanbesel/nse-scanner/internal/provider"
)

const defaultBaseURL = "https://api.upstox.com/v2"

// TokenSource supplies the bearer token for API calls. It returns
// market.ErrUnauthorized when no token is stored.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

type Client struct {
	baseURL     string
	client      *http.Client
	api         *retryablehttp.Client
	backoff     time.Duration
	tokens      TokenSource
	instruments *Instruments
	now         func() time.Time
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithInstruments replaces the instrument master, e.g. to point it at a mirror.
func WithInstruments(in *Instruments) Option {
	return func(c *Client) { c.instruments = in }
}

// WithRetryBackoff sets the base delay between retries of failed requests.
func WithRetryBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func New(tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		backoff: retryBackoff,
		tokens:  tokens,
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	c.api = newRetryClient(c.client, c.backoff)
	if c.instruments == nil {
		c.instruments = NewInstruments(c.client, "")
	}
	return c
}

func (c *Client) Name() string { return "upstox" }

// Preload downloads the instrument master so the first scan does not pay
// for it.
func (c *Client) Preload(ctx context.Context) error {
	return c.instruments.Load(ctx)
}

func (c *Client) Instruments() *Instruments { return c.instruments }

type candleResponse struct {
	Status string `json:"status"`
	Data   struct {
		// [timestamp, open, high, low, close, volume, open interest]
		Candles [][]any `json:"candles"`
	} `json:"data"`
}

// FetchSeries returns lookbackDays of daily candles for an NSE symbol.
func (c *Client) FetchSeries(ctx context.Context, symbol string, lookbackDays int) (market.Series, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	key, err := c.instruments.Resolve(ctx, market.CleanSymbol(symbol))
	if err != nil {
		return nil, err
	}

	window := provider.Lookback(c.now(), lookbackDays)
	reqURL := fmt.Sprintf("%s/historical-candle/%s/day/%s/%s",
		c.baseURL,
		url.PathEscape(key),
		window.To.Format(time.DateOnly),
		window.From.Format(time.DateOnly),
	)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build candles request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	res, err := c.api.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch candles %s: %w", symbol, err)
	}
	defer func() { _ = res.Body.Close() }()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("upstox rejected token: %w", market.ErrUnauthorized)
	default:
		return nil, fmt.Errorf("upstox returned HTTP %d for %s", res.StatusCode, symbol)
	}

	var body candleResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("parse candles %s: %w", symbol, err)
	}
	if len(body.Data.Candles) == 0 {
		slog.Warn("upstox: no candles returned", "symbol", symbol)
		return market.Series{}, nil
	}

	bars := make([]market.Bar, 0, len(body.Data.Candles))
	for _, row := range body.Data.Candles {
		bar, ok := parseCandle(row)
		if !ok {
			continue
		}
		bars = append(bars, bar)
	}
	slog.Debug("upstox: fetched candles", "symbol", symbol, "rows", len(bars))
	return market.Normalize(bars), nil
}

// parseCandle converts one [ts, o, h, l, c, v, oi] row. Rows without a
// parsable timestamp or close are dropped.
func parseCandle(row []any) (market.Bar, bool) {
	if len(row) < 6 {
		return market.Bar{}, false
	}
	ts, ok := row[0].(string)
	if !ok {
		return market.Bar{}, false
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return market.Bar{}, false
	}
	closePrice, ok := row[4].(float64)
	if !ok {
		return market.Bar{}, false
	}
	num := func(v any) float64 {
		f, _ := v.(float64)
		return f
	}
	return market.Bar{
		// The exchange-local calendar date identifies the session.
		Date:   time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC),
		Open:   num(row[1]),
		High:   num(row[2]),
		Low:    num(row[3]),
		Close:  closePrice,
		Volume: num(row[5]),
	}, true
}
