package server_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ahmethakanbesel/nse-scanner/internal/job"
	"github.com/ahmethakanbesel/nse-scanner/internal/market"
	"github.com/ahmethakanbesel/nse-scanner/internal/metrics"
	"github.com/ahmethakanbesel/nse-scanner/internal/platform/sqlite"
	tokenrepo "github.com/ahmethakanbesel/nse-scanner/internal/repository/token"
	"github.com/ahmethakanbesel/nse-scanner/internal/scan"
	"github.com/ahmethakanbesel/nse-scanner/internal/scanner"
	"github.com/ahmethakanbesel/nse-scanner/internal/server"
	"github.com/ahmethakanbesel/nse-scanner/internal/strategy"
	"github.com/ahmethakanbesel/nse-scanner/internal/token"
	"github.com/ahmethakanbesel/nse-scanner/internal/universe"
)

type fakeProvider struct {
	series map[string]market.Series
	err    error
}

func (p *fakeProvider) FetchSeries(_ context.Context, symbol string, _ int) (market.Series, error) {
	if p.err != nil {
		return nil, p.err
	}
	s, ok := p.series[symbol]
	if !ok {
		return nil, market.ErrNotFound
	}
	return s, nil
}

// slowProvider delays every fetch.
type slowProvider struct {
	market.Provider
	delay time.Duration
}

func (p slowProvider) FetchSeries(ctx context.Context, symbol string, days int) (market.Series, error) {
	select {
	case <-time.After(p.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return p.Provider.FetchSeries(ctx, symbol, days)
}

type fakeOAuth struct{}

func (fakeOAuth) LoginURL() (string, error) {
	return "https://upstox.test/login/authorization/dialog?client_id=key", nil
}

func (fakeOAuth) Exchange(_ context.Context, code string) (string, error) {
	if code != "good" {
		return "", errors.New("invalid code")
	}
	return "fresh-token", nil
}

func fixture(closes []float64) market.Series {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := make(market.Series, len(closes))
	for i, c := range closes {
		s[i] = market.Bar{Date: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1000}
	}
	return s
}

// oversold ends at RSI(14) == 20.
func oversold() market.Series {
	deltas := []float64{5, 5, -4, -4, -4, -4, -4, -4, -4, -4, -4, -4, 0, 0}
	closes := []float64{100}
	for _, d := range deltas {
		closes = append(closes, closes[len(closes)-1]+d)
	}
	for range 20 {
		closes = append(closes, closes[len(closes)-1])
	}
	return fixture(closes)
}

func rising(n int) market.Series {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	return fixture(closes)
}

type e2eOptions struct {
	provider     market.Provider
	envToken     string
	withAuth     bool
	writeTimeout time.Duration
}

func setupE2E(t *testing.T, o e2eOptions) *httptest.Server {
	t.Helper()

	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if o.provider == nil {
		o.provider = &fakeProvider{series: map[string]market.Series{
			"A": oversold(),
			"B": rising(40),
			"C": rising(10),
		}}
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	tokenSvc := token.NewService(
		tokenrepo.NewRepository(db.DB),
		token.WithEnvToken(o.envToken),
		token.WithOAuth(fakeOAuth{}),
		token.WithFrontendURL("http://frontend.test"),
	)

	store := job.NewStore()
	jobSvc := job.NewService(store, m)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	var opts []scan.Option
	if o.withAuth {
		opts = append(opts, scan.WithAuth(tokenSvc))
	}
	scanSvc := scan.NewService(
		ctx,
		scanner.New(scanner.WithWorkers(2), scanner.WithInterval(0), scanner.WithMetrics(m)),
		strategy.Default(),
		universe.NewStatic(map[string][]string{"Test": {"A", "B.NS", "C"}}),
		o.provider,
		store,
		opts...,
	)

	ts := httptest.NewUnstartedServer(server.NewHandler(server.Deps{
		Scans:    scanSvc,
		Jobs:     jobSvc,
		Tokens:   tokenSvc,
		Gatherer: reg,
	}))
	ts.Config.WriteTimeout = o.writeTimeout
	ts.Start()
	t.Cleanup(ts.Close)
	return ts
}

func decode[T any](t *testing.T, resp *http.Response) server.APIResponse[T] {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var out server.APIResponse[T]
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b)) //nolint:gosec // test URL
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	return resp
}

// jobView mirrors the job snapshot with results kept as raw JSON objects.
type jobView struct {
	ID        string           `json:"id"`
	Status    job.Status       `json:"status"`
	Total     int              `json:"total"`
	Completed int              `json:"completed"`
	Matches   []map[string]any `json:"matches"`
	Error     string           `json:"error"`
	ErrorCode string           `json:"errorCode"`
}

// waitForJob polls the status endpoint until the job reaches a terminal status.
func waitForJob(t *testing.T, baseURL, jobID string) jobView {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for job %s to complete", jobID)
		default:
		}

		resp, err := http.Get(baseURL + "/api/scan/status/" + jobID) //nolint:gosec // test URL
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status endpoint returned %d", resp.StatusCode)
		}
		view := decode[jobView](t, resp).Data
		if view.Status.Terminal() {
			return view
		}

		time.Sleep(20 * time.Millisecond)
	}
}

func TestE2E_Health(t *testing.T) {
	ts := setupE2E(t, e2eOptions{envToken: "env-token"})

	for _, path := range []string{"/health", "/api/health"} {
		resp, err := http.Get(ts.URL + path) //nolint:gosec // test URL
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
		body := decode[struct {
			Status string       `json:"status"`
			Token  token.Status `json:"token"`
		}](t, resp)
		if body.Data.Status != "ok" || !body.Data.Token.Valid {
			t.Errorf("%s: unexpected body %+v", path, body.Data)
		}
	}
}

func TestE2E_ListStrategies(t *testing.T) {
	ts := setupE2E(t, e2eOptions{})

	resp, err := http.Get(ts.URL + "/api/strategies") //nolint:gosec // test URL
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	body := decode[[]strategy.Info](t, resp)
	if len(body.Data) != 7 {
		t.Fatalf("expected 7 strategies, got %d", len(body.Data))
	}
	if body.Data[0].Name != "RSI Oversold" {
		t.Errorf("expected RSI Oversold first, got %q", body.Data[0].Name)
	}
}

func TestE2E_ListUniverses(t *testing.T) {
	ts := setupE2E(t, e2eOptions{})

	resp, err := http.Get(ts.URL + "/api/universes") //nolint:gosec // test URL
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	body := decode[[]scan.UniverseInfo](t, resp)
	if len(body.Data) != 1 || body.Data[0].Name != "Test" || body.Data[0].Count != 3 {
		t.Errorf("unexpected universes %+v", body.Data)
	}
}

func TestE2E_StartAndPoll(t *testing.T) {
	ts := setupE2E(t, e2eOptions{})

	resp := postJSON(t, ts.URL+"/api/scan/start", scan.ScanRequest{Strategy: "RSI Oversold", Universe: "Test"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	started := decode[scan.StartScanResponse](t, resp).Data
	if started.JobID == "" || started.Total != 3 {
		t.Fatalf("unexpected start response %+v", started)
	}

	j := waitForJob(t, ts.URL, started.JobID)
	if j.Status != job.StatusDone {
		t.Fatalf("expected done, got %s (%s)", j.Status, j.Error)
	}
	if j.Completed != 3 || j.Total != 3 {
		t.Errorf("expected 3/3, got %d/%d", j.Completed, j.Total)
	}
	if len(j.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(j.Matches))
	}
	m := j.Matches[0]
	if m["ticker"] != "A" || m["strength"] != "Strong" || m["rsi"] != 20.0 {
		t.Errorf("unexpected match %v", m)
	}
}

func TestE2E_StartValidation(t *testing.T) {
	ts := setupE2E(t, e2eOptions{})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", "{", http.StatusBadRequest},
		{"empty body", "", http.StatusBadRequest},
		{"missing universe", `{"strategy":"RSI Oversold"}`, http.StatusBadRequest},
		{"unknown strategy", `{"strategy":"Nope","universe":"Test"}`, http.StatusNotFound},
		{"unknown universe", `{"strategy":"RSI Oversold","universe":"Nope"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/api/scan/start", "application/json", strings.NewReader(tt.body)) //nolint:gosec // test URL
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			_ = resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

func TestE2E_StatusUnknownJob(t *testing.T) {
	ts := setupE2E(t, e2eOptions{})

	resp, err := http.Get(ts.URL + "/api/scan/status/does-not-exist") //nolint:gosec // test URL
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestE2E_AllUnauthorized(t *testing.T) {
	ts := setupE2E(t, e2eOptions{provider: &fakeProvider{err: market.ErrUnauthorized}})

	resp := postJSON(t, ts.URL+"/api/scan/start", scan.ScanRequest{Strategy: "RSI Oversold", Universe: "Test"})
	started := decode[scan.StartScanResponse](t, resp).Data

	j := waitForJob(t, ts.URL, started.JobID)
	if j.Status != job.StatusError || j.ErrorCode != "UNAUTHORIZED" {
		t.Errorf("expected UNAUTHORIZED error, got %s/%s", j.Status, j.ErrorCode)
	}
	if len(j.Matches) != 0 {
		t.Errorf("expected no matches, got %d", len(j.Matches))
	}
}

func TestE2E_RequiresLogin(t *testing.T) {
	ts := setupE2E(t, e2eOptions{withAuth: true})

	resp := postJSON(t, ts.URL+"/api/scan", scan.ScanRequest{Strategy: "RSI Oversold", Universe: "Test"})
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestE2E_RunScan(t *testing.T) {
	ts := setupE2E(t, e2eOptions{})

	resp := postJSON(t, ts.URL+"/api/scan", scan.ScanRequest{Strategy: "RSI Oversold", Universe: "Test"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decode[struct {
		Strategy     string           `json:"strategy"`
		TotalScanned int              `json:"totalScanned"`
		Matches      int              `json:"matches"`
		Results      []map[string]any `json:"results"`
	}](t, resp).Data
	if body.TotalScanned != 3 || body.Matches != 1 || body.Results[0]["ticker"] != "A" {
		t.Errorf("unexpected run response %+v", body)
	}
}

func TestE2E_RunScanOutlastsWriteTimeout(t *testing.T) {
	base := &fakeProvider{series: map[string]market.Series{"A": oversold(), "B": rising(40), "C": rising(10)}}
	ts := setupE2E(t, e2eOptions{
		provider:     slowProvider{Provider: base, delay: 150 * time.Millisecond},
		writeTimeout: 50 * time.Millisecond,
	})

	resp := postJSON(t, ts.URL+"/api/scan", scan.ScanRequest{Strategy: "RSI Oversold", Universe: "Test"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decode[scan.RunScanResponse](t, resp).Data
	if body.TotalScanned != 3 || body.Matches != 1 {
		t.Errorf("unexpected run response %+v", body)
	}
}

func TestE2E_Stream(t *testing.T) {
	ts := setupE2E(t, e2eOptions{})

	resp, err := http.Get(ts.URL + "/api/scan/stream?strategy=RSI+Oversold&universe=Test") //nolint:gosec // test URL
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected event stream, got %q", ct)
	}
	if resp.Header.Get("X-Accel-Buffering") != "no" {
		t.Error("expected proxy buffering to be disabled")
	}

	var events []scanner.Event
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line, ok := strings.CutPrefix(sc.Text(), "data: ")
		if !ok {
			continue
		}
		var ev struct {
			scanner.Event
			Result json.RawMessage `json:"result"`
		}
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("decode event %q: %v", line, err)
		}
		events = append(events, ev.Event)
	}

	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	last := events[len(events)-1]
	if last.Type != scanner.EventDone || last.Total != 3 || last.Matches != 1 {
		t.Errorf("unexpected terminal event %+v", last)
	}
}

func TestE2E_StreamValidation(t *testing.T) {
	ts := setupE2E(t, e2eOptions{})

	resp, err := http.Get(ts.URL + "/api/scan/stream?strategy=RSI+Oversold") //nolint:gosec // test URL
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	body := decode[string](t, resp)
	if resp.StatusCode != http.StatusBadRequest || body.Message != "universe is required" {
		t.Errorf("unexpected response %d %q", resp.StatusCode, body.Message)
	}
}

func TestE2E_AuthFlow(t *testing.T) {
	ts := setupE2E(t, e2eOptions{withAuth: true})

	resp, err := http.Get(ts.URL + "/api/auth/login-url") //nolint:gosec // test URL
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	login := decode[token.LoginURLResponse](t, resp).Data
	if !strings.Contains(login.LoginURL, "client_id=key") {
		t.Errorf("unexpected login url %q", login.LoginURL)
	}

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	resp, err = client.Get(ts.URL + "/api/auth/callback?code=bad")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected 500 for failed exchange, got %d", resp.StatusCode)
	}

	resp, err = client.Get(ts.URL + "/api/auth/callback?code=good")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "http://frontend.test?auth=success" {
		t.Errorf("unexpected redirect %q", loc)
	}

	// The saved token now satisfies the login requirement.
	resp = postJSON(t, ts.URL+"/api/scan", scan.ScanRequest{Strategy: "RSI Oversold", Universe: "Test"})
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 after login, got %d", resp.StatusCode)
	}
}

func TestE2E_CORS(t *testing.T) {
	ts := setupE2E(t, e2eOptions{})

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/scan/start", nil)
	req.Header.Set("Origin", "http://frontend.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	_ = resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard origin, got %q", got)
	}
}

func TestE2E_Metrics(t *testing.T) {
	ts := setupE2E(t, e2eOptions{})

	resp := postJSON(t, ts.URL+"/api/scan", scan.ScanRequest{Strategy: "RSI Oversold", Universe: "Test"})
	_ = resp.Body.Close()

	resp, err := http.Get(ts.URL + "/metrics") //nolint:gosec // test URL
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	if !strings.Contains(buf.String(), "nse_scanner_") {
		t.Errorf("expected scanner metrics in exposition, got:\n%s", buf.String())
	}
}

func TestE2E_RequestID(t *testing.T) {
	ts := setupE2E(t, e2eOptions{})

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	req.Header.Set("X-Request-ID", "abc123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	_ = resp.Body.Close()
	if resp.Header.Get("X-Request-ID") != "abc123" {
		t.Errorf("expected request id to be echoed, got %q", resp.Header.Get("X-Request-ID"))
	}
}
