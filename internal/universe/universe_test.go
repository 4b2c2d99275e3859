package universe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ahmethakanbesel/nse-scanner/internal/metrics"
)

type fakeNSE struct {
	server    *httptest.Server
	homeHits  atomic.Int64
	indexHits atomic.Int64
	fail      atomic.Bool
}

func newFakeNSE(t *testing.T) *fakeNSE {
	t.Helper()
	f := &fakeNSE{}
	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, r *http.Request) {
		f.homeHits.Add(1)
		http.SetCookie(w, &http.Cookie{Name: "nsit", Value: "session", Path: "/"})
	})
	mux.HandleFunc("/api/equity-stockIndices", func(w http.ResponseWriter, r *http.Request) {
		f.indexHits.Add(1)
		if f.fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if _, err := r.Cookie("nsit"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("index") != "NIFTY 50" {
			_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{
			{"symbol": "NIFTY 50"},
			{"symbol": "RELIANCE"},
			{"symbol": "TCS"},
			{"symbol": ""},
			{"symbol": "INFY"},
		}})
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeNSE) client(t *testing.T, opts ...Option) *NSE {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	base := []Option{
		WithBaseURL(f.server.URL),
		WithClient(&http.Client{Jar: jar, Timeout: 5 * time.Second}),
	}
	return NewNSE(append(base, opts...)...)
}

func TestNSE_Get(t *testing.T) {
	f := newFakeNSE(t)
	n := f.client(t)

	got := n.Get(context.Background(), "Nifty 50")
	want := []string{"RELIANCE", "TCS", "INFY"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("member %d = %s, want %s", i, got[i], want[i])
		}
	}
	if f.homeHits.Load() != 1 {
		t.Errorf("home page hits = %d, want 1", f.homeHits.Load())
	}
}

func TestNSE_CachesWithinTTL(t *testing.T) {
	f := newFakeNSE(t)
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	n := f.client(t, WithClock(clock), WithTTL(time.Hour))

	n.Get(context.Background(), "Nifty 50")
	n.Get(context.Background(), "Nifty 50")
	if got := f.indexHits.Load(); got != 1 {
		t.Errorf("index hits = %d, want 1 (cached)", got)
	}

	mu.Lock()
	now = now.Add(61 * time.Minute)
	mu.Unlock()
	n.Get(context.Background(), "Nifty 50")
	if got := f.indexHits.Load(); got != 2 {
		t.Errorf("index hits = %d, want 2 after expiry", got)
	}
}

func TestNSE_EmptyResultNotCached(t *testing.T) {
	f := newFakeNSE(t)
	n := f.client(t)

	if got := n.Get(context.Background(), "Nifty IT"); len(got) != 0 {
		t.Errorf("expected empty universe, got %v", got)
	}
	n.Get(context.Background(), "Nifty IT")
	if got := f.indexHits.Load(); got != 2 {
		t.Errorf("index hits = %d, want 2", got)
	}
}

func TestNSE_UnknownUniverse(t *testing.T) {
	f := newFakeNSE(t)
	n := f.client(t)
	if got := n.Get(context.Background(), "S&P 500"); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
	if f.indexHits.Load() != 0 {
		t.Error("unknown universe should not hit NSE")
	}
}

func TestNSE_BreakerOpensAfterFailures(t *testing.T) {
	f := newFakeNSE(t)
	f.fail.Store(true)
	m := metrics.New(prometheus.NewRegistry())
	n := f.client(t, WithMetrics(m))

	for range 5 {
		if got := n.Get(context.Background(), "Nifty 50"); got != nil {
			t.Fatalf("expected nil during outage, got %v", got)
		}
	}
	if got := f.indexHits.Load(); got != 3 {
		t.Errorf("index hits = %d, want 3 before the breaker opened", got)
	}
}

func TestNSE_Names(t *testing.T) {
	names := NewNSE().Names()
	if len(names) != 10 {
		t.Fatalf("expected 10 universes, got %d", len(names))
	}
	if names[0] != "Nifty 100" || names[3] != "Nifty 50" {
		t.Errorf("unexpected order: %v", names)
	}
}

func TestStatic(t *testing.T) {
	s := NewStatic(map[string][]string{
		"Custom": {"RELIANCE", "TCS"},
		"Banks":  {"HDFCBANK"},
	})
	names := s.Names()
	if len(names) != 2 || names[0] != "Banks" {
		t.Errorf("names = %v", names)
	}
	got := s.Get(context.Background(), "Custom")
	got[0] = "MUTATED"
	if s.Get(context.Background(), "Custom")[0] != "RELIANCE" {
		t.Error("Get exposed internal storage")
	}
	if len(s.Get(context.Background(), "Missing")) != 0 {
		t.Error("expected no members for unknown universe")
	}
}
