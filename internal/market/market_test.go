package market

import (
	"testing"
	"time"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestNormalize(t *testing.T) {
	got := Normalize([]Bar{
		{Date: day(3), Close: 3},
		{Date: day(1), Close: 1},
		{Date: day(2), Close: 2},
		{Date: day(2), Close: 22},
	})

	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []float64{1, 22, 3} {
		if got[i].Close != want {
			t.Errorf("bar %d close = %v, want %v", i, got[i].Close, want)
		}
	}
}

func TestNormalize_Empty(t *testing.T) {
	got := Normalize(nil)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil series, got %v", got)
	}
}

func TestSeriesColumns(t *testing.T) {
	s := Series{
		{Date: day(1), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100},
		{Date: day(2), Open: 1.5, High: 3, Low: 1, Close: 2.5, Volume: 200},
	}
	if c := s.Closes(); c[0] != 1.5 || c[1] != 2.5 {
		t.Errorf("closes = %v", c)
	}
	if h := s.Highs(); h[1] != 3 {
		t.Errorf("highs = %v", h)
	}
	if l := s.Lows(); l[0] != 0.5 {
		t.Errorf("lows = %v", l)
	}
	if v := s.Volumes(); v[1] != 200 {
		t.Errorf("volumes = %v", v)
	}
}

func TestCleanSymbol(t *testing.T) {
	tests := []struct{ in, want string }{
		{"RELIANCE.NS", "RELIANCE"},
		{"TCS.BO", "TCS"},
		{" INFY ", "INFY"},
		{"M&M", "M&M"},
	}
	for _, tt := range tests {
		if got := CleanSymbol(tt.in); got != tt.want {
			t.Errorf("CleanSymbol(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
