package marketdata

import (
	"context"
	"errors"
	"testing"
)

type fakeQuoteAPI struct {
	resp map[string]any
	err  error
}

func (f *fakeQuoteAPI) Quote(ctx context.Context, exchange, token string) (map[string]any, error) {
	return f.resp, f.err
}

func TestLTP_TopLevelVariants(t *testing.T) {
	cases := []struct {
		name string
		resp map[string]any
		want float64
	}{
		{"lp", map[string]any{"lp": 123.45}, 123.45},
		{"ltp", map[string]any{"ltp": "99.5"}, 99.5},
		{"last_price", map[string]any{"last_price": 10.0}, 10},
		{"lastTradedPrice", map[string]any{"lastTradedPrice": "250"}, 250},
		{"priority", map[string]any{"ltp": 2.0, "lp": 1.0}, 1}, // lp wins over ltp
	}
	for _, tc := range cases {
		svc := NewQuoteService(&fakeQuoteAPI{resp: tc.resp}, nil)
		got := svc.LTP(context.Background(), "NSE", "22")
		if got == nil {
			t.Errorf("%s: expected %v, got nil", tc.name, tc.want)
			continue
		}
		if *got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, *got)
		}
	}
}

func TestLTP_NestedFallback(t *testing.T) {
	resp := map[string]any{
		"status": "SUCCESS",
		"data":   map[string]any{"lastPrice": "88.8"},
	}
	svc := NewQuoteService(&fakeQuoteAPI{resp: resp}, nil)
	got := svc.LTP(context.Background(), "NSE", "22")
	if got == nil || *got != 88.8 {
		t.Errorf("expected nested lastPrice 88.8, got %v", got)
	}
}

func TestLTP_ErrorDegradesToNil(t *testing.T) {
	svc := NewQuoteService(&fakeQuoteAPI{err: errors.New("boom")}, nil)
	if got := svc.LTP(context.Background(), "NSE", "22"); got != nil {
		t.Errorf("expected nil on quote error, got %v", *got)
	}
}

func TestLTP_NoCandidateField(t *testing.T) {
	svc := NewQuoteService(&fakeQuoteAPI{resp: map[string]any{"volume": 1000}}, nil)
	if got := svc.LTP(context.Background(), "NSE", "22"); got != nil {
		t.Errorf("expected nil when no price field present, got %v", *got)
	}
}

func TestLTP_NonNumericCandidateSkipped(t *testing.T) {
	// An unparseable lp must not hide a parseable ltp further down the chain.
	resp := map[string]any{"lp": "N/A", "ltp": "42.5"}
	svc := NewQuoteService(&fakeQuoteAPI{resp: resp}, nil)
	got := svc.LTP(context.Background(), "NSE", "22")
	if got == nil || *got != 42.5 {
		t.Errorf("expected 42.5 via fallback past non-numeric lp, got %v", got)
	}
}

func TestAsFloat(t *testing.T) {
	if f, ok := AsFloat("  12.5 "); !ok || f != 12.5 {
		t.Errorf("trimmed string: got %v %v", f, ok)
	}
	if _, ok := AsFloat(""); ok {
		t.Error("empty string should not parse")
	}
	if _, ok := AsFloat(map[string]any{}); ok {
		t.Error("map should not parse")
	}
}
