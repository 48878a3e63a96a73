package holdings

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"integrate-dash/internal/model"
)

type fakeSource struct {
	resp any
	err  error
}

func (f *fakeSource) Holdings(ctx context.Context) (any, error) { return f.resp, f.err }

// fakeMarket resolves quotes and closes from fixed per-token tables; tokens
// in the failLTP set simulate an unresolvable quote.
type fakeMarket struct {
	ltp     map[string]float64
	prev    map[string]float64
	failLTP map[string]bool
}

func (f *fakeMarket) LTP(ctx context.Context, exchange, token string) *float64 {
	if f.failLTP[token] {
		return nil
	}
	if v, ok := f.ltp[token]; ok {
		return &v
	}
	return nil
}

func (f *fakeMarket) PreviousClose(ctx context.Context, segment, token, timeframe string, refDate time.Time) *float64 {
	if v, ok := f.prev[token]; ok {
		return &v
	}
	return nil
}

func holding(token string, qty, avg float64) map[string]any {
	return map[string]any{
		"tradingsymbol": map[string]any{"exchange": "NSE", "tradingsymbol": "SYM" + token, "token": token},
		"dp_qty":        qty,
		"avg_buy_price": avg,
	}
}

func TestBuildTable_DerivedMetrics(t *testing.T) {
	mkt := &fakeMarket{ltp: map[string]float64{"1": 120}, prev: map[string]float64{"1": 110}}
	v := &Valuer{
		Source:  &fakeSource{resp: map[string]any{"data": []any{holding("1", 10, 100)}}},
		Quotes:  mkt,
		History: mkt,
	}
	rows, totals, err := v.BuildTable(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	r := rows[0]
	if r.Invested != 1000 || r.CurrentValue != 1200 || r.TodayPnL != 100 || r.OverallPnL != 200 {
		t.Errorf("unexpected metrics: %+v", r)
	}
	if r.TodayChangePct == nil || math.Abs(*r.TodayChangePct-9.0909) > 0.001 {
		t.Errorf("expected today_change_pct ~9.09, got %v", r.TodayChangePct)
	}
	if totals.Invested != 1000 || totals.CurrentValue != 1200 {
		t.Errorf("unexpected totals: %+v", totals)
	}
}

func TestBuildTable_ZeroQuantity(t *testing.T) {
	mkt := &fakeMarket{ltp: map[string]float64{"1": 500}, prev: map[string]float64{"1": 480}}
	v := &Valuer{
		Source:  &fakeSource{resp: []any{holding("1", 0, 100)}},
		Quotes:  mkt,
		History: mkt,
	}
	rows, _, err := v.BuildTable(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	r := rows[0]
	if r.Invested != 0 || r.CurrentValue != 0 || r.TodayPnL != 0 || r.OverallPnL != 0 {
		t.Errorf("zero-quantity row must have zero money fields: %+v", r)
	}
}

func TestBuildTable_MissingMarketDataDegrades(t *testing.T) {
	mkt := &fakeMarket{failLTP: map[string]bool{"1": true}}
	v := &Valuer{
		Source:  &fakeSource{resp: []any{holding("1", 10, 100)}},
		Quotes:  mkt,
		History: mkt,
	}
	rows, _, err := v.BuildTable(context.Background())
	if err != nil {
		t.Fatalf("build must continue past resolution failures: %v", err)
	}
	r := rows[0]
	if r.LTP != nil || r.PrevClose != nil || r.TodayChangePct != nil {
		t.Errorf("expected nil market fields: %+v", r)
	}
	// Missing price counts as 0 for current value; invested stays consistent.
	if r.Invested != 1000 || r.CurrentValue != 0 || r.OverallPnL != -1000 || r.TodayPnL != 0 {
		t.Errorf("unexpected degraded metrics: %+v", r)
	}
}

func TestBuildTable_ZeroPrevCloseShortCircuitsPct(t *testing.T) {
	mkt := &fakeMarket{ltp: map[string]float64{"1": 50}, prev: map[string]float64{"1": 0}}
	v := &Valuer{
		Source:  &fakeSource{resp: []any{holding("1", 2, 40)}},
		Quotes:  mkt,
		History: mkt,
	}
	rows, _, err := v.BuildTable(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if rows[0].TodayChangePct != nil {
		t.Errorf("expected nil pct for zero prev close, got %v", *rows[0].TodayChangePct)
	}
	if rows[0].TodayPnL != 100 {
		t.Errorf("expected today pnl (50-0)*2=100, got %v", rows[0].TodayPnL)
	}
}

func TestBuildTable_FailureIsolationAcrossRows(t *testing.T) {
	mkt := &fakeMarket{
		ltp:     map[string]float64{"2": 20},
		prev:    map[string]float64{"2": 18},
		failLTP: map[string]bool{"1": true},
	}
	v := &Valuer{
		Source:  &fakeSource{resp: []any{holding("1", 5, 10), holding("2", 5, 10)}},
		Quotes:  mkt,
		History: mkt,
	}
	rows, _, err := v.BuildTable(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if rows[0].LTP != nil {
		t.Errorf("row 0 should have degraded")
	}
	if rows[1].LTP == nil || *rows[1].LTP != 20 {
		t.Errorf("row 1 must be unaffected by row 0's failure: %+v", rows[1])
	}
}

func TestBuildTable_TotalsOrderIndependent(t *testing.T) {
	mkt := &fakeMarket{
		ltp:  map[string]float64{"1": 120, "2": 55, "3": 900},
		prev: map[string]float64{"1": 110, "2": 60, "3": 850},
	}
	base := []any{holding("1", 10, 100), holding("2", 40, 50), holding("3", 2, 1000)}

	var ref *model.PortfolioTotals
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 5; trial++ {
		perm := make([]any, len(base))
		for i, j := range rng.Perm(len(base)) {
			perm[i] = base[j]
		}
		v := &Valuer{Source: &fakeSource{resp: perm}, Quotes: mkt, History: mkt}
		_, totals, err := v.BuildTable(context.Background())
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		if ref == nil {
			ref = &totals
			continue
		}
		if math.Abs(totals.Invested-ref.Invested) > 1e-9 ||
			math.Abs(totals.CurrentValue-ref.CurrentValue) > 1e-9 ||
			math.Abs(totals.TodayPnL-ref.TodayPnL) > 1e-9 ||
			math.Abs(totals.OverallPnL-ref.OverallPnL) > 1e-9 {
			t.Errorf("totals differ across permutations: %+v vs %+v", totals, *ref)
		}
	}
}

func TestBuildTable_ParallelPreservesOrder(t *testing.T) {
	mkt := &fakeMarket{ltp: map[string]float64{}, prev: map[string]float64{}}
	var items []any
	for i := 0; i < 50; i++ {
		tok := "T" + string(rune('A'+i%26)) + string(rune('A'+i/26))
		mkt.ltp[tok] = float64(i)
		items = append(items, holding(tok, 1, 1))
	}
	v := &Valuer{
		Source:  &fakeSource{resp: items},
		Quotes:  mkt,
		History: mkt,
		Workers: 8,
	}
	rows, _, err := v.BuildTable(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(rows) != 50 {
		t.Fatalf("expected 50 rows, got %d", len(rows))
	}
	for i, r := range rows {
		want := items[i].(map[string]any)["tradingsymbol"].(map[string]any)["token"].(string)
		if r.Token != want {
			t.Fatalf("row %d out of order: got %s want %s", i, r.Token, want)
		}
	}
}

func TestBuildTable_HoldingsFetchErrorPropagates(t *testing.T) {
	v := &Valuer{
		Source:  &fakeSource{err: errors.New("boom")},
		Quotes:  &fakeMarket{},
		History: &fakeMarket{},
	}
	if _, _, err := v.BuildTable(context.Background()); err == nil {
		t.Error("expected holdings fetch error to propagate")
	}
}

func TestBuildTable_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mkt := &fakeMarket{}
	v := &Valuer{
		Source:  &fakeSource{resp: []any{holding("1", 1, 1), holding("2", 1, 1)}},
		Quotes:  mkt,
		History: mkt,
	}
	if _, _, err := v.BuildTable(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
