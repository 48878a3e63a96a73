package gateway

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"integrate-dash/internal/model"
)

func fptr(v float64) *float64 { return &v }

func sampleRows() ([]model.ValuationRow, model.PortfolioTotals) {
	rows := []model.ValuationRow{
		{Position: model.Position{Symbol: "SBIN-EQ", Exchange: "NSE", Token: "3045", Quantity: 10, AvgPrice: 100}, LTP: fptr(120), PrevClose: fptr(110)},
		{Position: model.Position{Symbol: "TCS-EQ", Exchange: "NSE", Token: "11536", Quantity: 2, AvgPrice: 3000}, LTP: fptr(3100), PrevClose: fptr(3050)},
	}
	var totals model.PortfolioTotals
	for i := range rows {
		rows[i].Derive()
		totals.Add(rows[i])
	}
	return rows, totals
}

func TestBuildSnapshot_AllocationPct(t *testing.T) {
	rows, totals := sampleRows()
	snap := BuildSnapshot(rows, totals, "ACC123", 10000, time.Now())

	if len(snap.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(snap.Rows))
	}
	// First row invested 10*100 = 1000 of 10000 capital = 10%.
	if snap.Rows[0].AllocationPct == nil {
		t.Fatal("expected allocation pct on first row")
	}
	if math.Abs(*snap.Rows[0].AllocationPct-10) > 1e-9 {
		t.Errorf("expected 10%% allocation, got %v", *snap.Rows[0].AllocationPct)
	}
	// Second row invested 6000 of 10000 = 60%.
	if math.Abs(*snap.Rows[1].AllocationPct-60) > 1e-9 {
		t.Errorf("expected 60%% allocation, got %v", *snap.Rows[1].AllocationPct)
	}
	if snap.ActID != "ACC123" {
		t.Errorf("actid not carried: %q", snap.ActID)
	}
}

func TestBuildSnapshot_NoCapitalOmitsAllocation(t *testing.T) {
	rows, totals := sampleRows()
	snap := BuildSnapshot(rows, totals, "", 0, time.Now())

	for i, r := range snap.Rows {
		if r.AllocationPct != nil {
			t.Errorf("row %d: expected nil allocation without capital, got %v", i, *r.AllocationPct)
		}
	}

	var decoded map[string]any
	if err := json.Unmarshal(snap.JSON(), &decoded); err != nil {
		t.Fatalf("snapshot json invalid: %v", err)
	}
	rowsJSON := decoded["rows"].([]any)
	first := rowsJSON[0].(map[string]any)
	if _, present := first["allocation_pct"]; present {
		t.Error("allocation_pct should be omitted from json when capital is unset")
	}
}

func TestHub_BroadcastStoresLatest(t *testing.T) {
	h := NewHub(nil)
	if h.Latest() != nil {
		t.Fatal("expected nil latest before first broadcast")
	}
	h.Broadcast([]byte(`{"rows":[]}`))
	if string(h.Latest()) != `{"rows":[]}` {
		t.Errorf("latest not stored: %s", h.Latest())
	}
	if h.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", h.ClientCount())
	}
}
