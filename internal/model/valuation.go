// Package model defines the canonical entities of the valuation pipeline:
// normalized positions, per-position valuation rows, and portfolio totals.
package model

import "encoding/json"

// Position is a normalized broker holding. It is derived from exactly one
// raw holding record and is immutable once built.
type Position struct {
	Symbol   string  `json:"symbol"`
	Exchange string  `json:"exchange"`
	Token    string  `json:"token"`
	Quantity float64 `json:"qty"`
	AvgPrice float64 `json:"avg_price"`
}

// Key returns a unique key for this position's instrument: "exchange:token".
func (p *Position) Key() string {
	return p.Exchange + ":" + p.Token
}

// ValuationRow is a Position enriched with market data and derived metrics.
// LTP, PrevClose and TodayChangePct are nil when the market data could not
// be resolved; Invested and CurrentValue are always populated (a missing
// price counts as 0).
type ValuationRow struct {
	Position
	LTP            *float64 `json:"ltp"`
	PrevClose      *float64 `json:"prev_close"`
	TodayChangePct *float64 `json:"today_change_pct"`
	Invested       float64  `json:"invested"`
	CurrentValue   float64  `json:"current_value"`
	TodayPnL       float64  `json:"today_pnl"`
	OverallPnL     float64  `json:"overall_pnl"`
}

// Derive fills the computed fields from Quantity, AvgPrice, LTP and
// PrevClose. A nil or zero PrevClose short-circuits TodayChangePct to nil
// rather than dividing.
func (r *ValuationRow) Derive() {
	ltp := 0.0
	if r.LTP != nil {
		ltp = *r.LTP
	}
	r.Invested = r.Quantity * r.AvgPrice
	r.CurrentValue = r.Quantity * ltp
	r.OverallPnL = r.CurrentValue - r.Invested
	r.TodayPnL = 0
	r.TodayChangePct = nil
	if r.PrevClose != nil {
		prev := *r.PrevClose
		r.TodayPnL = (ltp - prev) * r.Quantity
		if prev != 0 {
			pct := (ltp - prev) / prev * 100
			r.TodayChangePct = &pct
		}
	}
}

// JSON returns the JSON-encoded row (ignoring errors for hot-path usage).
func (r *ValuationRow) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}

// PortfolioTotals is the element-wise sum of the derived fields across all
// valuation rows. The fold is commutative, so totals are independent of
// row order.
type PortfolioTotals struct {
	Invested     float64 `json:"invested"`
	CurrentValue float64 `json:"current_value"`
	TodayPnL     float64 `json:"today_pnl"`
	OverallPnL   float64 `json:"overall_pnl"`
}

// Add folds one row into the totals.
func (t *PortfolioTotals) Add(r ValuationRow) {
	t.Invested += r.Invested
	t.CurrentValue += r.CurrentValue
	t.TodayPnL += r.TodayPnL
	t.OverallPnL += r.OverallPnL
}
