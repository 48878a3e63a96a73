// Package gateway serves the valuation table to dashboard clients over HTTP
// and WebSocket, and mirrors each snapshot to Redis PubSub for external
// consumers.
package gateway

import (
	"encoding/json"
	"time"

	"integrate-dash/internal/markethours"
	"integrate-dash/internal/model"
)

// SnapshotRow is a valuation row plus presentation-edge fields.
type SnapshotRow struct {
	model.ValuationRow
	// AllocationPct is the invested value as a percentage of the configured
	// total capital; omitted when no capital figure is configured.
	AllocationPct *float64 `json:"allocation_pct,omitempty"`
}

// Snapshot is one full portfolio view as sent to dashboard clients.
type Snapshot struct {
	Rows         []SnapshotRow         `json:"rows"`
	Totals       model.PortfolioTotals `json:"totals"`
	ActID        string                `json:"actid,omitempty"`
	MarketOpen   bool                  `json:"market_open"`
	MarketStatus string                `json:"market_status"`
	GeneratedAt  time.Time             `json:"generated_at"`
}

// BuildSnapshot wraps the pipeline output for presentation. totalCapital <= 0
// disables allocation percentages.
func BuildSnapshot(rows []model.ValuationRow, totals model.PortfolioTotals, actID string, totalCapital float64, at time.Time) Snapshot {
	out := Snapshot{
		Rows:         make([]SnapshotRow, len(rows)),
		Totals:       totals,
		ActID:        actID,
		MarketOpen:   markethours.IsMarketOpen(at),
		MarketStatus: markethours.StatusString(at),
		GeneratedAt:  at,
	}
	for i, r := range rows {
		sr := SnapshotRow{ValuationRow: r}
		if totalCapital > 0 {
			pct := r.Invested / totalCapital * 100
			sr.AllocationPct = &pct
		}
		out.Rows[i] = sr
	}
	return out
}

// JSON returns the JSON-encoded snapshot (ignoring errors for hot-path usage).
func (s *Snapshot) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}
