// Package holdings turns raw broker holdings into canonical positions and
// runs the portfolio-valuation pipeline over them.
package holdings

import (
	"fmt"
	"strings"

	"integrate-dash/internal/marketdata"
	"integrate-dash/internal/model"
)

// Field-name fallback chains for raw holding records. The holdings schema is
// not uniform across broker API versions, so each logical field has one
// ordered candidate list here and nowhere else.
var (
	qtyKeys      = []string{"trade_qty", "dp_qty", "quantity"}
	avgPriceKeys = []string{"avg_buy_price", "avg_price"}
)

// normalizePosition extracts a canonical Position from one raw holding.
// The nested "tradingsymbol" sub-field may be a list of exchange-tagged
// records, a single record, or absent/scalar; quantity and average price
// fall back through their candidate chains and default to 0.
func normalizePosition(raw map[string]any, targetExchange string) model.Position {
	rec := chooseExchangeRecord(raw, targetExchange)

	exch := strings.ToUpper(asString(rec["exchange"]))
	if exch == "" {
		exch = targetExchange
	}
	token := strings.TrimSpace(asString(rec["token"]))
	sym := asString(rec["tradingsymbol"])
	if sym == "" {
		sym = asString(raw["symbol"])
	}
	if sym == "" {
		sym = token
	}

	return model.Position{
		Symbol:   sym,
		Exchange: exch,
		Token:    token,
		Quantity: probeFloat(raw, qtyKeys),
		AvgPrice: probeFloat(raw, avgPriceKeys),
	}
}

// chooseExchangeRecord resolves the variant tradingsymbol shapes. For a list,
// the record tagged with the target exchange wins regardless of order; when
// none matches, the first entry is used. A scalar or missing field is
// synthesized into a minimal record from the holding's own symbol/token.
func chooseExchangeRecord(raw map[string]any, targetExchange string) map[string]any {
	switch field := raw["tradingsymbol"].(type) {
	case []any:
		var first map[string]any
		for _, item := range field {
			rec, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if first == nil {
				first = rec
			}
			if strings.EqualFold(asString(rec["exchange"]), targetExchange) {
				return rec
			}
		}
		if first != nil {
			return first
		}
	case map[string]any:
		return field
	}
	return map[string]any{
		"exchange":      targetExchange,
		"tradingsymbol": asString(raw["symbol"]),
		"token":         asString(raw["token"]),
	}
}

func probeFloat(m map[string]any, keys []string) float64 {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if f, ok := marketdata.AsFloat(v); ok {
				return f
			}
		}
	}
	return 0
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// extractRecords unwraps the holdings payload into a list of raw records.
// The endpoint returns either {status, data: [...]} (or "holdings"), a
// keyed map of records, or a bare list depending on API version.
func extractRecords(resp any) []map[string]any {
	var items []any
	switch v := resp.(type) {
	case []any:
		items = v
	case map[string]any:
		data, ok := v["data"]
		if !ok {
			data = v["holdings"]
		}
		switch d := data.(type) {
		case []any:
			items = d
		case map[string]any:
			for _, item := range d {
				items = append(items, item)
			}
		}
	}

	records := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if rec, ok := item.(map[string]any); ok {
			records = append(records, rec)
		}
	}
	return records
}
