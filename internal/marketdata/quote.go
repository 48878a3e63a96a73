// Package marketdata resolves per-instrument market values (last traded
// price, previous trading-day close) from broker endpoints whose payload
// shapes vary across API versions. Failures degrade to nil results: one
// symbol's missing data must never block the rest of the portfolio view.
package marketdata

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
)

// ltpKeys is the ordered fallback chain for the last-traded-price field.
// Different quote endpoints return it under different names and depths.
var ltpKeys = []string{"lp", "ltp", "last_price", "lastTradedPrice", "lastPrice"}

// QuoteAPI is the slice of the transport client the quote service needs.
type QuoteAPI interface {
	Quote(ctx context.Context, exchange, token string) (map[string]any, error)
}

// QuoteService extracts last-traded prices from raw quote payloads.
type QuoteService struct {
	api QuoteAPI
	log *slog.Logger
}

// NewQuoteService creates a QuoteService over the given transport.
func NewQuoteService(api QuoteAPI, log *slog.Logger) *QuoteService {
	if log == nil {
		log = slog.Default()
	}
	return &QuoteService{api: api, log: log}
}

// LTP returns the last traded price, or nil if the quote call fails or no
// candidate field parses as a number. Errors are logged, never propagated.
func (s *QuoteService) LTP(ctx context.Context, exchange, token string) *float64 {
	q, err := s.api.Quote(ctx, exchange, token)
	if err != nil {
		s.log.Error("quote fetch failed",
			slog.String("exchange", exchange),
			slog.String("token", token),
			slog.String("err", err.Error()))
		return nil
	}
	if v, ok := probeNumber(q, ltpKeys); ok {
		return &v
	}
	// Nested fallback: the price sometimes sits one level down, e.g. under
	// "data" or an exchange-keyed sub-object.
	for _, sub := range q {
		if m, ok := sub.(map[string]any); ok {
			if v, ok := probeNumber(m, ltpKeys); ok {
				return &v
			}
		}
	}
	return nil
}

// probeNumber returns the first candidate key whose value parses as a number.
func probeNumber(m map[string]any, keys []string) (float64, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		if f, ok := AsFloat(v); ok {
			return f, true
		}
	}
	return 0, false
}

// AsFloat coerces a decoded JSON value to float64. Numeric strings are
// accepted since the broker quotes prices as strings in some versions.
func AsFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		t = strings.TrimSpace(t)
		if t == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
