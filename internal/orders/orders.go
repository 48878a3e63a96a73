// Package orders is the order-management collaborator: thin typed
// pass-throughs over the broker transport for regular, GTT and OCO orders.
// It consumes Position data from the valuation core but adds no pipeline
// logic of its own.
package orders

import (
	"context"
	"log/slog"

	"integrate-dash/pkg/integrate"
)

// Service wraps the authenticated transport for order management.
type Service struct {
	client *integrate.Client
	log    *slog.Logger
}

// NewService creates an order Service over a session-bound client.
func NewService(client *integrate.Client, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{client: client, log: log}
}

// PlaceOrder submits a simple order. Side is BUY or SELL; price 0 places a
// market order.
func (s *Service) PlaceOrder(ctx context.Context, symbol string, qty int, side string, price float64, orderType string) (any, error) {
	if orderType == "" {
		orderType = "MARKET"
	}
	payload := map[string]any{
		"symbol":   symbol,
		"quantity": qty,
		"side":     side,
		"type":     orderType,
	}
	if price != 0 {
		payload["price"] = price
	}
	s.log.Info("placing order",
		slog.String("symbol", symbol),
		slog.Int("qty", qty),
		slog.String("side", side),
		slog.String("type", orderType))
	return s.client.PlaceOrder(ctx, payload)
}

// ModifyOrder forwards a modify payload.
func (s *Service) ModifyOrder(ctx context.Context, payload map[string]any) (any, error) {
	return s.client.ModifyOrder(ctx, payload)
}

// CancelOrder cancels a pending order by id.
func (s *Service) CancelOrder(ctx context.Context, orderID string) (any, error) {
	return s.client.CancelOrder(ctx, orderID)
}

// OrderBook returns all orders for the session.
func (s *Service) OrderBook(ctx context.Context) (any, error) {
	return s.client.Orders(ctx)
}

// TradeBook returns all executed trades for the session.
func (s *Service) TradeBook(ctx context.Context) (any, error) {
	return s.client.Trades(ctx)
}

// GTTOrders returns the pending GTT rules.
func (s *Service) GTTOrders(ctx context.Context) (any, error) {
	return s.client.GTTOrders(ctx)
}

// GTTLadder describes a stop-loss plus a ladder of profit targets for one
// symbol, placed as individual GTT rules.
type GTTLadder struct {
	Symbol   string
	Quantity int
	StopLoss float64
	Targets  []float64
}

// Rules expands the ladder into per-rule payloads: one LESS_THAN stop-loss
// sell and one GREATER_THAN limit sell per target.
func (l GTTLadder) Rules() []map[string]any {
	rules := make([]map[string]any, 0, 1+len(l.Targets))
	rules = append(rules, map[string]any{
		"symbol":        l.Symbol,
		"trigger_type":  "LESS_THAN",
		"trigger_price": l.StopLoss,
		"side":          "SELL",
		"quantity":      l.Quantity,
		"order_type":    "SL",
	})
	for _, tgt := range l.Targets {
		rules = append(rules, map[string]any{
			"symbol":        l.Symbol,
			"trigger_type":  "GREATER_THAN",
			"trigger_price": tgt,
			"side":          "SELL",
			"quantity":      l.Quantity,
			"order_type":    "LIMIT",
		})
	}
	return rules
}

// PlaceGTTLadder places every rule in the ladder sequentially, collecting
// the broker responses. The first transport failure aborts the remainder.
func (s *Service) PlaceGTTLadder(ctx context.Context, ladder GTTLadder) ([]any, error) {
	rules := ladder.Rules()
	results := make([]any, 0, len(rules))
	for _, rule := range rules {
		s.log.Info("placing gtt rule",
			slog.String("symbol", ladder.Symbol),
			slog.Any("trigger_price", rule["trigger_price"]))
		res, err := s.client.GTTPlace(ctx, rule)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// GTTCancel cancels one GTT rule by alert id.
func (s *Service) GTTCancel(ctx context.Context, alertID string) (any, error) {
	return s.client.GTTCancel(ctx, alertID)
}

// OCOPlace places a one-cancels-other order pair.
func (s *Service) OCOPlace(ctx context.Context, payload map[string]any) (any, error) {
	return s.client.OCOPlace(ctx, payload)
}

// OCOCancel cancels an OCO pair by alert id.
func (s *Service) OCOCancel(ctx context.Context, alertID string) (any, error) {
	return s.client.OCOCancel(ctx, alertID)
}
