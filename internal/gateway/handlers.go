package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"integrate-dash/internal/master"
	"integrate-dash/internal/orders"
)

// Server is the dashboard-facing HTTP server: the latest snapshot over REST,
// live updates over WebSocket, instrument search backed by the master store,
// and order management pass-throughs.
type Server struct {
	hub    *Hub
	store  *master.Store   // nil disables /api/instruments
	orders *orders.Service // nil disables /api/orders
	srv    *http.Server
}

// NewServer wires the gateway routes on addr. store and orderSvc may be nil.
func NewServer(addr string, hub *Hub, store *master.Store, orderSvc *orders.Service) *Server {
	s := &Server{hub: hub, store: store, orders: orderSvc}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)
	mux.HandleFunc("/api/portfolio", s.handlePortfolio)
	mux.HandleFunc("/api/instruments", s.handleInstruments)
	mux.HandleFunc("/api/orders", s.handleOrders)

	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start serves in a background goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[gateway] listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[gateway] server error: %v", err)
		}
	}()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) {
	_ = s.srv.Shutdown(ctx)
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	latest := s.hub.Latest()
	w.Header().Set("Content-Type", "application/json")
	if latest == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "no snapshot yet"})
		return
	}
	w.Write(latest)
}

func (s *Server) handleInstruments(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.store == nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "instrument master not configured"})
		return
	}

	q := r.URL.Query().Get("q")
	if q == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "q parameter required"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	hits, err := s.store.SearchBySymbol(r.Context(), q, limit)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"instruments": hits, "count": len(hits)})
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.orders == nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "order management not configured"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		book, err := s.orders.OrderBook(r.Context())
		if err != nil {
			w.WriteHeader(http.StatusBadGateway)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		json.NewEncoder(w).Encode(book)

	case http.MethodPost:
		var req struct {
			Symbol    string  `json:"symbol"`
			Quantity  int     `json:"quantity"`
			Side      string  `json:"side"`
			Price     float64 `json:"price"`
			OrderType string  `json:"order_type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid order payload"})
			return
		}
		if req.Symbol == "" || req.Quantity <= 0 || req.Side == "" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "symbol, quantity and side are required"})
			return
		}
		res, err := s.orders.PlaceOrder(r.Context(), req.Symbol, req.Quantity, req.Side, req.Price, req.OrderType)
		if err != nil {
			w.WriteHeader(http.StatusBadGateway)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		json.NewEncoder(w).Encode(res)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(map[string]string{"error": "method not allowed"})
	}
}
