package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlePortfolio_NoSnapshotYet(t *testing.T) {
	s := NewServer(":0", NewHub(nil), nil, nil)

	rec := httptest.NewRecorder()
	s.handlePortfolio(rec, httptest.NewRequest(http.MethodGet, "/api/portfolio", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 before first build, got %d", rec.Code)
	}
}

func TestHandlePortfolio_ServesLatest(t *testing.T) {
	hub := NewHub(nil)
	s := NewServer(":0", hub, nil, nil)
	hub.Broadcast([]byte(`{"rows":[],"totals":{}}`))

	rec := httptest.NewRecorder()
	s.handlePortfolio(rec, httptest.NewRequest(http.MethodGet, "/api/portfolio", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"rows"`) {
		t.Errorf("body missing rows: %s", rec.Body.String())
	}
}

func TestHandleOrders_Unconfigured(t *testing.T) {
	s := NewServer(":0", NewHub(nil), nil, nil)

	rec := httptest.NewRecorder()
	s.handleOrders(rec, httptest.NewRequest(http.MethodGet, "/api/orders", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without order service, got %d", rec.Code)
	}
}

func TestHandleInstruments_RequiresQuery(t *testing.T) {
	s := NewServer(":0", NewHub(nil), nil, nil)

	rec := httptest.NewRecorder()
	s.handleInstruments(rec, httptest.NewRequest(http.MethodGet, "/api/instruments", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without master store, got %d", rec.Code)
	}
}
