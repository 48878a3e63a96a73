package integrate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_RawAuthorizationHeader(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Write([]byte(`{"status":"SUCCESS","data":[]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIBase: srv.URL}).WithSession(Session{APISessionKey: "sess-key-123"})
	if _, err := c.Holdings(context.Background()); err != nil {
		t.Fatalf("holdings: %v", err)
	}
	// The session key must be attached verbatim, not as "Bearer sess-key-123".
	if got != "sess-key-123" {
		t.Errorf("expected raw Authorization header %q, got %q", "sess-key-123", got)
	}
}

func TestClient_Non2xxBecomesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid session"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(Config{APIBase: srv.URL})
	_, err := c.Quote(context.Background(), "NSE", "22")
	if err == nil {
		t.Fatal("expected error for HTTP 401")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", apiErr.Status)
	}
}

func TestClient_HistoricalCSVReturnsBodyVerbatim(t *testing.T) {
	csv := "01-09-2025,100,105,99,104,5000\n02-09-2025,104,110,103,108,6000\n"
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Write([]byte(csv))
	}))
	defer srv.Close()

	c := NewClient(Config{DataBase: srv.URL}).WithSession(Session{APISessionKey: "k"})
	got, err := c.HistoricalCSV(context.Background(), "NSE", "22", "day", "010920250000", "100920250000")
	if err != nil {
		t.Fatalf("historical: %v", err)
	}
	if got != csv {
		t.Errorf("body mismatch: got %q", got)
	}
	if path != "/history/NSE/22/day/010920250000/100920250000" {
		t.Errorf("unexpected request path %q", path)
	}
}

func TestClient_FixedTimeout(t *testing.T) {
	c := NewClient(Config{Timeout: 50 * time.Millisecond})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()
	c.cfg.APIBase = srv.URL

	if _, err := c.Holdings(context.Background()); err == nil {
		t.Error("expected timeout error")
	}
}

func TestProbeString_OrderedFallback(t *testing.T) {
	m := map[string]any{"otpToken": "tok-b", "request_token": "tok-d"}
	if got := ProbeString(m, []string{"otp_token", "otpToken", "otp_request_token", "request_token"}); got != "tok-b" {
		t.Errorf("expected first present candidate tok-b, got %q", got)
	}
	if got := ProbeString(map[string]any{"uid": float64(12345)}, []string{"uid"}); got != "12345" {
		t.Errorf("expected numeric uid coerced to string, got %q", got)
	}
	if got := ProbeString(map[string]any{"x": ""}, []string{"x"}); got != "" {
		t.Errorf("expected empty result for blank value, got %q", got)
	}
}
