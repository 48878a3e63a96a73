// Package integrate is an HTTP client for the Definedge Securities
// "Integrate" trading API. It covers the four endpoint families (auth,
// trading, market data, public file downloads), the two-step OTP login,
// and the session handling around them.
//
// Usage example:
//
//	auth := integrate.NewAuthenticator(integrate.Config{APIToken: token, APISecret: secret}, totpSecret)
//	client, sess, err := auth.Login(ctx, "")
//	if err != nil { log.Fatal(err) }
//	holdings, err := client.Holdings(ctx)
package integrate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAuthBase  = "https://signin.definedgesecurities.com/auth/realms/debroking/dsbpkc"
	defaultAPIBase   = "https://integrate.definedgesecurities.com/dart/v1"
	defaultDataBase  = "https://data.definedgesecurities.com/sds"
	defaultFilesBase = "https://app.definedgesecurities.com/public"

	defaultTimeout = 20 * time.Second
)

// Config holds client construction parameters. Zero-value base URLs and
// timeout fall back to the production Definedge endpoints.
type Config struct {
	APIToken  string
	APISecret string

	AuthBase  string
	APIBase   string
	DataBase  string
	FilesBase string

	Timeout time.Duration
}

func (cfg *Config) applyDefaults() {
	if cfg.AuthBase == "" {
		cfg.AuthBase = defaultAuthBase
	}
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if cfg.DataBase == "" {
		cfg.DataBase = defaultDataBase
	}
	if cfg.FilesBase == "" {
		cfg.FilesBase = defaultFilesBase
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
}

// Session holds the tokens issued by a successful two-step login. A Session
// is either fully populated (APISessionKey non-empty) or does not exist;
// callers never see a partially-authenticated one.
type Session struct {
	APISessionKey string `json:"api_session_key"`
	SUserToken    string `json:"susertoken"`
	UID           string `json:"uid"`
	ActID         string `json:"actid"`
}

// Client is a stateless HTTP transport to the broker. It owns no business
// logic: every method issues exactly one request with a fixed timeout, never
// retries, and returns *APIError on non-2xx status. After WithSession it is
// safe for concurrent use.
type Client struct {
	cfg        Config
	session    Session
	httpClient *http.Client
}

// NewClient creates an unauthenticated Client.
func NewClient(cfg Config) *Client {
	cfg.applyDefaults()
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// WithSession returns a copy of the client bound to the given session.
// Every subsequent call attaches the session key verbatim as the value of
// the Authorization header (no "Bearer " prefix, per the broker docs).
func (c *Client) WithSession(s Session) *Client {
	cp := *c
	cp.session = s
	return &cp
}

// Session returns the bound session (zero value if unauthenticated).
func (c *Client) Session() Session { return c.session }

func (c *Client) headers() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	if c.session.APISessionKey != "" {
		h.Set("Authorization", c.session.APISessionKey)
	}
	return h
}

// do issues one request and returns the raw body. Non-2xx status becomes
// *APIError; network faults propagate unchanged.
func (c *Client) do(ctx context.Context, method, url string, hdr http.Header, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if hdr != nil {
		req.Header = hdr
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, URL: url, Body: raw}
	}
	return raw, nil
}

// getJSON issues an authenticated GET against the trading API and decodes
// the body. The result may be a keyed object or a bare list depending on
// the endpoint and API version, so it is returned as any.
func (c *Client) getJSON(ctx context.Context, url string) (any, error) {
	raw, err := c.do(ctx, http.MethodGet, url, c.headers(), nil)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return out, nil
}

func (c *Client) postJSON(ctx context.Context, url string, payload any) (any, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	raw, err := c.do(ctx, http.MethodPost, url, c.headers(), bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return out, nil
}

// ---- auth endpoints ----

// AuthStep1 calls the login endpoint with the api_token in the path and the
// api_secret as a header (when present). The response carries an
// OTP-challenge token under a variant field name.
func (c *Client) AuthStep1(ctx context.Context) (map[string]any, error) {
	url := c.cfg.AuthBase + "/login/" + c.cfg.APIToken
	hdr := http.Header{}
	if c.cfg.APISecret != "" {
		hdr.Set("api_secret", c.cfg.APISecret)
	}
	raw, err := c.do(ctx, http.MethodGet, url, hdr, nil)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode auth step 1: %w", err)
	}
	return out, nil
}

// AuthStep2 submits the OTP-challenge token and code to the token endpoint.
// The decoded response and the raw body are both returned: the raw body is
// attached to SessionKeyError diagnostics by the Authenticator.
func (c *Client) AuthStep2(ctx context.Context, otpToken, otpCode string) (map[string]any, []byte, error) {
	payload, err := json.Marshal(map[string]string{"otp_token": otpToken, "otp": otpCode})
	if err != nil {
		return nil, nil, err
	}
	hdr := http.Header{}
	hdr.Set("Content-Type", "application/json")
	raw, err := c.do(ctx, http.MethodPost, c.cfg.AuthBase+"/token", hdr, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, raw, fmt.Errorf("decode auth step 2: %w", err)
	}
	return out, raw, nil
}

// ---- trading endpoints ----

// Holdings returns the raw holdings payload: either {status, data: [...]}
// or a bare list, depending on API version.
func (c *Client) Holdings(ctx context.Context) (any, error) {
	return c.getJSON(ctx, c.cfg.APIBase+"/holdings")
}

// Positions returns the open intraday/derivative positions.
func (c *Client) Positions(ctx context.Context) (any, error) {
	return c.getJSON(ctx, c.cfg.APIBase+"/positions")
}

// Orders returns the order book.
func (c *Client) Orders(ctx context.Context) (any, error) {
	return c.getJSON(ctx, c.cfg.APIBase+"/orders")
}

// Order returns one order by id.
func (c *Client) Order(ctx context.Context, orderID string) (any, error) {
	return c.getJSON(ctx, c.cfg.APIBase+"/order/"+orderID)
}

// Trades returns the trade book.
func (c *Client) Trades(ctx context.Context) (any, error) {
	return c.getJSON(ctx, c.cfg.APIBase+"/trades")
}

// PlaceOrder submits a new order.
func (c *Client) PlaceOrder(ctx context.Context, payload map[string]any) (any, error) {
	return c.postJSON(ctx, c.cfg.APIBase+"/placeorder", payload)
}

// ModifyOrder modifies a pending order.
func (c *Client) ModifyOrder(ctx context.Context, payload map[string]any) (any, error) {
	return c.postJSON(ctx, c.cfg.APIBase+"/modify", payload)
}

// CancelOrder cancels a pending order.
func (c *Client) CancelOrder(ctx context.Context, orderID string) (any, error) {
	return c.getJSON(ctx, c.cfg.APIBase+"/cancel/"+orderID)
}

// SliceOrder splits a large order into freeze-limit slices broker-side.
func (c *Client) SliceOrder(ctx context.Context, payload map[string]any) (any, error) {
	return c.postJSON(ctx, c.cfg.APIBase+"/sliceorder", payload)
}

// ProductConversion converts an open position between product types.
func (c *Client) ProductConversion(ctx context.Context, payload map[string]any) (any, error) {
	return c.postJSON(ctx, c.cfg.APIBase+"/productconversion", payload)
}

// ---- gtt / oco endpoints ----

func (c *Client) GTTOrders(ctx context.Context) (any, error) {
	return c.getJSON(ctx, c.cfg.APIBase+"/gttorders")
}

func (c *Client) GTTPlace(ctx context.Context, payload map[string]any) (any, error) {
	return c.postJSON(ctx, c.cfg.APIBase+"/gttplaceorder", payload)
}

func (c *Client) GTTModify(ctx context.Context, payload map[string]any) (any, error) {
	return c.postJSON(ctx, c.cfg.APIBase+"/gttmodify", payload)
}

func (c *Client) GTTCancel(ctx context.Context, alertID string) (any, error) {
	return c.getJSON(ctx, c.cfg.APIBase+"/gttcancel/"+alertID)
}

func (c *Client) OCOPlace(ctx context.Context, payload map[string]any) (any, error) {
	return c.postJSON(ctx, c.cfg.APIBase+"/ocoplaceorder", payload)
}

func (c *Client) OCOModify(ctx context.Context, payload map[string]any) (any, error) {
	return c.postJSON(ctx, c.cfg.APIBase+"/ocomodify", payload)
}

func (c *Client) OCOCancel(ctx context.Context, alertID string) (any, error) {
	return c.getJSON(ctx, c.cfg.APIBase+"/ococancel/"+alertID)
}

// ---- limits / margin ----

func (c *Client) Limits(ctx context.Context) (any, error) {
	return c.getJSON(ctx, c.cfg.APIBase+"/limits")
}

func (c *Client) Margin(ctx context.Context) (any, error) {
	return c.getJSON(ctx, c.cfg.APIBase+"/margin")
}

func (c *Client) SpanCalculator(ctx context.Context, payload map[string]any) (any, error) {
	return c.postJSON(ctx, c.cfg.APIBase+"/spancalculator", payload)
}

// ---- market data ----

// Quote returns the latest quote for an instrument. Field names vary across
// endpoint versions, so the payload is returned as a raw keyed structure.
func (c *Client) Quote(ctx context.Context, exchange, token string) (map[string]any, error) {
	out, err := c.getJSON(ctx, c.cfg.APIBase+"/quotes/"+exchange+"/"+token)
	if err != nil {
		return nil, err
	}
	m, ok := out.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("quote %s/%s: response is not a keyed structure", exchange, token)
	}
	return m, nil
}

// SecurityInfo returns static instrument details.
func (c *Client) SecurityInfo(ctx context.Context, exchange, token string) (any, error) {
	return c.getJSON(ctx, c.cfg.APIBase+"/securityinfo/"+exchange+"/"+token)
}

// HistoricalCSV fetches a historical OHLCV series as delimited text. Rows
// carry 6 fields [datetime, open, high, low, close, volume] or 7 with
// open-interest appended. from/to use the broker's compact ddmmyyyyHHMM form.
func (c *Client) HistoricalCSV(ctx context.Context, segment, token, timeframe, from, to string) (string, error) {
	url := c.cfg.DataBase + "/history/" + segment + "/" + token + "/" + timeframe + "/" + from + "/" + to
	raw, err := c.do(ctx, http.MethodGet, url, c.headers(), nil)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ---- file downloads ----

// DownloadMasterZip streams one of the public instrument-master archives
// (e.g. "allmaster.zip") to destPath and returns the path written.
func (c *Client) DownloadMasterZip(ctx context.Context, zipName, destPath string) (string, error) {
	url := c.cfg.FilesBase + "/" + zipName
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &APIError{Status: resp.StatusCode, URL: url, Body: raw}
	}

	f, err := os.Create(destPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", fmt.Errorf("write %s: %w", destPath, err)
	}
	return destPath, nil
}

// ProbeString returns the first non-empty string found under the given keys.
// Broker payloads carry the same logical field under different names across
// API versions, so all extraction goes through ordered candidate lists.
func ProbeString(m map[string]any, keys []string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if strings.TrimSpace(t) != "" {
				return t
			}
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		}
	}
	return ""
}
