package bitget

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"flipbot/internal/domain"
	"flipbot/internal/infra"
)

// candidate is one (endpoint path, symbol format, product type) strategy.
// The provider has shipped several API revisions with different paths and
// symbol spellings; candidates are tried in order until one returns a
// definitive (non-not-found) answer.
type candidate struct {
	path         string
	symbolSuffix bool // v1 paths want "BTCUSDT_UMCBL" style symbols
	productType  string
}

// Client talks to the Bitget mix (futures) REST API. All configuration is
// passed in at construction time; there is no package-level state.
type Client struct {
	baseURL     string
	signer      *Signer
	httpClient  *http.Client
	productType string
	marginCoin  string
	paptrading  bool
	breaker     *infra.CircuitBreaker
	limiter     *infra.RateLimiter
}

// NewClient creates a REST client from config.
func NewClient(cfg *infra.Config) *Client {
	b := cfg.API.Bitget
	return &Client{
		baseURL:     strings.TrimRight(b.RestURL, "/"),
		signer:      NewSigner(b.AccessKey, b.SecretKey, b.Passphrase),
		httpClient:  &http.Client{Timeout: time.Duration(b.TimeoutSec) * time.Second},
		productType: b.ProductType,
		marginCoin:  b.MarginCoin,
		paptrading:  cfg.Trading.Paptrading,
		breaker:     infra.NewCircuitBreaker("bitget", 0, 0, 0),
		limiter:     infra.NewRateLimiter(5, 10),
	}
}

func (c *Client) v2ProductType() string {
	pt := strings.ToUpper(c.productType)
	if pt == "UMCBL" || pt == "SUMCBL" {
		return "usdt-futures"
	}
	return strings.ToLower(c.productType)
}

func (c *Client) v1ProductType() string {
	pt := strings.ToUpper(c.productType)
	if pt == "UMCBL" || pt == "SUMCBL" {
		return pt
	}
	if c.paptrading {
		return "SUMCBL"
	}
	return "UMCBL"
}

func (c *Client) candidateSymbol(instrument string, cand candidate) string {
	if cand.symbolSuffix {
		return instrument + "_" + cand.productType
	}
	return instrument
}

// PlaceOrder submits a market order. clientOid must be unique per attempt so
// a retried call cannot fill twice.
func (c *Client) PlaceOrder(ctx context.Context, instrument string, dir domain.Direction, size float64, reduceOnly bool, clientOid string) (*Result, error) {
	if !c.signer.HasCredentials() {
		return nil, ErrMissingCredentials
	}

	candidates := []candidate{
		{path: "/api/v2/mix/order/place-order", productType: c.v2ProductType()},
		{path: "/api/mix/v1/order/placeOrder", symbolSuffix: true, productType: c.v1ProductType()},
	}

	var lastErr error
	for _, cand := range candidates {
		body := map[string]string{
			"symbol":      c.candidateSymbol(instrument, cand),
			"productType": cand.productType,
			"marginCoin":  c.marginCoin,
			"marginMode":  "crossed",
			"orderType":   "market",
			"side":        dir.OrderSide(reduceOnly),
			"size":        formatQty(size),
			"clientOid":   clientOid,
		}
		if reduceOnly {
			body["reduceOnly"] = "YES"
		}

		res, err := c.signedPost(ctx, cand.path, body)
		if errors.Is(err, ErrEndpointNotFound) {
			lastErr = err
			slog.Debug("Order endpoint not found, trying next candidate",
				slog.String("path", cand.path))
			continue
		}
		return res, err
	}
	return nil, fmt.Errorf("%w: all order endpoint candidates exhausted", lastErr)
}

// ClosePosition flattens the position on the given hold side via the
// flash-close endpoint.
func (c *Client) ClosePosition(ctx context.Context, instrument string, holdSide string) (*Result, error) {
	if !c.signer.HasCredentials() {
		return nil, ErrMissingCredentials
	}

	body := map[string]string{
		"symbol":      instrument,
		"productType": c.v2ProductType(),
		"holdSide":    holdSide,
	}
	return c.signedPost(ctx, "/api/v2/mix/order/close-positions", body)
}

// CancelPendingOrders cancels any resting orders for the instrument.
// Best-effort cleanup after a close; callers treat failure as non-fatal.
func (c *Client) CancelPendingOrders(ctx context.Context, instrument string) (*Result, error) {
	if !c.signer.HasCredentials() {
		return nil, ErrMissingCredentials
	}

	body := map[string]string{
		"symbol":      instrument,
		"productType": c.v2ProductType(),
		"marginCoin":  c.marginCoin,
	}
	return c.signedPost(ctx, "/api/v2/mix/order/cancel-all-orders", body)
}

// Position fetches the live position snapshot for an instrument. A flat
// snapshot (IsFlat true) is returned when the exchange reports no holding.
func (c *Client) Position(ctx context.Context, instrument string) (*domain.PositionSnapshot, error) {
	if !c.signer.HasCredentials() {
		return nil, ErrMissingCredentials
	}

	candidates := []candidate{
		{path: "/api/v2/mix/position/single-position", productType: c.v2ProductType()},
		{path: "/api/mix/v1/position/singlePosition", symbolSuffix: true, productType: c.v1ProductType()},
	}

	var lastErr error
	for _, cand := range candidates {
		query := fmt.Sprintf("symbol=%s&productType=%s&marginCoin=%s",
			c.candidateSymbol(instrument, cand), cand.productType, c.marginCoin)

		env, err := c.signedGet(ctx, cand.path, query)
		if errors.Is(err, ErrEndpointNotFound) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}
		return parsePosition(instrument, env.Data)
	}
	return nil, fmt.Errorf("%w: all position endpoint candidates exhausted", lastErr)
}

// MarkPrice fetches the current futures mark/last price. Public endpoint,
// no signature required.
func (c *Client) MarkPrice(ctx context.Context, instrument string) (float64, error) {
	candidates := []candidate{
		{path: "/api/v2/mix/market/ticker", productType: c.v2ProductType()},
		{path: "/api/mix/v1/market/ticker", symbolSuffix: true, productType: c.v1ProductType()},
	}

	var lastErr error
	for _, cand := range candidates {
		query := fmt.Sprintf("symbol=%s&productType=%s", c.candidateSymbol(instrument, cand), cand.productType)

		env, err := c.get(ctx, cand.path, query)
		if errors.Is(err, ErrEndpointNotFound) {
			lastErr = err
			continue
		}
		if err != nil {
			return 0, err
		}
		return parseTickerPrice(env.Data)
	}
	return 0, fmt.Errorf("%w: all ticker endpoint candidates exhausted", lastErr)
}

// OrderDetail queries an order by id, for diagnostics.
func (c *Client) OrderDetail(ctx context.Context, orderID string) (*Result, error) {
	if !c.signer.HasCredentials() {
		return nil, ErrMissingCredentials
	}

	query := fmt.Sprintf("orderId=%s&productType=%s", orderID, c.v2ProductType())
	env, err := c.signedGet(ctx, "/api/v2/mix/order/detail", query)
	if err != nil {
		return nil, err
	}
	return &Result{Success: true, Code: env.Code, Raw: string(env.Data)}, nil
}

// EnsureOneWayMode asks the account to use one position per instrument.
// "Already in that mode" provider codes are treated as success.
func (c *Client) EnsureOneWayMode(ctx context.Context) error {
	if !c.signer.HasCredentials() {
		return ErrMissingCredentials
	}

	body := map[string]string{
		"posMode":     "one_way_mode",
		"productType": c.v2ProductType(),
	}
	res, err := c.signedPost(ctx, "/api/v2/mix/account/set-position-mode", body)
	if err != nil {
		return err
	}
	if !res.Success && !benignPositionModeCodes[res.Code] {
		return &RejectedError{Code: res.Code, Message: res.Message}
	}
	return nil
}

// --- transport ---

func (c *Client) signedPost(ctx context.Context, path string, body map[string]string) (*Result, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	headers := c.signer.GenerateHeaders(http.MethodPost, path, "", string(payload))
	status, raw, err := c.do(ctx, http.MethodPost, path, "", payload, headers)
	if err != nil {
		return nil, err
	}
	return classify(status, raw)
}

func (c *Client) signedGet(ctx context.Context, path, query string) (*envelope, error) {
	headers := c.signer.GenerateHeaders(http.MethodGet, path, query, "")
	return c.getWithHeaders(ctx, path, query, headers)
}

func (c *Client) get(ctx context.Context, path, query string) (*envelope, error) {
	return c.getWithHeaders(ctx, path, query, nil)
}

func (c *Client) getWithHeaders(ctx context.Context, path, query string, headers map[string]string) (*envelope, error) {
	status, raw, err := c.do(ctx, http.MethodGet, path, query, nil, headers)
	if err != nil {
		return nil, err
	}

	res, err := classify(status, raw)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, &RejectedError{Code: res.Code, Message: res.Message}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("bitget: unparseable response: %w", err)
	}
	return &env, nil
}

func (c *Client) do(ctx context.Context, method, path, query string, body []byte, headers map[string]string) (int, []byte, error) {
	if !c.breaker.Allow() {
		return 0, nil, fmt.Errorf("%w: circuit open", ErrUnavailable)
	}
	c.limiter.Wait()

	url := c.baseURL + path
	if query != "" {
		url += "?" + query
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if c.paptrading {
		req.Header.Set("paptrading", "1")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return 0, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.breaker.RecordFailure()
		return 0, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	c.breaker.RecordSuccess()
	return resp.StatusCode, raw, nil
}

// classify turns a transport status + raw body into the canonical Result.
// Transport 200 with an embedded provider error is a rejection, not a
// success. HTTP 404 or provider code 40404 means "try the next candidate".
func classify(status int, raw []byte) (*Result, error) {
	if status == http.StatusNotFound {
		return nil, ErrEndpointNotFound
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// Plain-text or HTML answer; keep it verbatim for the audit trail.
		return &Result{
			Success: false,
			Message: strings.TrimSpace(string(raw)),
			Raw:     string(raw),
		}, nil
	}

	if env.Code == codeNotFound {
		return nil, ErrEndpointNotFound
	}

	res := &Result{
		Code:    env.Code,
		Message: env.Msg,
		Raw:     string(raw),
	}
	if status == http.StatusOK && env.Code == codeOK {
		res.Success = true
		var od orderData
		if len(env.Data) > 0 && json.Unmarshal(env.Data, &od) == nil {
			res.OrderID = od.OrderID
		}
	}
	return res, nil
}

func parsePosition(instrument string, data json.RawMessage) (*domain.PositionSnapshot, error) {
	flat := &domain.PositionSnapshot{Instrument: instrument}
	if len(data) == 0 || string(data) == "null" {
		return flat, nil
	}

	// v2 returns a list, v1 a single object.
	var rows []positionData
	if err := json.Unmarshal(data, &rows); err != nil {
		var one positionData
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, fmt.Errorf("bitget: unparseable position data: %w", err)
		}
		rows = []positionData{one}
	}

	for _, row := range rows {
		size := parseFloat(row.Total)
		if size <= domain.SizeEpsilon {
			continue
		}

		var side domain.Direction
		switch strings.ToLower(row.HoldSide) {
		case "long":
			side = domain.Long
		case "short":
			side = domain.Short
		default:
			continue
		}

		entry := parseFloat(row.OpenPriceAvg)
		if entry == 0 {
			entry = parseFloat(row.AverageOpenPrice)
		}
		margin := parseFloat(row.MarginSize)
		if margin == 0 {
			margin = parseFloat(row.Margin)
		}

		return &domain.PositionSnapshot{
			Instrument:    instrument,
			Side:          side,
			Size:          size,
			EntryPrice:    entry,
			MarkPrice:     parseFloat(row.MarkPrice),
			Margin:        margin,
			Leverage:      parseFloat(row.Leverage),
			LiqPrice:      parseFloat(row.LiquidationPrice),
			UnrealizedPnL: parseFloat(row.UnrealizedPL),
		}, nil
	}
	return flat, nil
}

func parseTickerPrice(data json.RawMessage) (float64, error) {
	var rows []tickerData
	if err := json.Unmarshal(data, &rows); err != nil {
		var one tickerData
		if err := json.Unmarshal(data, &one); err != nil {
			return 0, fmt.Errorf("bitget: unparseable ticker data: %w", err)
		}
		rows = []tickerData{one}
	}

	for _, row := range rows {
		if p := parseFloat(row.price()); p > 0 {
			return p, nil
		}
	}
	return 0, fmt.Errorf("bitget: no price in ticker response")
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func formatQty(size float64) string {
	if size <= 0 {
		// The original alert format allows omitting sizing entirely;
		// fall back to one contract rather than rejecting.
		return "1"
	}
	return strconv.FormatFloat(size, 'f', -1, 64)
}
