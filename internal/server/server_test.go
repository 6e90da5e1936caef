package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"flipbot/internal/domain"
	"flipbot/internal/engine"
	"flipbot/internal/execution"
	"flipbot/internal/infra"
	"flipbot/internal/notify"
	"flipbot/internal/signal"
	"flipbot/internal/storage"
)

type fixedPrices struct{ price float64 }

func (f fixedPrices) Price(ctx context.Context, instrument string) (float64, error) {
	return f.price, nil
}

// eventSink records every published notification for assertions.
type eventSink struct {
	mu     sync.Mutex
	events []notify.Event
}

func (s *eventSink) Send(ctx context.Context, ev notify.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *eventSink) byType(eventType string) []notify.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []notify.Event
	for _, ev := range s.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func newTestServer(t *testing.T, secret string) (*httptest.Server, *storage.TradeStore, *execution.MockGateway) {
	t.Helper()
	store, err := storage.OpenTradeStore(filepath.Join(t.TempDir(), "trades.db"))
	if err != nil {
		t.Fatalf("OpenTradeStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	gw := &execution.MockGateway{
		MarkPriceFunc: func(ctx context.Context, instrument string) (float64, error) {
			return 51000, nil
		},
	}

	cfg := &infra.Config{}
	cfg.App.Name = "flipbot"
	cfg.App.Version = "test"
	cfg.Trading.Mode = "DRY_RUN"
	cfg.Server.WebhookSecret = secret

	normalizer := signal.NewNormalizer(fixedPrices{price: 50000}, 0.001)
	events := notify.NewFanout()
	rot := engine.NewRotator(engine.NewOracle(gw, store), gw, store, events)
	srv := httptest.NewServer(New(cfg, normalizer, rot, store, gw, events, notify.NewHub()).Handler())
	t.Cleanup(srv.Close)
	return srv, store, gw
}

func postWebhook(t *testing.T, srv *httptest.Server, secret, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/webhook", strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("Tradingview-Secret", secret)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("webhook request error = %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func TestWebhook_FullRotationScenario(t *testing.T) {
	srv, store, _ := newTestServer(t, "")
	ctx := context.Background()

	// LONG with notional 100 at 50000 opens 0.002 contracts.
	resp, body := postWebhook(t, srv, "",
		`{"signal":"LONG","symbol":"BTCUSDT","size_usd":100,"price":50000}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["ok"] != true || body["action"] != "open" {
		t.Fatalf("response = %v", body)
	}
	tradeID := body["trade_id"].(string)

	tr, err := store.Get(ctx, tradeID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if tr.Status != domain.StatusPlaced {
		t.Errorf("Status = %q, want placed", tr.Status)
	}
	if math.Abs(tr.Size-0.002) > 1e-12 {
		t.Errorf("Size = %v, want 0.002", tr.Size)
	}

	// Reversal closes the long and opens a short.
	_, body = postWebhook(t, srv, "",
		`{"signal":"SHORT","symbol":"BTCUSDT","size_usd":100,"price":50000}`)
	if body["action"] != "rotate" {
		t.Fatalf("reversal response = %v", body)
	}
	closed, err := store.Get(ctx, tradeID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if closed.Status != domain.StatusClosed || closed.ExitPrice == nil {
		t.Errorf("old trade = %+v, want closed with exit price", closed)
	}

	// A third identical short is ignored.
	_, body = postWebhook(t, srv, "",
		`{"signal":"SHORT","symbol":"BTCUSDT","size_usd":100,"price":50000}`)
	if body["action"] != "ignore" {
		t.Fatalf("duplicate response = %v", body)
	}

	placed, err := store.List(ctx, domain.StatusPlaced, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(placed) != 1 || placed[0].Direction != domain.Short {
		t.Errorf("placed = %+v, want exactly one short", placed)
	}
}

func TestWebhook_SecretRequired(t *testing.T) {
	srv, _, gw := newTestServer(t, "hunter2")

	resp, _ := postWebhook(t, srv, "", `{"signal":"LONG","symbol":"BTCUSDT","size":1}`)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("no secret: status = %d, want 403", resp.StatusCode)
	}

	resp, _ = postWebhook(t, srv, "wrong", `{"signal":"LONG","symbol":"BTCUSDT","size":1}`)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("bad secret: status = %d, want 403", resp.StatusCode)
	}
	if len(gw.Placed) != 0 {
		t.Error("unauthorized request reached the gateway")
	}

	resp, _ = postWebhook(t, srv, "hunter2", `{"signal":"LONG","symbol":"BTCUSDT","size":1}`)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("header secret: status = %d, want 200", resp.StatusCode)
	}

	// Senders that cannot set headers may put the secret in the body.
	resp, _ = postWebhook(t, srv, "",
		`{"signal":"SHORT","symbol":"ETHUSDT","size":1,"secret":"hunter2"}`)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("body secret: status = %d, want 200", resp.StatusCode)
	}
}

func TestWebhook_BadJSON(t *testing.T) {
	srv, _, _ := newTestServer(t, "")
	resp, _ := postWebhook(t, srv, "", `{not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestWebhook_UnknownSignalRecordsIgnore(t *testing.T) {
	store, err := storage.OpenTradeStore(filepath.Join(t.TempDir(), "trades.db"))
	if err != nil {
		t.Fatalf("OpenTradeStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	gw := &execution.MockGateway{}
	cfg := &infra.Config{}
	sink := &eventSink{}
	events := notify.NewFanout(sink)
	rot := engine.NewRotator(engine.NewOracle(gw, store), gw, store, events)
	normalizer := signal.NewNormalizer(fixedPrices{price: 50000}, 0)
	srv := httptest.NewServer(New(cfg, normalizer, rot, store, gw, events, notify.NewHub()).Handler())
	t.Cleanup(srv.Close)

	resp, body := postWebhook(t, srv, "", `{"signal":"HODL","symbol":"BTCUSDT","size":1}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["ok"] != false {
		t.Errorf("response = %v, want ok:false", body)
	}
	if len(gw.Placed) != 0 {
		t.Error("unknown signal reached the gateway")
	}

	ignored, err := store.List(context.Background(), domain.StatusIgnored, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(ignored) != 1 {
		t.Fatalf("ignored records = %d, want 1", len(ignored))
	}
	if !strings.Contains(ignored[0].Response, "unknown signal") {
		t.Errorf("diagnostic = %q, want unknown-signal reason", ignored[0].Response)
	}

	// The suppressed signal is still announced to the sinks.
	published := sink.byType("ignored")
	if len(published) != 1 {
		t.Fatalf("ignored events published = %d, want 1", len(published))
	}
	if published[0].Instrument != "BTCUSDT" {
		t.Errorf("event instrument = %q, want BTCUSDT", published[0].Instrument)
	}
	if !strings.Contains(published[0].Reason, "unknown signal") {
		t.Errorf("event reason = %q, want unknown-signal reason", published[0].Reason)
	}
}

func TestWebhook_PriceUnavailable(t *testing.T) {
	store, err := storage.OpenTradeStore(filepath.Join(t.TempDir(), "trades.db"))
	if err != nil {
		t.Fatalf("OpenTradeStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	// A price feed pointed at a dead server with one attempt.
	feed := infra.NewPriceFeedWithURL("http://127.0.0.1:1/price?symbol=%s", 1, 0)
	gw := &execution.MockGateway{}
	cfg := &infra.Config{}
	events := notify.NewFanout()
	rot := engine.NewRotator(engine.NewOracle(gw, store), gw, store, events)
	srv := httptest.NewServer(New(cfg, signal.NewNormalizer(feed, 0), rot, store, gw, events, notify.NewHub()).Handler())
	t.Cleanup(srv.Close)

	resp, _ := postWebhook(t, srv, "", `{"signal":"LONG","symbol":"BTCUSDT","size_usd":100}`)
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
	if len(gw.Placed) != 0 {
		t.Error("order attempted despite unresolvable price")
	}
}

func TestTrades_ListAndFilter(t *testing.T) {
	srv, store, _ := newTestServer(t, "")
	ctx := context.Background()

	for i, st := range []domain.Status{domain.StatusPlaced, domain.StatusIgnored} {
		tr := &domain.TradeRecord{
			ID:         fmt.Sprintf("t-%d", i),
			Instrument: "BTCUSDT",
			Direction:  domain.Long,
			Status:     st,
		}
		if err := store.Insert(ctx, tr); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	resp, err := http.Get(srv.URL + "/trades?status=ignored")
	if err != nil {
		t.Fatalf("GET /trades error = %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		OK     bool                  `json:"ok"`
		Trades []*domain.TradeRecord `json:"trades"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.OK || len(body.Trades) != 1 || body.Trades[0].Status != domain.StatusIgnored {
		t.Errorf("filtered trades = %+v", body.Trades)
	}
}

func TestOrderStatus(t *testing.T) {
	srv, _, _ := newTestServer(t, "")

	resp, err := http.Post(srv.URL+"/debug/order-status", "application/json",
		bytes.NewBufferString(`{"order_id":"123"}`))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/debug/order-status", "application/json",
		bytes.NewBufferString(`{}`))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing order_id: status = %d, want 400", resp.StatusCode)
	}
}

func TestInfo(t *testing.T) {
	srv, _, _ := newTestServer(t, "")

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET / error = %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["app"] != "flipbot" || body["mode"] != "DRY_RUN" {
		t.Errorf("info = %v", body)
	}
}
