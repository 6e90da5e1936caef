package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"flipbot/internal/domain"
	"flipbot/internal/infra"
	"flipbot/internal/infra/bitget"
)

func liveTestGateway(t *testing.T, baseURL string) *LiveGateway {
	t.Helper()
	cfg := &infra.Config{}
	cfg.API.Bitget.RestURL = baseURL
	cfg.API.Bitget.AccessKey = "key"
	cfg.API.Bitget.SecretKey = "secret"
	cfg.API.Bitget.Passphrase = "pass"
	cfg.API.Bitget.ProductType = "USDT-FUTURES"
	cfg.API.Bitget.MarginCoin = "USDT"
	cfg.API.Bitget.TimeoutSec = 5
	cfg.Trading.Paptrading = true
	return NewLiveGateway(bitget.NewClient(cfg))
}

// When the venue has no flash-close endpoint the gateway falls back to a
// reduce-only market order. Closing must send the side that reduces the
// position: sell against a long, buy against a short.
func TestLiveGateway_CloseFallbackSide(t *testing.T) {
	tests := []struct {
		side     domain.Direction
		wantSide string
	}{
		{domain.Long, "sell"},
		{domain.Short, "buy"},
	}

	for _, tt := range tests {
		t.Run(string(tt.side), func(t *testing.T) {
			var gotBody map[string]string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/api/v2/mix/order/close-positions":
					http.NotFound(w, r)
				case "/api/v2/mix/order/place-order":
					json.NewDecoder(r.Body).Decode(&gotBody)
					fmt.Fprint(w, `{"code":"00000","msg":"success","data":{"orderId":"987"}}`)
				default:
					t.Errorf("unexpected path %s", r.URL.Path)
				}
			}))
			defer srv.Close()

			g := liveTestGateway(t, srv.URL)
			res, err := g.Close(context.Background(), &domain.PositionSnapshot{
				Instrument: "BTCUSDT",
				Side:       tt.side,
				Size:       0.002,
				EntryPrice: 50000,
			})
			if err != nil {
				t.Fatalf("Close() error = %v", err)
			}
			if !res.Accepted {
				t.Fatalf("Accepted = false, message %q", res.Message)
			}
			if gotBody["side"] != tt.wantSide {
				t.Errorf("closing a %s sent side=%q, want %q", tt.side, gotBody["side"], tt.wantSide)
			}
			if gotBody["reduceOnly"] != "YES" {
				t.Errorf("reduceOnly = %q, want YES", gotBody["reduceOnly"])
			}
			if gotBody["size"] != "0.002" {
				t.Errorf("size = %q, want 0.002", gotBody["size"])
			}
		})
	}
}

// The fallback is not taken when flash close answers.
func TestLiveGateway_CloseFlashSucceeds(t *testing.T) {
	var placeCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/mix/order/close-positions":
			fmt.Fprint(w, `{"code":"00000","msg":"success","data":{}}`)
		case "/api/v2/mix/order/place-order":
			placeCalls++
			fmt.Fprint(w, `{"code":"00000","msg":"success","data":{}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	g := liveTestGateway(t, srv.URL)
	res, err := g.Close(context.Background(), &domain.PositionSnapshot{
		Instrument: "BTCUSDT",
		Side:       domain.Long,
		Size:       0.002,
	})
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !res.Accepted {
		t.Fatalf("Accepted = false, message %q", res.Message)
	}
	if placeCalls != 0 {
		t.Errorf("fallback order placed %d times, want 0", placeCalls)
	}
}
