// Package server exposes the webhook ingress, the trade read API, the
// dashboard WebSocket stream, and operational endpoints.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flipbot/internal/domain"
	"flipbot/internal/engine"
	"flipbot/internal/execution"
	"flipbot/internal/infra"
	"flipbot/internal/metrics"
	"flipbot/internal/notify"
	"flipbot/internal/signal"
	"flipbot/internal/storage"
)

// secretHeader is what TradingView alert webhooks are configured to send.
const secretHeader = "Tradingview-Secret"

type Server struct {
	cfg        *infra.Config
	normalizer *signal.Normalizer
	rotator    *engine.Rotator
	store      *storage.TradeStore
	gateway    execution.Gateway
	events     *notify.Fanout
	hub        *notify.Hub
}

func New(cfg *infra.Config, normalizer *signal.Normalizer, rotator *engine.Rotator,
	store *storage.TradeStore, gateway execution.Gateway, events *notify.Fanout, hub *notify.Hub) *Server {
	return &Server{
		cfg:        cfg,
		normalizer: normalizer,
		rotator:    rotator,
		store:      store,
		gateway:    gateway,
		events:     events,
		hub:        hub,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleInfo)
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /trades", s.handleTrades)
	mux.HandleFunc("POST /debug/order-status", s.handleOrderStatus)
	mux.Handle("GET /ws", s.hub)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"app":     s.cfg.App.Name,
		"version": s.cfg.App.Version,
		"mode":    s.cfg.Trading.Mode,
		"status":  "ok",
	})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var payload signal.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		metrics.SignalsTotal.WithLabelValues("rejected").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid JSON body"})
		return
	}

	if !s.authorized(r, &payload) {
		metrics.SignalsTotal.WithLabelValues("unauthorized").Inc()
		writeJSON(w, http.StatusForbidden, map[string]any{"ok": false, "error": "invalid secret"})
		return
	}

	sig, err := s.normalizer.Normalize(r.Context(), &payload)
	if err != nil {
		s.writeNormalizeError(w, r, &payload, err)
		return
	}
	metrics.SignalsTotal.WithLabelValues("accepted").Inc()

	out, err := s.rotator.HandleSignal(r.Context(), sig)
	if err != nil {
		slog.Error("Signal handling failed",
			slog.String("instrument", sig.Instrument),
			slog.String("direction", string(sig.Direction)),
			slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"action":   out.Action,
		"trade_id": out.Trade.ID,
		"status":   string(out.Trade.Status),
		"reason":   out.Reason,
	})
}

// writeNormalizeError maps normalization failures: unparseable direction is
// a recorded ignore (200, ok:false), a dead price feed is a retryable 502.
func (s *Server) writeNormalizeError(w http.ResponseWriter, r *http.Request, payload *signal.Payload, err error) {
	switch {
	case errors.Is(err, infra.ErrPriceUnavailable):
		metrics.SignalsTotal.WithLabelValues("rejected").Inc()
		writeJSON(w, http.StatusBadGateway, map[string]any{"ok": false, "error": err.Error()})

	case errors.Is(err, signal.ErrUnknownSignal), errors.Is(err, signal.ErrMissingInstrument):
		metrics.SignalsTotal.WithLabelValues("rejected").Inc()
		s.recordRejected(r, payload, err)
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "error": err.Error()})

	default:
		metrics.SignalsTotal.WithLabelValues("rejected").Inc()
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
	}
}

// recordRejected leaves an ignored audit row for a signal that never made
// it past validation. Best-effort; the caller already has its answer.
func (s *Server) recordRejected(r *http.Request, payload *signal.Payload, cause error) {
	instrument := payload.Symbol
	if instrument == "" {
		instrument = payload.Ticker
	}
	if instrument == "" {
		instrument = "UNKNOWN"
	}
	tr := &domain.TradeRecord{
		ID:         uuid.NewString(),
		Instrument: instrument,
		Direction:  domain.Direction("NONE"),
		Status:     domain.StatusIgnored,
		Response:   cause.Error(),
	}
	if err := s.store.Insert(r.Context(), tr); err != nil {
		slog.Warn("Failed to record rejected signal", slog.Any("error", err))
	}
	s.events.Publish(r.Context(), notify.FromTrade(tr, "ignored", cause.Error()))
}

func (s *Server) authorized(r *http.Request, payload *signal.Payload) bool {
	want := s.cfg.Server.WebhookSecret
	if want == "" {
		return true
	}
	if r.Header.Get(secretHeader) == want {
		return true
	}
	return payload.Secret == want
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	status := domain.Status(r.URL.Query().Get("status"))
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid limit"})
			return
		}
		limit = n
	}

	trades, err := s.store.List(r.Context(), status, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	if trades == nil {
		trades = []*domain.TradeRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "trades": trades})
}

func (s *Server) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID string `json:"order_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "order_id required"})
		return
	}

	res, err := s.gateway.OrderStatus(r.Context(), req.OrderID)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       res.Accepted,
		"order_id": res.OrderID,
		"message":  res.Message,
		"raw":      json.RawMessage(orEmptyJSON(res.Raw)),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("Response write failed", slog.Any("error", err))
	}
}

func orEmptyJSON(raw string) string {
	if raw == "" || !json.Valid([]byte(raw)) {
		return "null"
	}
	return raw
}
