// Package notify pushes trade lifecycle events to external channels
// (WebSocket dashboards, Telegram, generic webhooks). Delivery is
// fire-and-forget: a failed push never affects ledger state.
package notify

import (
	"context"
	"log/slog"
	"time"

	"flipbot/internal/domain"
)

// Event is one trade lifecycle notification.
type Event struct {
	Type       string  `json:"type"` // received | placed | closed | ignored | error
	TradeID    string  `json:"trade_id"`
	Instrument string  `json:"instrument"`
	Direction  string  `json:"direction,omitempty"`
	Price      float64 `json:"price,omitempty"`
	Size       float64 `json:"size,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	OrderID    string  `json:"order_id,omitempty"`
	PnL        float64 `json:"realized_pnl,omitempty"`
	Timestamp  string  `json:"ts"`
}

// FromTrade builds an event snapshot from a ledger record.
func FromTrade(tr *domain.TradeRecord, eventType, reason string) Event {
	ev := Event{
		Type:       eventType,
		TradeID:    tr.ID,
		Instrument: tr.Instrument,
		Direction:  string(tr.Direction),
		Price:      tr.Price,
		Size:       tr.Size,
		Reason:     reason,
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if tr.RealizedPnL != nil {
		ev.PnL = *tr.RealizedPnL
	}
	return ev
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	Send(ctx context.Context, ev Event) error
}

// Fanout pushes each event to every backend, logging failures and moving on.
type Fanout struct {
	backends []Notifier
}

func NewFanout(backends ...Notifier) *Fanout {
	return &Fanout{backends: backends}
}

// Publish delivers ev to every backend. Errors are logged, never returned;
// callers must not branch on notification outcome.
func (f *Fanout) Publish(ctx context.Context, ev Event) {
	for _, b := range f.backends {
		if err := b.Send(ctx, ev); err != nil {
			slog.Warn("Notification delivery failed",
				slog.String("type", ev.Type),
				slog.String("trade_id", ev.TradeID),
				slog.Any("error", err))
		}
	}
}

// LogNotifier writes events to the structured log, for development.
type LogNotifier struct{}

func (LogNotifier) Send(ctx context.Context, ev Event) error {
	slog.Info("Trade event",
		slog.String("type", ev.Type),
		slog.String("trade_id", ev.TradeID),
		slog.String("instrument", ev.Instrument),
		slog.String("direction", ev.Direction))
	return nil
}
