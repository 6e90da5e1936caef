package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"flipbot/internal/domain"
	"flipbot/internal/execution"
	"flipbot/internal/metrics"
	"flipbot/internal/notify"
	"flipbot/internal/storage"
)

// ErrCloseFailed marks an aborted rotation: the existing position could not
// be confirmed closed, so no opposite order was attempted.
var ErrCloseFailed = errors.New("close failed, rotation aborted")

// ErrOrderRejected marks a placement the exchange understood and refused.
// The provider message is recorded on the trade; the signal is not retried.
var ErrOrderRejected = errors.New("order rejected by exchange")

const (
	ActionOpen   = "open"
	ActionRotate = "rotate"
	ActionIgnore = "ignore"
)

// Outcome summarizes what one signal did to the book.
type Outcome struct {
	Action string
	Trade  *domain.TradeRecord
	Reason string
}

// Rotator is the per-signal state machine: given the believed position and
// the intended direction it ignores duplicates, opens on flat, and rotates
// (close then open) on reversal. The reservation ledger is the only
// serialization point; there is no global lock.
type Rotator struct {
	oracle  *Oracle
	gateway execution.Gateway
	store   *storage.TradeStore
	events  *notify.Fanout
}

func NewRotator(oracle *Oracle, gateway execution.Gateway, store *storage.TradeStore, events *notify.Fanout) *Rotator {
	return &Rotator{oracle: oracle, gateway: gateway, store: store, events: events}
}

// HandleSignal runs one signal through the state machine.
func (r *Rotator) HandleSignal(ctx context.Context, sig *domain.Signal) (*Outcome, error) {
	believed, current, err := r.oracle.Believed(ctx, sig.Instrument)
	if err != nil {
		return nil, fmt.Errorf("position lookup failed: %w", err)
	}

	switch {
	case believed.IsFlat():
		metrics.DecisionsTotal.WithLabelValues(ActionOpen).Inc()
		return r.open(ctx, sig, ActionOpen)

	case believed.Side == sig.Direction:
		metrics.DecisionsTotal.WithLabelValues(ActionIgnore).Inc()
		return r.ignore(ctx, sig, "duplicate direction")

	default:
		metrics.DecisionsTotal.WithLabelValues(ActionRotate).Inc()
		if err := r.closeCurrent(ctx, believed, current); err != nil {
			return nil, err
		}
		return r.open(ctx, sig, ActionRotate)
	}
}

// ignore records the suppressed signal; not an error.
func (r *Rotator) ignore(ctx context.Context, sig *domain.Signal, reason string) (*Outcome, error) {
	tr := recordFromSignal(sig)
	tr.ID = uuid.NewString()
	tr.Status = domain.StatusIgnored
	tr.Response = reason
	if err := r.store.Insert(ctx, tr); err != nil {
		return nil, fmt.Errorf("failed to record ignored signal: %w", err)
	}
	r.events.Publish(ctx, notify.FromTrade(tr, "ignored", reason))

	slog.Info("Signal ignored",
		slog.String("instrument", sig.Instrument),
		slog.String("direction", string(sig.Direction)),
		slog.String("reason", reason))
	return &Outcome{Action: ActionIgnore, Trade: tr, Reason: reason}, nil
}

// closeCurrent flattens the believed position and finalizes its ledger row.
// Any failure aborts the rotation before an opposite order is attempted.
func (r *Rotator) closeCurrent(ctx context.Context, snap *domain.PositionSnapshot, current *domain.TradeRecord) error {
	res, err := r.gateway.Close(ctx, snap)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCloseFailed, err)
	}
	if !res.Accepted {
		return fmt.Errorf("%w: %s", ErrCloseFailed, res.Message)
	}

	exitPrice := r.exitPrice(ctx, snap)
	if current != nil {
		pnl := snap.PnL(exitPrice)
		if err := r.store.MarkClosed(ctx, current.ID, exitPrice, pnl); err != nil {
			return fmt.Errorf("position closed but ledger update failed: %w", err)
		}
		current.Status = domain.StatusClosed
		current.ExitPrice = &exitPrice
		current.RealizedPnL = &pnl
		r.events.Publish(ctx, notify.FromTrade(current, "closed", ""))
	}

	// Stale resting orders would re-open the book behind our back. Failure
	// here is non-fatal.
	if _, err := r.gateway.CancelResting(ctx, snap.Instrument); err != nil {
		slog.Warn("Resting-order cleanup failed",
			slog.String("instrument", snap.Instrument),
			slog.Any("error", err))
	}

	slog.Info("Position closed",
		slog.String("instrument", snap.Instrument),
		slog.String("side", string(snap.Side)),
		slog.Float64("exit_price", exitPrice))
	return nil
}

// exitPrice fetches a fresh market price for PnL, falling back to the
// snapshot's mark and then its entry when the venue has nothing.
func (r *Rotator) exitPrice(ctx context.Context, snap *domain.PositionSnapshot) float64 {
	if price, err := r.gateway.MarkPrice(ctx, snap.Instrument); err == nil && price > 0 {
		return price
	}
	if snap.MarkPrice > 0 {
		return snap.MarkPrice
	}
	return snap.EntryPrice
}

// open reserves the (instrument, direction) slot, places the order, and
// records the outcome. The reservation is released on every path out.
func (r *Rotator) open(ctx context.Context, sig *domain.Signal, action string) (*Outcome, error) {
	tr := recordFromSignal(sig)
	tr.Status = domain.StatusReceived
	tr.Reservation = domain.ReservationKey(sig.Instrument, sig.Direction)

	err := r.store.Insert(ctx, tr)
	if errors.Is(err, storage.ErrReservationHeld) {
		metrics.DecisionsTotal.WithLabelValues(ActionIgnore).Inc()
		return r.ignore(ctx, sig, "concurrent reservation")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record signal: %w", err)
	}
	defer func() {
		if err := r.store.ClearReservation(context.WithoutCancel(ctx), tr.ID); err != nil {
			slog.Error("Failed to release reservation",
				slog.String("trade_id", tr.ID),
				slog.Any("error", err))
		}
	}()
	r.events.Publish(ctx, notify.FromTrade(tr, "received", ""))

	res, err := r.gateway.Place(ctx, execution.PlaceRequest{
		Instrument: sig.Instrument,
		Direction:  sig.Direction,
		Size:       sig.Size,
	})
	if err != nil {
		metrics.OrdersTotal.WithLabelValues(sig.Instrument, "unreachable").Inc()
		r.fail(ctx, tr, err.Error())
		return nil, fmt.Errorf("exchange unreachable: %w", err)
	}
	if !res.Accepted {
		metrics.OrdersTotal.WithLabelValues(sig.Instrument, "rejected").Inc()
		r.fail(ctx, tr, res.Message)
		return nil, fmt.Errorf("%w: %s", ErrOrderRejected, res.Message)
	}

	metrics.OrdersTotal.WithLabelValues(sig.Instrument, "placed").Inc()
	if err := r.store.UpdateExecution(ctx, tr.ID, domain.StatusPlaced, res.Raw); err != nil {
		return nil, fmt.Errorf("order placed but ledger update failed: %w", err)
	}
	tr.Status = domain.StatusPlaced
	tr.Response = res.Raw
	r.refreshRisk(ctx, tr)

	ev := notify.FromTrade(tr, "placed", "")
	ev.OrderID = res.OrderID
	r.events.Publish(ctx, ev)

	slog.Info("Order placed",
		slog.String("instrument", sig.Instrument),
		slog.String("direction", string(sig.Direction)),
		slog.Float64("size", sig.Size),
		slog.String("order_id", res.OrderID))
	return &Outcome{Action: action, Trade: tr}, nil
}

// refreshRisk copies the venue-reported margin and liquidation price onto
// the placed row. Best-effort: dry-run and unreadable positions leave the
// fields at zero.
func (r *Rotator) refreshRisk(ctx context.Context, tr *domain.TradeRecord) {
	snap, err := r.gateway.Position(ctx, tr.Instrument)
	if err != nil || snap.IsFlat() {
		return
	}
	if err := r.store.UpdateRisk(ctx, tr.ID, snap.Margin, snap.LiqPrice); err != nil {
		slog.Warn("Failed to record risk fields",
			slog.String("trade_id", tr.ID),
			slog.Any("error", err))
		return
	}
	tr.Margin = snap.Margin
	tr.LiqPrice = snap.LiqPrice
}

// fail transitions the trade to error, preserving the provider message
// verbatim for audit.
func (r *Rotator) fail(ctx context.Context, tr *domain.TradeRecord, message string) {
	if err := r.store.UpdateExecution(ctx, tr.ID, domain.StatusError, message); err != nil {
		slog.Error("Failed to record trade error",
			slog.String("trade_id", tr.ID),
			slog.Any("error", err))
	}
	tr.Status = domain.StatusError
	tr.Response = message
	r.events.Publish(ctx, notify.FromTrade(tr, "error", message))
}

func recordFromSignal(sig *domain.Signal) *domain.TradeRecord {
	id := sig.TradeID
	if id == "" {
		id = uuid.NewString()
	}
	return &domain.TradeRecord{
		ID:         id,
		Instrument: sig.Instrument,
		Direction:  sig.Direction,
		Price:      sig.Price,
		Size:       sig.Size,
		SizeUSD:    sig.SizeUSD,
		Leverage:   sig.Leverage,
	}
}
