package execution

import (
	"context"

	"flipbot/internal/domain"
)

// PlaceRequest describes a market order to open (or reduce) a position.
type PlaceRequest struct {
	Instrument string
	Direction  domain.Direction
	Size       float64
	ReduceOnly bool
}

// Result is the exchange's answer to an order request. Accepted=false with a
// nil error means the exchange understood the request and said no; callers
// record the message instead of retrying.
type Result struct {
	Accepted bool
	OrderID  string
	Message  string
	Raw      string
}

// Gateway is the order-execution surface the engine talks to. Exactly one
// implementation is wired at startup; dry-run and live flows are otherwise
// identical.
type Gateway interface {
	// Place submits a market order. A non-nil error means the exchange was
	// unreachable and the request may be retried with a fresh client oid.
	Place(ctx context.Context, req PlaceRequest) (*Result, error)

	// Close flattens the given position.
	Close(ctx context.Context, snap *domain.PositionSnapshot) (*Result, error)

	// CancelResting cancels any resting orders for the instrument.
	CancelResting(ctx context.Context, instrument string) (*Result, error)

	// Position reports the venue's view of the current holding. A flat
	// snapshot means no open position.
	Position(ctx context.Context, instrument string) (*domain.PositionSnapshot, error)

	// MarkPrice returns the venue's current price for the instrument.
	MarkPrice(ctx context.Context, instrument string) (float64, error)

	// OrderStatus queries an order by id, for diagnostics.
	OrderStatus(ctx context.Context, orderID string) (*Result, error)
}
