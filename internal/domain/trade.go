package domain

import "time"

// Status is the lifecycle state of a trade record.
type Status string

const (
	StatusReceived Status = "received" // signal logged, no order yet
	StatusPlaced   Status = "placed"   // order accepted by the exchange (or simulated)
	StatusClosed   Status = "closed"   // position flattened
	StatusError    Status = "error"    // execution failed
	StatusIgnored  Status = "ignored"  // decision suppressed the signal
)

// TradeRecord is one row of the audit ledger: one received signal or
// execution attempt. Monetary fields mirror what the exchange reported;
// zero means the value was not applicable or not derivable.
type TradeRecord struct {
	ID          string    `json:"id"`
	Instrument  string    `json:"instrument"`
	Direction   Direction `json:"direction"`
	Price       float64   `json:"price"`    // requested/reference price from the signal
	Size        float64   `json:"size"`     // contract quantity
	SizeUSD     float64   `json:"size_usd"` // quote-currency notional
	Leverage    float64   `json:"leverage"`
	Margin      float64   `json:"margin"`
	LiqPrice    float64   `json:"liquidation_price"`
	ExitPrice   *float64  `json:"exit_price"`   // set when the position is closed
	RealizedPnL *float64  `json:"realized_pnl"` // set when the position is closed
	Status      Status    `json:"status"`
	Response    string    `json:"response"` // raw exchange payload, audit only
	Reservation string    `json:"-"`        // non-empty only while an order is in flight
	CreatedAt   time.Time `json:"created_at"`
}

// ReservationKey builds the exclusivity key guarding concurrent placement
// for one (instrument, direction) pair.
func ReservationKey(instrument string, dir Direction) string {
	return instrument + ":" + string(dir)
}
