package domain

// Signal is the canonical, fully-resolved form of an incoming alert.
// Downstream components never see the raw payload.
type Signal struct {
	TradeID    string // caller-supplied correlation id, or generated
	Instrument string
	Direction  Direction
	Price      float64 // reference price stated by the sender, 0 if absent
	Size       float64 // resolved contract quantity
	SizeUSD    float64 // original notional hint, kept for the ledger
	Leverage   float64
}
