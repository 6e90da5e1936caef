package domain

// SizeEpsilon is the quantity below which an exchange-reported position is
// treated as flat. Exchanges return dust residue after partial closes.
const SizeEpsilon = 1e-9

// PositionSnapshot is the normalized view of the exchange's reported
// position for one instrument. It lives for the duration of one decision
// and is never cached across signals.
type PositionSnapshot struct {
	Instrument    string
	Side          Direction // zero value means no open position
	Size          float64
	EntryPrice    float64
	MarkPrice     float64
	Margin        float64
	Leverage      float64
	LiqPrice      float64
	UnrealizedPnL float64
}

// IsFlat reports whether the snapshot carries no meaningful position.
func (p *PositionSnapshot) IsFlat() bool {
	return p == nil || p.Side == "" || p.Size <= SizeEpsilon
}

// PnL computes the realized profit of closing the position at exitPrice.
func (p *PositionSnapshot) PnL(exitPrice float64) float64 {
	if p.IsFlat() {
		return 0
	}
	if p.Side == Long {
		return (exitPrice - p.EntryPrice) * p.Size
	}
	return (p.EntryPrice - exitPrice) * p.Size
}
