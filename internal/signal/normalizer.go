// Package signal turns loosely-typed webhook payloads into canonical
// trading signals. Downstream components never see the raw payload.
package signal

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"flipbot/internal/domain"
)

var (
	// ErrUnknownSignal is returned when no recognizable direction token is
	// present in any of the accepted payload fields.
	ErrUnknownSignal = errors.New("unknown signal")

	// ErrMissingInstrument is returned when no symbol can be derived.
	ErrMissingInstrument = errors.New("missing instrument")
)

// FlexFloat is a float64 that also decodes from a quoted JSON string.
// TradingView alert templates interpolate numeric placeholders as strings,
// so "50000.5" and 50000.5 must both be accepted. Empty and null mean zero.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", data)
	}
	*f = FlexFloat(v)
	return nil
}

// Payload is the raw webhook body. Alerting tools disagree on field names,
// so the same value may arrive under several keys.
type Payload struct {
	Signal string `json:"signal"`
	Action string `json:"action"`
	Event  string `json:"event"`
	Side   string `json:"side"`

	Symbol string `json:"symbol"`
	Ticker string `json:"ticker"`

	Price    FlexFloat `json:"price"`
	Size     FlexFloat `json:"size"`
	SizeUSD  FlexFloat `json:"size_usd"`
	SizeUsd  FlexFloat `json:"sizeUsd"`
	SizeUSD2 FlexFloat `json:"sizeUSD"`

	Leverage FlexFloat `json:"leverage"`
	TradeID  string    `json:"trade_id"`

	// Secret mirrors the Tradingview-Secret header for senders that can
	// only set body fields.
	Secret string `json:"secret"`
}

func (p *Payload) directionToken() string {
	for _, v := range []string{p.Signal, p.Action, p.Event, p.Side} {
		if v != "" {
			return v
		}
	}
	return ""
}

func (p *Payload) symbolToken() string {
	if p.Symbol != "" {
		return p.Symbol
	}
	return p.Ticker
}

func (p *Payload) notional() float64 {
	for _, v := range []FlexFloat{p.SizeUSD, p.SizeUsd, p.SizeUSD2} {
		if v > 0 {
			return float64(v)
		}
	}
	return 0
}

// PriceSource supplies a reference price when the payload does not state one.
type PriceSource interface {
	Price(ctx context.Context, instrument string) (float64, error)
}

// Normalizer validates payloads and resolves sizing into contract quantity.
type Normalizer struct {
	prices PriceSource
	minQty float64 // venue minimum; resolved dust quantities are raised to it
}

func NewNormalizer(prices PriceSource, minQty float64) *Normalizer {
	return &Normalizer{prices: prices, minQty: minQty}
}

// Normalize produces a canonical signal or a typed rejection. Sizing prefers
// an explicit contract quantity; a quote-currency notional is divided by the
// payload's price, or a freshly fetched one. A notional with no resolvable
// price is a hard failure, never a guessed quantity.
func (n *Normalizer) Normalize(ctx context.Context, p *Payload) (*domain.Signal, error) {
	token := p.directionToken()
	if token == "" {
		return nil, fmt.Errorf("%w: no direction field in payload", ErrUnknownSignal)
	}
	dir, err := domain.ParseDirection(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownSignal, err)
	}

	raw := p.symbolToken()
	if raw == "" {
		return nil, ErrMissingInstrument
	}
	instrument, err := domain.NormalizeInstrument(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingInstrument, err)
	}

	sig := &domain.Signal{
		TradeID:    p.TradeID,
		Instrument: instrument,
		Direction:  dir,
		Price:      float64(p.Price),
		Size:       float64(p.Size),
		SizeUSD:    p.notional(),
		Leverage:   float64(p.Leverage),
	}
	if sig.TradeID == "" {
		sig.TradeID = uuid.NewString()
	}

	if sig.Size <= 0 && sig.SizeUSD > 0 {
		price := sig.Price
		if price <= 0 {
			price, err = n.prices.Price(ctx, instrument)
			if err != nil {
				return nil, err
			}
			sig.Price = price
		}
		qty := decimal.NewFromFloat(sig.SizeUSD).
			Div(decimal.NewFromFloat(price))
		sig.Size, _ = qty.Float64()
	}

	if sig.Size > 0 && sig.Size < n.minQty {
		sig.Size = n.minQty
	}

	return sig, nil
}
