package execution

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"flipbot/internal/domain"
	"flipbot/internal/infra"
)

// DryRunGateway accepts every order without touching the exchange. The rest
// of the pipeline (ledger writes, reservations, rotation) runs exactly as it
// would live, so a dry run exercises everything but the venue.
type DryRunGateway struct {
	priceFeed *infra.PriceFeed
}

func NewDryRunGateway(priceFeed *infra.PriceFeed) *DryRunGateway {
	return &DryRunGateway{priceFeed: priceFeed}
}

func (g *DryRunGateway) Place(ctx context.Context, req PlaceRequest) (*Result, error) {
	orderID := "DRY-" + uuid.NewString()
	slog.Info("Dry-run order accepted",
		slog.String("instrument", req.Instrument),
		slog.String("direction", string(req.Direction)),
		slog.Float64("size", req.Size),
		slog.String("order_id", orderID))
	return syntheticResult(orderID, req.Instrument, string(req.Direction), req.Size), nil
}

func (g *DryRunGateway) Close(ctx context.Context, snap *domain.PositionSnapshot) (*Result, error) {
	orderID := "DRY-" + uuid.NewString()
	slog.Info("Dry-run close accepted",
		slog.String("instrument", snap.Instrument),
		slog.String("side", string(snap.Side)),
		slog.Float64("size", snap.Size))
	return syntheticResult(orderID, snap.Instrument, "close", snap.Size), nil
}

func (g *DryRunGateway) CancelResting(ctx context.Context, instrument string) (*Result, error) {
	return &Result{Accepted: true, Message: "dry run"}, nil
}

// Position always reports flat: dry-run holds no venue state, so believed
// position falls through to the trade ledger.
func (g *DryRunGateway) Position(ctx context.Context, instrument string) (*domain.PositionSnapshot, error) {
	return &domain.PositionSnapshot{Instrument: instrument}, nil
}

func (g *DryRunGateway) MarkPrice(ctx context.Context, instrument string) (float64, error) {
	return g.priceFeed.Price(ctx, instrument)
}

func (g *DryRunGateway) OrderStatus(ctx context.Context, orderID string) (*Result, error) {
	return &Result{Accepted: true, OrderID: orderID, Message: "dry run"}, nil
}

func syntheticResult(orderID, instrument, action string, size float64) *Result {
	raw, _ := json.Marshal(map[string]any{
		"dryRun":     true,
		"orderId":    orderID,
		"instrument": instrument,
		"action":     action,
		"size":       size,
	})
	return &Result{Accepted: true, OrderID: orderID, Raw: string(raw)}
}
