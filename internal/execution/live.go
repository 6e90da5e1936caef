package execution

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"flipbot/internal/domain"
	"flipbot/internal/infra/bitget"
	"flipbot/internal/metrics"
)

// LiveGateway routes orders to the Bitget mix-futures REST API.
type LiveGateway struct {
	client *bitget.Client
}

func NewLiveGateway(client *bitget.Client) *LiveGateway {
	return &LiveGateway{client: client}
}

func (g *LiveGateway) Place(ctx context.Context, req PlaceRequest) (*Result, error) {
	// Fresh client oid per attempt so a retry after a transport error
	// cannot double-fill.
	clientOid := "fb-" + uuid.NewString()

	defer observe("place", time.Now())
	res, err := g.client.PlaceOrder(ctx, req.Instrument, req.Direction, req.Size, req.ReduceOnly, clientOid)
	if err != nil {
		return nil, err
	}
	return fromClientResult(res), nil
}

// Close flattens the position via the flash-close endpoint, falling back to
// a reduce-only market order when the venue does not support flash close.
func (g *LiveGateway) Close(ctx context.Context, snap *domain.PositionSnapshot) (*Result, error) {
	defer observe("close", time.Now())
	res, err := g.client.ClosePosition(ctx, snap.Instrument, snap.Side.HoldSide())
	if errors.Is(err, bitget.ErrEndpointNotFound) {
		slog.Debug("Flash close unavailable, using reduce-only market order",
			slog.String("instrument", snap.Instrument))
		// OrderSide flips the wire side for reduce-only orders, so the
		// request carries the position's own direction.
		return g.Place(ctx, PlaceRequest{
			Instrument: snap.Instrument,
			Direction:  snap.Side,
			Size:       snap.Size,
			ReduceOnly: true,
		})
	}
	if err != nil {
		return nil, err
	}
	return fromClientResult(res), nil
}

func (g *LiveGateway) CancelResting(ctx context.Context, instrument string) (*Result, error) {
	res, err := g.client.CancelPendingOrders(ctx, instrument)
	if err != nil {
		return nil, err
	}
	return fromClientResult(res), nil
}

func (g *LiveGateway) Position(ctx context.Context, instrument string) (*domain.PositionSnapshot, error) {
	defer observe("position", time.Now())
	return g.client.Position(ctx, instrument)
}

func (g *LiveGateway) MarkPrice(ctx context.Context, instrument string) (float64, error) {
	defer observe("ticker", time.Now())
	return g.client.MarkPrice(ctx, instrument)
}

func (g *LiveGateway) OrderStatus(ctx context.Context, orderID string) (*Result, error) {
	res, err := g.client.OrderDetail(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return fromClientResult(res), nil
}

func observe(op string, start time.Time) {
	metrics.ExchangeLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func fromClientResult(res *bitget.Result) *Result {
	return &Result{
		Accepted: res.Success,
		OrderID:  res.OrderID,
		Message:  res.Message,
		Raw:      res.Raw,
	}
}
