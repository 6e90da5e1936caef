package engine

import (
	"context"
	"errors"
	"log/slog"

	"flipbot/internal/domain"
	"flipbot/internal/execution"
	"flipbot/internal/storage"
)

// Oracle answers "what position do we believe is open for this instrument".
// The exchange is asked first; its answer is advisory and read-only. When
// the exchange reports flat or cannot be reached, the latest placed ledger
// row stands in, compensating for venue propagation lag right after an
// order. Neither source means flat.
type Oracle struct {
	gateway execution.Gateway
	store   *storage.TradeStore
}

func NewOracle(gateway execution.Gateway, store *storage.TradeStore) *Oracle {
	return &Oracle{gateway: gateway, store: store}
}

// Believed returns the current position belief. The snapshot is never nil;
// IsFlat reports whether anything is open. When the belief comes from the
// ledger, the backing trade record is returned alongside.
func (o *Oracle) Believed(ctx context.Context, instrument string) (*domain.PositionSnapshot, *domain.TradeRecord, error) {
	snap, err := o.gateway.Position(ctx, instrument)
	if err != nil {
		slog.Warn("Exchange position query failed, consulting ledger",
			slog.String("instrument", instrument),
			slog.Any("error", err))
	} else if !snap.IsFlat() {
		// A present remote snapshot wins over ledger recency. Pair it with
		// the placed row, if any, so rotation can finalize it.
		tr, lerr := o.store.LatestPlaced(ctx, instrument)
		if lerr != nil && !errors.Is(lerr, storage.ErrNotFound) {
			return nil, nil, lerr
		}
		return snap, tr, nil
	}

	tr, lerr := o.store.LatestPlaced(ctx, instrument)
	if errors.Is(lerr, storage.ErrNotFound) {
		return &domain.PositionSnapshot{Instrument: instrument}, nil, nil
	}
	if lerr != nil {
		return nil, nil, lerr
	}

	return &domain.PositionSnapshot{
		Instrument: instrument,
		Side:       tr.Direction,
		Size:       tr.Size,
		EntryPrice: tr.Price,
		Margin:     tr.Margin,
		Leverage:   tr.Leverage,
		LiqPrice:   tr.LiqPrice,
	}, tr, nil
}
