package execution

import (
	"context"
	"sync"

	"flipbot/internal/domain"
)

// MockGateway is a scripted test double. Zero value accepts every order,
// reports a flat position and a zero mark price.
type MockGateway struct {
	mu sync.Mutex

	// Scripted responses. Nil funcs fall back to permissive defaults.
	PlaceFunc     func(ctx context.Context, req PlaceRequest) (*Result, error)
	CloseFunc     func(ctx context.Context, snap *domain.PositionSnapshot) (*Result, error)
	PositionFunc  func(ctx context.Context, instrument string) (*domain.PositionSnapshot, error)
	MarkPriceFunc func(ctx context.Context, instrument string) (float64, error)
	CancelFunc    func(ctx context.Context, instrument string) (*Result, error)

	// Recorded calls, for assertions.
	Placed    []PlaceRequest
	Closed    []*domain.PositionSnapshot
	Cancelled []string
}

func (m *MockGateway) Place(ctx context.Context, req PlaceRequest) (*Result, error) {
	m.mu.Lock()
	m.Placed = append(m.Placed, req)
	m.mu.Unlock()
	if m.PlaceFunc != nil {
		return m.PlaceFunc(ctx, req)
	}
	return &Result{Accepted: true, OrderID: "mock-order"}, nil
}

func (m *MockGateway) Close(ctx context.Context, snap *domain.PositionSnapshot) (*Result, error) {
	m.mu.Lock()
	m.Closed = append(m.Closed, snap)
	m.mu.Unlock()
	if m.CloseFunc != nil {
		return m.CloseFunc(ctx, snap)
	}
	return &Result{Accepted: true, OrderID: "mock-close"}, nil
}

func (m *MockGateway) CancelResting(ctx context.Context, instrument string) (*Result, error) {
	m.mu.Lock()
	m.Cancelled = append(m.Cancelled, instrument)
	m.mu.Unlock()
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, instrument)
	}
	return &Result{Accepted: true}, nil
}

func (m *MockGateway) Position(ctx context.Context, instrument string) (*domain.PositionSnapshot, error) {
	if m.PositionFunc != nil {
		return m.PositionFunc(ctx, instrument)
	}
	return &domain.PositionSnapshot{Instrument: instrument}, nil
}

func (m *MockGateway) MarkPrice(ctx context.Context, instrument string) (float64, error) {
	if m.MarkPriceFunc != nil {
		return m.MarkPriceFunc(ctx, instrument)
	}
	return 0, nil
}

func (m *MockGateway) OrderStatus(ctx context.Context, orderID string) (*Result, error) {
	return &Result{Accepted: true, OrderID: orderID}, nil
}
