package execution

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"flipbot/internal/domain"
)

func TestDryRunGateway_Place(t *testing.T) {
	g := NewDryRunGateway(nil)

	res, err := g.Place(context.Background(), PlaceRequest{
		Instrument: "BTCUSDT",
		Direction:  domain.Long,
		Size:       0.002,
	})
	if err != nil {
		t.Fatalf("Place() error = %v", err)
	}
	if !res.Accepted {
		t.Error("Accepted = false, want true")
	}
	if !strings.HasPrefix(res.OrderID, "DRY-") {
		t.Errorf("OrderID = %q, want DRY- prefix", res.OrderID)
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(res.Raw), &raw); err != nil {
		t.Fatalf("Raw is not JSON: %v", err)
	}
	if raw["dryRun"] != true {
		t.Errorf("Raw = %s, missing dryRun marker", res.Raw)
	}
	if raw["instrument"] != "BTCUSDT" {
		t.Errorf("Raw instrument = %v, want BTCUSDT", raw["instrument"])
	}
}

func TestDryRunGateway_UniqueOrderIDs(t *testing.T) {
	g := NewDryRunGateway(nil)
	req := PlaceRequest{Instrument: "BTCUSDT", Direction: domain.Long, Size: 1}

	a, _ := g.Place(context.Background(), req)
	b, _ := g.Place(context.Background(), req)
	if a.OrderID == b.OrderID {
		t.Errorf("consecutive orders share id %q", a.OrderID)
	}
}

func TestDryRunGateway_PositionIsFlat(t *testing.T) {
	g := NewDryRunGateway(nil)

	snap, err := g.Position(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("Position() error = %v", err)
	}
	if !snap.IsFlat() {
		t.Errorf("Position() = %+v, want flat", snap)
	}
}
