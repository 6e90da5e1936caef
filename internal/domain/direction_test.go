package domain

import "testing"

func TestParseDirection(t *testing.T) {
	tests := []struct {
		token   string
		want    Direction
		wantErr bool
	}{
		{"BUY", Long, false},
		{"buy", Long, false},
		{"LONG", Long, false},
		{" long ", Long, false},
		{"SELL", Short, false},
		{"short", Short, false},
		{"HOLD", "", true},
		{"", "", true},
		{"CLOSE_ALL", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := ParseDirection(tt.token)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDirection(%q) error = %v, wantErr %v", tt.token, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseDirection(%q) = %v, want %v", tt.token, got, tt.want)
			}
		})
	}
}

func TestDirection_Opposite(t *testing.T) {
	if Long.Opposite() != Short || Short.Opposite() != Long {
		t.Error("Opposite() mapping broken")
	}
}

func TestDirection_OrderSide(t *testing.T) {
	tests := []struct {
		dir        Direction
		reduceOnly bool
		want       string
	}{
		{Long, false, "buy"},
		{Short, false, "sell"},
		{Long, true, "sell"},
		{Short, true, "buy"},
	}
	for _, tt := range tests {
		if got := tt.dir.OrderSide(tt.reduceOnly); got != tt.want {
			t.Errorf("%v.OrderSide(%v) = %q, want %q", tt.dir, tt.reduceOnly, got, tt.want)
		}
	}
}
