package domain

import (
	"fmt"
	"strings"
)

// Direction is the side of a logical position.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// ParseDirection folds the signal vocabularies used by alert senders into a
// canonical direction. BUY and LONG are equivalent, as are SELL and SHORT.
// Anything else is rejected; a direction is never guessed.
func ParseDirection(token string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(token)) {
	case "BUY", "LONG":
		return Long, nil
	case "SELL", "SHORT":
		return Short, nil
	default:
		return "", fmt.Errorf("unknown signal %q", token)
	}
}

// Opposite returns the reverse direction.
func (d Direction) Opposite() Direction {
	if d == Long {
		return Short
	}
	return Long
}

// OrderSide maps the direction to the exchange order side ("buy"/"sell").
// When reduceOnly is set the mapping flips, since closing a long sells.
func (d Direction) OrderSide(reduceOnly bool) string {
	long := d == Long
	if reduceOnly {
		long = !long
	}
	if long {
		return "buy"
	}
	return "sell"
}

// HoldSide is the exchange's position-side vocabulary ("long"/"short").
func (d Direction) HoldSide() string {
	return strings.ToLower(string(d))
}
