package storage

import "errors"

var (
	// ErrNotFound is returned when a query matches no trade.
	ErrNotFound = errors.New("trade not found")

	// ErrReservationHeld is returned when another in-flight signal already
	// holds the reservation for the same instrument and direction.
	ErrReservationHeld = errors.New("reservation already held")

	// ErrDuplicateKey is returned on any other unique-constraint violation.
	ErrDuplicateKey = errors.New("duplicate key")
)
