package database

import (
	"errors"
	"fmt"
)

var (
	ErrEventNotFound     = errors.New("event not found")
	ErrTrackNotFound     = errors.New("track not found")
	ErrSlotNotFound      = errors.New("slot not found")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrPromotionNotFound = errors.New("promotion not found")

	// ErrBusinessClosed means the parent event is not in a bookable status.
	ErrBusinessClosed = errors.New("business is not open for booking")

	// ErrConcurrentModification signals a guarded update lost the race.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrDuplicateSession signals a checkout session id collision.
	ErrDuplicateSession = errors.New("checkout session already exists")

	ErrPastDate            = errors.New("date is in the past")
	ErrMissingFields       = errors.New("required fields are missing")
	ErrWrongDay            = errors.New("slot does not run on that day")
	ErrInvalidSeats        = errors.New("invalid number of seats")
	ErrInvalidTimeRange    = errors.New("invalid time range")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrMixedBookings       = errors.New("bookings span multiple hosts or currencies")
	ErrAlreadyPaid         = errors.New("booking already paid")

	// ErrPendingCheckout means an unpaid checkout session already covers the
	// booking; a second session would risk a double charge.
	ErrPendingCheckout = errors.New("an unpaid checkout already covers this booking")
)

// CapacityError rejects a reservation that would oversell a slot. Remaining
// carries the literal seat count at rejection time so the caller can offer a
// reduced quantity.
type CapacityError struct {
	Remaining int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%d seats available", e.Remaining)
}

// IsCapacityError reports whether err is a capacity rejection and returns it.
func IsCapacityError(err error) (*CapacityError, bool) {
	var ce *CapacityError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
