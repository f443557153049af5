package checkin

import "errors"

var (
	// ErrReservationNotFound is returned by a ReservationService when the airline
	// has no record for the confirmation number. During scheduling it is a lookup
	// failure; during check-in it means the reservation was cancelled.
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrInvalid marks malformed caller input.
	ErrInvalid = errors.New("invalid input")

	// ErrSubmission wraps any other failure to submit a check-in.
	ErrSubmission = errors.New("check-in submission failed")
)
