package checkin

import (
	"context"
	"encoding/json"
	"time"
)

// Reservation is a snapshot of the airline record taken at schedule time.
type Reservation struct {
	ConfirmationNumber string
	Passengers         []Passenger
	// Departures holds one departure per leg, each in the leg's local offset.
	Departures []time.Time
}

// BoardingPass summarizes one issued boarding document.
type BoardingPass struct {
	Passenger     string `json:"passenger"`
	FlightNumber  string `json:"flight_number"`
	BoardingGroup string `json:"boarding_group"`
	Position      string `json:"position"`
}

// BoardingPasses is the result of a successful check-in submission.
type BoardingPasses struct {
	Passes []BoardingPass
	Raw    json.RawMessage
}

// ReservationService is the airline API. Implementations return an error
// wrapping ErrReservationNotFound when the record does not exist.
type ReservationService interface {
	GetReservation(ctx context.Context, confirmation, firstName, lastName string) (Reservation, error)
	SubmitCheckIn(ctx context.Context, confirmation string, passengers []Passenger) (BoardingPasses, error)
}

type ScheduledNotice struct {
	Passengers         []Passenger
	ConfirmationNumber string
	NextCheckIn        time.Time
	Email              string
}

type BoardingPassNotice struct {
	Passengers         []Passenger
	ConfirmationNumber string
	BoardingPasses     BoardingPasses
	Email              string
}

// Notifier delivers traveler emails. Delivery failures never change the
// outcome of a scheduling or check-in attempt.
type Notifier interface {
	SendScheduled(ctx context.Context, n ScheduledNotice) error
	SendBoardingPasses(ctx context.Context, n BoardingPassNotice) error
}
