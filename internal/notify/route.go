package notify

import (
	"context"

	"github.com/example/checkin-scheduler/internal/checkin"
)

// BoardingPassEmailer is implemented by southwest.Client.
type BoardingPassEmailer interface {
	EmailBoardingPass(ctx context.Context, confirmation string, passengers []checkin.Passenger, email string) error
}

// Split sends scheduling confirmations through one notifier and boarding
// passes through the airline's own email endpoint.
type Split struct {
	Scheduled checkin.Notifier
	Airline   BoardingPassEmailer
}

func (s Split) SendScheduled(ctx context.Context, n checkin.ScheduledNotice) error {
	return s.Scheduled.SendScheduled(ctx, n)
}

func (s Split) SendBoardingPasses(ctx context.Context, n checkin.BoardingPassNotice) error {
	return s.Airline.EmailBoardingPass(ctx, n.ConfirmationNumber, n.Passengers, n.Email)
}

// Discard drops every notification.
type Discard struct{}

func (Discard) SendScheduled(context.Context, checkin.ScheduledNotice) error { return nil }

func (Discard) SendBoardingPasses(context.Context, checkin.BoardingPassNotice) error { return nil }
