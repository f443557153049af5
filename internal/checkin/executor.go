package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Executor submits check-in for a Task and decides whether more legs remain.
// It never waits: a remaining window is reported as OutcomeContinue and the
// caller runs the successor later.
type Executor struct {
	Reservations ReservationService
	Notifier     Notifier
	Logger       *slog.Logger
}

// CheckIn runs one attempt. The returned error is non-nil only for
// OutcomeFailed and wraps ErrSubmission when the airline rejected the request.
func (e *Executor) CheckIn(ctx context.Context, task Task) (Result, error) {
	if err := task.Validate(); err != nil {
		return Failed(err.Error()), fmt.Errorf("invalid task: %w", err)
	}
	log := e.logger().With(slog.String("confirmation_number", task.ConfirmationNumber))

	passes, err := e.Reservations.SubmitCheckIn(ctx, task.ConfirmationNumber, task.Passengers)
	switch {
	case errors.Is(err, ErrReservationNotFound):
		log.Info("reservation cancelled, not checking in")
		return Cancelled(), nil
	case err != nil:
		log.Error("check-in submission failed", slog.String("error", err.Error()))
		return Failed(err.Error()), fmt.Errorf("%w for %s: %w", ErrSubmission, task.ConfirmationNumber, err)
	}
	log.Info("checked in", slog.Int("boarding_passes", len(passes.Passes)))

	if e.Notifier != nil {
		err := e.Notifier.SendBoardingPasses(ctx, BoardingPassNotice{
			Passengers:         task.Passengers,
			ConfirmationNumber: task.ConfirmationNumber,
			BoardingPasses:     passes,
			Email:              task.Email,
		})
		if err != nil {
			log.Warn("boarding pass email failed", slog.String("error", err.Error()))
		}
	}

	if next, ok := task.Successor(); ok {
		log.Info("more legs remain", slog.Time("next", *next.CheckInTimes.Next))
		return Continue(next), nil
	}
	return Completed(), nil
}

// CheckInPayload decodes a task in either the current or legacy shape and runs it.
func (e *Executor) CheckInPayload(ctx context.Context, payload []byte) (Result, error) {
	task, err := ParseTask(payload)
	if err != nil {
		return Failed(err.Error()), err
	}
	return e.CheckIn(ctx, task)
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
