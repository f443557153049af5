package checkin

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ScheduleRequest is the input to Scheduler.Schedule.
type ScheduleRequest struct {
	FirstName             string `json:"first_name"`
	LastName              string `json:"last_name"`
	ConfirmationNumber    string `json:"confirmation_number"`
	Email                 string `json:"email"`
	SendConfirmationEmail *bool  `json:"send_confirmation_email,omitempty"`
}

func (r ScheduleRequest) Validate() error {
	if strings.TrimSpace(r.ConfirmationNumber) == "" {
		return fmt.Errorf("%w: confirmation_number required", ErrInvalid)
	}
	if strings.TrimSpace(r.FirstName) == "" || strings.TrimSpace(r.LastName) == "" {
		return fmt.Errorf("%w: first_name and last_name required", ErrInvalid)
	}
	if !strings.Contains(r.Email, "@") {
		return fmt.Errorf("%w: valid email required", ErrInvalid)
	}
	return nil
}

// WantsConfirmation is true unless the caller explicitly opted out.
func (r ScheduleRequest) WantsConfirmation() bool {
	return r.SendConfirmationEmail == nil || *r.SendConfirmationEmail
}

// Scheduler looks up a reservation and turns it into a Task.
type Scheduler struct {
	Reservations ReservationService
	Notifier     Notifier
	Logger       *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Schedule fetches the reservation, computes check-in windows and returns the
// task to run at CheckInTimes.Next. A failed confirmation email is logged and
// does not fail scheduling.
func (s *Scheduler) Schedule(ctx context.Context, req ScheduleRequest) (Task, error) {
	return s.ScheduleWith(ctx, req, nil)
}

// ScheduleWith is Schedule with a commit step that runs before the
// confirmation email. When commit fails, scheduling fails and no email is
// sent. commit is not called for a task without an upcoming window.
func (s *Scheduler) ScheduleWith(ctx context.Context, req ScheduleRequest, commit func(context.Context, Task) error) (Task, error) {
	if err := req.Validate(); err != nil {
		return Task{}, err
	}
	conf := strings.ToUpper(strings.TrimSpace(req.ConfirmationNumber))

	res, err := s.Reservations.GetReservation(ctx, conf, strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName))
	if err != nil {
		return Task{}, fmt.Errorf("look up reservation %s: %w", conf, err)
	}

	passengers := make([]Passenger, 0, len(res.Passengers))
	for _, p := range res.Passengers {
		passengers = append(passengers, p.Normalize())
	}
	if len(passengers) == 0 {
		passengers = append(passengers, Passenger{FirstName: req.FirstName, LastName: req.LastName}.Normalize())
	}

	task := Task{
		Passengers:         passengers,
		ConfirmationNumber: conf,
		CheckInTimes:       ComputeWindows(res.Departures, s.now()),
		Email:              strings.TrimSpace(req.Email),
	}

	log := s.logger().With(slog.String("confirmation_number", conf))
	if task.CheckInTimes.Next == nil {
		log.Info("no upcoming check-in windows", slog.Int("legs", len(res.Departures)))
		return task, nil
	}

	if commit != nil {
		if err := commit(ctx, task); err != nil {
			return Task{}, err
		}
	}
	log.Info("check-in scheduled",
		slog.Time("next", *task.CheckInTimes.Next),
		slog.Int("remaining", len(task.CheckInTimes.Remaining)),
		slog.Int("passengers", len(passengers)),
	)

	if req.WantsConfirmation() && s.Notifier != nil {
		err := s.Notifier.SendScheduled(ctx, ScheduledNotice{
			Passengers:         task.Passengers,
			ConfirmationNumber: conf,
			NextCheckIn:        *task.CheckInTimes.Next,
			Email:              task.Email,
		})
		if err != nil {
			log.Warn("confirmation email failed", slog.String("error", err.Error()))
		}
	}
	return task, nil
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
