package checkin

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

type fakeReservations struct {
	reservation Reservation
	lookupErr   error
	passes      BoardingPasses
	submitErr   error

	mu          sync.Mutex
	lookups     []string
	submissions [][]Passenger
}

func (f *fakeReservations) GetReservation(_ context.Context, confirmation, firstName, lastName string) (Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups = append(f.lookups, confirmation+"/"+firstName+"/"+lastName)
	if f.lookupErr != nil {
		return Reservation{}, f.lookupErr
	}
	return f.reservation, nil
}

func (f *fakeReservations) SubmitCheckIn(_ context.Context, _ string, passengers []Passenger) (BoardingPasses, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions = append(f.submissions, passengers)
	if f.submitErr != nil {
		return BoardingPasses{}, f.submitErr
	}
	return f.passes, nil
}

type fakeNotifier struct {
	err error

	mu           sync.Mutex
	scheduled    []ScheduledNotice
	boardingPass []BoardingPassNotice
}

func (f *fakeNotifier) SendScheduled(_ context.Context, n ScheduledNotice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = append(f.scheduled, n)
	return f.err
}

func (f *fakeNotifier) SendBoardingPasses(_ context.Context, n BoardingPassNotice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.boardingPass = append(f.boardingPass, n)
	return f.err
}

var errSMTPDown = errors.New("smtp down")

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func timePtr(t time.Time) *time.Time { return &t }
