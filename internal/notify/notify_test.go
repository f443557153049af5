package notify

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/checkin-scheduler/internal/checkin"
)

var (
	_ checkin.Notifier = (*Mailer)(nil)
	_ checkin.Notifier = Split{}
	_ checkin.Notifier = Discard{}
)

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newTestMailer(sent *[]sentMail, err error) *Mailer {
	m := NewMailer(SMTPConfig{Host: "smtp.example.com", Port: 587, From: "checkin@example.com"})
	return m.WithSendFunc(func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		*sent = append(*sent, sentMail{addr: addr, from: from, to: to, msg: string(msg)})
		return err
	})
}

func TestMailer_SendScheduled(t *testing.T) {
	var sent []sentMail
	m := newTestMailer(&sent, nil)
	next, err := time.Parse(time.RFC3339, "2099-08-17T18:50:05-05:00")
	require.NoError(t, err)

	err = m.SendScheduled(context.Background(), checkin.ScheduledNotice{
		Passengers: []checkin.Passenger{
			{FirstName: "GEORGE", LastName: "BUSH"},
			{FirstName: "LAURA", LastName: "BUSH"},
		},
		ConfirmationNumber: "ABC123",
		NextCheckIn:        next,
		Email:              "gwb@example.com",
	})
	require.NoError(t, err)

	require.Len(t, sent, 1)
	assert.Equal(t, "smtp.example.com:587", sent[0].addr)
	assert.Equal(t, "checkin@example.com", sent[0].from)
	assert.Equal(t, []string{"gwb@example.com"}, sent[0].to)
	assert.Contains(t, sent[0].msg, "Subject: Check-in scheduled for ABC123\r\n")
	assert.Contains(t, sent[0].msg, "  - GEORGE BUSH\r\n")
	assert.Contains(t, sent[0].msg, "  - LAURA BUSH\r\n")
	assert.Contains(t, sent[0].msg, "Mon Aug 17 2099 6:50 PM (UTC-05:00)")
}

func TestMailer_SendBoardingPasses(t *testing.T) {
	var sent []sentMail
	m := newTestMailer(&sent, nil)

	err := m.SendBoardingPasses(context.Background(), checkin.BoardingPassNotice{
		ConfirmationNumber: "ABC123",
		BoardingPasses: checkin.BoardingPasses{Passes: []checkin.BoardingPass{
			{Passenger: "GEORGE BUSH", FlightNumber: "100", BoardingGroup: "A", Position: "12"},
		}},
		Email: "gwb@example.com",
	})
	require.NoError(t, err)

	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].msg, "Subject: Checked in: ABC123\r\n")
	assert.Contains(t, sent[0].msg, "GEORGE BUSH: flight 100, boarding A12")
}

func TestMailer_SendBoardingPassesWithoutDetails(t *testing.T) {
	var sent []sentMail
	m := newTestMailer(&sent, nil)

	err := m.SendBoardingPasses(context.Background(), checkin.BoardingPassNotice{ConfirmationNumber: "ABC123", Email: "gwb@example.com"})
	require.NoError(t, err)
	assert.Contains(t, sent[0].msg, "available in the airline app")
}

func TestMailer_SendError(t *testing.T) {
	var sent []sentMail
	m := newTestMailer(&sent, errors.New("connection refused"))

	err := m.SendBoardingPasses(context.Background(), checkin.BoardingPassNotice{ConfirmationNumber: "ABC123", Email: "gwb@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestMailer_RejectsHeaderInjection(t *testing.T) {
	var sent []sentMail
	m := newTestMailer(&sent, nil)

	err := m.SendBoardingPasses(context.Background(), checkin.BoardingPassNotice{
		ConfirmationNumber: "ABC123",
		Email:              "gwb@example.com\r\nBcc: someone@example.com",
	})
	require.Error(t, err)
	assert.Empty(t, sent)
}

func TestMailer_CancelledContext(t *testing.T) {
	var sent []sentMail
	m := newTestMailer(&sent, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.SendBoardingPasses(ctx, checkin.BoardingPassNotice{ConfirmationNumber: "ABC123", Email: "gwb@example.com"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sent)
}

type fakeAirline struct {
	calls []string
}

func (f *fakeAirline) EmailBoardingPass(_ context.Context, confirmation string, passengers []checkin.Passenger, email string) error {
	var names []string
	for _, p := range passengers {
		names = append(names, p.String())
	}
	f.calls = append(f.calls, confirmation+"|"+strings.Join(names, ",")+"|"+email)
	return nil
}

func TestSplit(t *testing.T) {
	var sent []sentMail
	airline := &fakeAirline{}
	s := Split{Scheduled: newTestMailer(&sent, nil), Airline: airline}

	require.NoError(t, s.SendScheduled(context.Background(), checkin.ScheduledNotice{ConfirmationNumber: "ABC123", Email: "gwb@example.com"}))
	require.NoError(t, s.SendBoardingPasses(context.Background(), checkin.BoardingPassNotice{
		ConfirmationNumber: "ABC123",
		Passengers:         []checkin.Passenger{{FirstName: "GEORGE", LastName: "BUSH"}},
		Email:              "gwb@example.com",
	}))

	assert.Len(t, sent, 1)
	assert.Equal(t, []string{"ABC123|GEORGE BUSH|gwb@example.com"}, airline.calls)
}
