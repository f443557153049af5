// Package notify delivers traveler emails for scheduled and completed check-ins.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"text/template"
	"time"

	"github.com/example/checkin-scheduler/internal/checkin"
)

var (
	scheduledTmpl = template.Must(template.New("scheduled").Parse(`Hello,

Check-in for confirmation {{.ConfirmationNumber}} has been scheduled.

Passengers:
{{range .Passengers}}  - {{.FirstName}} {{.LastName}}
{{end}}
We will check you in at {{.When}}, as soon as the airline opens check-in.
Boarding passes will follow by email once check-in completes.
`))

	boardingPassTmpl = template.Must(template.New("boarding").Parse(`Hello,

You are checked in for confirmation {{.ConfirmationNumber}}.
{{if .Passes}}
{{range .Passes}}  - {{.Passenger}}: flight {{.FlightNumber}}, boarding {{.BoardingGroup}}{{.Position}}
{{end}}{{else}}
Boarding passes are available in the airline app.
{{end}}
Have a good flight.
`))
)

const whenLayout = "Mon Jan 2 2006 3:04 PM (UTC-07:00)"

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends plain-text emails over SMTP.
type Mailer struct {
	addr string
	auth smtp.Auth
	from string
	send SendFunc
}

func NewMailer(cfg SMTPConfig) *Mailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &Mailer{
		addr: net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		auth: auth,
		from: cfg.From,
		send: smtp.SendMail,
	}
}

// WithSendFunc replaces the SMTP transport.
func (m *Mailer) WithSendFunc(fn SendFunc) *Mailer {
	m.send = fn
	return m
}

func (m *Mailer) SendScheduled(ctx context.Context, n checkin.ScheduledNotice) error {
	var body bytes.Buffer
	err := scheduledTmpl.Execute(&body, struct {
		checkin.ScheduledNotice
		When string
	}{n, n.NextCheckIn.Format(whenLayout)})
	if err != nil {
		return fmt.Errorf("render scheduled email: %w", err)
	}
	subject := fmt.Sprintf("Check-in scheduled for %s", n.ConfirmationNumber)
	return m.deliver(ctx, n.Email, subject, body.Bytes())
}

func (m *Mailer) SendBoardingPasses(ctx context.Context, n checkin.BoardingPassNotice) error {
	var body bytes.Buffer
	err := boardingPassTmpl.Execute(&body, struct {
		ConfirmationNumber string
		Passes             []checkin.BoardingPass
	}{n.ConfirmationNumber, n.BoardingPasses.Passes})
	if err != nil {
		return fmt.Errorf("render boarding pass email: %w", err)
	}
	subject := fmt.Sprintf("Checked in: %s", n.ConfirmationNumber)
	return m.deliver(ctx, n.Email, subject, body.Bytes())
}

func (m *Mailer) deliver(ctx context.Context, to, subject string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("invalid header value")
	}
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", m.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.Write(bytes.ReplaceAll(body, []byte("\n"), []byte("\r\n")))

	if err := m.send(m.addr, m.auth, m.from, []string{to}, msg.Bytes()); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}
