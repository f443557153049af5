// Package southwest is a client for the Southwest mobile reservations API used
// to look up reservations, submit check-in and email boarding passes.
package southwest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/example/checkin-scheduler/internal/checkin"
)

const (
	DefaultBaseURL = "https://api-extensions.southwest.com/v1/mobile"
	// DefaultAPIKey is the key the Southwest mobile app sends.
	DefaultAPIKey = "l7xx0a43088fe6254712b10787646d1b298e"

	userAgent = "SouthwestAndroid/7.2.1 android/10"
)

// ErrNotFound is returned when the API answers 404 for a record locator. It
// matches checkin.ErrReservationNotFound.
var ErrNotFound = fmt.Errorf("southwest: %w", checkin.ErrReservationNotFound)

// StatusError is a non-success response other than 404.
type StatusError struct {
	Op      string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("southwest %s failed: %s (status=%d)", e.Op, e.Message, e.Status)
	}
	return fmt.Sprintf("southwest %s failed (status=%d)", e.Op, e.Status)
}

type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// RequestsPerSecond throttles outbound calls; zero disables throttling.
	RequestsPerSecond float64
	Logger            *slog.Logger
}

// Client implements checkin.ReservationService. Every call is a single attempt.
type Client struct {
	hc      *http.Client
	base    string
	apiKey  string
	limiter *rate.Limiter
	logger  *slog.Logger
	observe func(op string, status int, d time.Duration)
}

func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.APIKey == "" {
		opts.APIKey = DefaultAPIKey
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return &Client{
		hc:      &http.Client{Timeout: opts.Timeout},
		base:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		limiter: limiter,
		logger:  opts.Logger,
	}
}

// OnResponse registers a hook called after every API round trip. status is 0
// when the request failed before a response arrived.
func (c *Client) OnResponse(fn func(op string, status int, d time.Duration)) {
	c.observe = fn
}

type name struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type reservationResponse struct {
	Passengers []struct {
		SecureFlightName name `json:"secureFlightName"`
	} `json:"passengers"`
	Itinerary struct {
		OriginationDestinations []struct {
			Segments []struct {
				DepartureDateTime string `json:"departureDateTime"`
				FlightNumber      string `json:"flightNumber"`
			} `json:"segments"`
		} `json:"originationDestinations"`
	} `json:"itinerary"`
}

// GetReservation looks up a record locator. Each origination-destination is a
// leg; its departure is the departure of its first segment.
func (c *Client) GetReservation(ctx context.Context, confirmation, firstName, lastName string) (checkin.Reservation, error) {
	q := url.Values{}
	q.Set("first-name", firstName)
	q.Set("last-name", lastName)
	path := "/reservations/record-locator/" + url.PathEscape(confirmation)

	status, body, err := c.do(ctx, "lookup", http.MethodGet, path, q, nil)
	if err != nil {
		return checkin.Reservation{}, err
	}
	if err := checkStatus("lookup", status, body); err != nil {
		return checkin.Reservation{}, err
	}

	var r reservationResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return checkin.Reservation{}, fmt.Errorf("southwest lookup: decode: %w", err)
	}
	out := checkin.Reservation{ConfirmationNumber: confirmation}
	for _, p := range r.Passengers {
		out.Passengers = append(out.Passengers, checkin.Passenger{
			FirstName: p.SecureFlightName.FirstName,
			LastName:  p.SecureFlightName.LastName,
		})
	}
	for i, od := range r.Itinerary.OriginationDestinations {
		if len(od.Segments) == 0 {
			continue
		}
		dep, err := time.Parse(time.RFC3339, od.Segments[0].DepartureDateTime)
		if err != nil {
			return checkin.Reservation{}, fmt.Errorf("southwest lookup: leg %d departure: %w", i, err)
		}
		out.Departures = append(out.Departures, dep)
	}
	return out, nil
}

type checkInRequest struct {
	Names []name `json:"names"`
}

type checkInResponse struct {
	PassengerCheckInDocuments []struct {
		Passenger        name `json:"passenger"`
		CheckinDocuments []struct {
			FlightNumber        string `json:"flightNumber"`
			BoardingGroup       string `json:"boardingGroup"`
			BoardingGroupNumber string `json:"boardingGroupNumber"`
		} `json:"checkinDocuments"`
	} `json:"passengerCheckInDocuments"`
}

// SubmitCheckIn requests boarding passes for every passenger on the record.
func (c *Client) SubmitCheckIn(ctx context.Context, confirmation string, passengers []checkin.Passenger) (checkin.BoardingPasses, error) {
	jb, err := json.Marshal(checkInRequest{Names: names(passengers)})
	if err != nil {
		return checkin.BoardingPasses{}, err
	}
	path := "/reservations/record-locator/" + url.PathEscape(confirmation) + "/boarding-passes"

	status, body, err := c.do(ctx, "check-in", http.MethodPost, path, nil, jb)
	if err != nil {
		return checkin.BoardingPasses{}, err
	}
	if err := checkStatus("check-in", status, body); err != nil {
		return checkin.BoardingPasses{}, err
	}

	out := checkin.BoardingPasses{Raw: json.RawMessage(body)}
	var r checkInResponse
	if err := json.Unmarshal(body, &r); err != nil {
		// the check-in went through; keep the raw payload
		c.logger.Warn("southwest check-in: unexpected payload", slog.String("error", err.Error()))
		return out, nil
	}
	for _, pd := range r.PassengerCheckInDocuments {
		p := checkin.Passenger{FirstName: pd.Passenger.FirstName, LastName: pd.Passenger.LastName}
		for _, d := range pd.CheckinDocuments {
			out.Passes = append(out.Passes, checkin.BoardingPass{
				Passenger:     p.String(),
				FlightNumber:  d.FlightNumber,
				BoardingGroup: d.BoardingGroup,
				Position:      d.BoardingGroupNumber,
			})
		}
	}
	return out, nil
}

type boardingPassEmailRequest struct {
	Names        []name `json:"names"`
	EmailAddress string `json:"emailAddress"`
	MediaType    string `json:"mediaType"`
}

// EmailBoardingPass asks Southwest to email the mobile boarding passes.
func (c *Client) EmailBoardingPass(ctx context.Context, confirmation string, passengers []checkin.Passenger, email string) error {
	jb, err := json.Marshal(boardingPassEmailRequest{Names: names(passengers), EmailAddress: email, MediaType: "EMAIL"})
	if err != nil {
		return err
	}
	path := "/record-locator/" + url.PathEscape(confirmation) + "/operation-infos/mobile-boarding-pass/notifications"
	status, body, err := c.do(ctx, "boarding-pass email", http.MethodPost, path, nil, jb)
	if err != nil {
		return err
	}
	return checkStatus("boarding-pass email", status, body)
}

func names(passengers []checkin.Passenger) []name {
	out := make([]name, 0, len(passengers))
	for _, p := range passengers {
		out = append(out, name{FirstName: p.FirstName, LastName: p.LastName})
	}
	return out
}

func checkStatus(op string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	if status == http.StatusNotFound {
		return ErrNotFound
	}
	var r struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &r)
	return &StatusError{Op: op, Status: status, Message: r.Message}
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body []byte) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, fmt.Errorf("southwest %s: %w", op, err)
	}
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}

	start := time.Now()
	res, err := c.hc.Do(req)
	if err != nil {
		c.report(op, 0, start)
		return 0, nil, fmt.Errorf("southwest %s: %w", op, err)
	}
	defer res.Body.Close()
	c.report(op, res.StatusCode, start)

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, fmt.Errorf("southwest %s: read body: %w", op, err)
	}
	c.logger.Debug("southwest response",
		slog.String("op", op),
		slog.Int("status", res.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)
	return res.StatusCode, b, nil
}

func (c *Client) report(op string, status int, start time.Time) {
	if c.observe != nil {
		c.observe(op, status, time.Since(start))
	}
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
