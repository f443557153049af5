package checkin

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Passenger is a traveler on a reservation. Names are matched against the
// airline record, which stores them uppercased.
type Passenger struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (p Passenger) Normalize() Passenger {
	return Passenger{
		FirstName: strings.ToUpper(strings.TrimSpace(p.FirstName)),
		LastName:  strings.ToUpper(strings.TrimSpace(p.LastName)),
	}
}

func (p Passenger) String() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Windows holds the check-in eligible timestamps that have not been processed yet.
// Next is nil when nothing is left to schedule.
type Windows struct {
	Remaining []time.Time `json:"remaining"`
	Next      *time.Time  `json:"next,omitempty"`
}

// MarshalJSON always renders remaining as a list.
func (w Windows) MarshalJSON() ([]byte, error) {
	type windows Windows
	out := windows(w)
	if out.Remaining == nil {
		out.Remaining = []time.Time{}
	}
	return json.Marshal(out)
}

// Advance promotes the head of Remaining to Next. It reports false when
// Remaining is empty, i.e. the current Next was the last window.
func (w Windows) Advance() (Windows, bool) {
	if len(w.Remaining) == 0 {
		return Windows{Remaining: []time.Time{}}, false
	}
	next := w.Remaining[0]
	rest := make([]time.Time, len(w.Remaining)-1)
	copy(rest, w.Remaining[1:])
	return Windows{Remaining: rest, Next: &next}, true
}

// Task is the state handed from scheduling to execution. It is self-contained:
// the executor needs nothing else to act on it.
type Task struct {
	Passengers         []Passenger `json:"passengers"`
	ConfirmationNumber string      `json:"confirmation_number"`
	CheckInTimes       Windows     `json:"check_in_times"`
	Email              string      `json:"email"`
}

// LegacyTask is the older single-passenger task shape.
type LegacyTask struct {
	FirstName          string  `json:"first_name"`
	LastName           string  `json:"last_name"`
	ConfirmationNumber string  `json:"confirmation_number"`
	CheckInTimes       Windows `json:"check_in_times"`
	Email              string  `json:"email"`
}

// Task converts the legacy shape into a one-passenger Task.
func (l LegacyTask) Task() Task {
	return Task{
		Passengers:         []Passenger{{FirstName: l.FirstName, LastName: l.LastName}},
		ConfirmationNumber: l.ConfirmationNumber,
		CheckInTimes:       l.CheckInTimes,
		Email:              l.Email,
	}
}

// taskWire accepts both the current and the legacy shape.
type taskWire struct {
	Passengers         []Passenger `json:"passengers"`
	FirstName          string      `json:"first_name"`
	LastName           string      `json:"last_name"`
	ConfirmationNumber string      `json:"confirmation_number"`
	CheckInTimes       Windows     `json:"check_in_times"`
	Email              string      `json:"email"`
}

func (t *Task) UnmarshalJSON(data []byte) error {
	var w taskWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if len(w.Passengers) == 0 && (w.FirstName != "" || w.LastName != "") {
		*t = LegacyTask{
			FirstName:          w.FirstName,
			LastName:           w.LastName,
			ConfirmationNumber: w.ConfirmationNumber,
			CheckInTimes:       w.CheckInTimes,
			Email:              w.Email,
		}.Task()
		return nil
	}
	*t = Task{
		Passengers:         w.Passengers,
		ConfirmationNumber: w.ConfirmationNumber,
		CheckInTimes:       w.CheckInTimes,
		Email:              w.Email,
	}
	return nil
}

// ParseTask decodes a task in either shape and validates it.
func ParseTask(data []byte) (Task, error) {
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return Task{}, fmt.Errorf("decode task: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Task{}, err
	}
	return t, nil
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.ConfirmationNumber) == "" {
		return fmt.Errorf("%w: confirmation_number required", ErrInvalid)
	}
	if len(t.Passengers) == 0 {
		return fmt.Errorf("%w: at least one passenger required", ErrInvalid)
	}
	for i, p := range t.Passengers {
		if p.FirstName == "" || p.LastName == "" {
			return fmt.Errorf("%w: passenger %d: first and last name required", ErrInvalid, i)
		}
	}
	return nil
}

// Successor returns a copy of t with its windows advanced. ok is false when
// t carries the final window.
func (t Task) Successor() (next Task, ok bool) {
	w, ok := t.CheckInTimes.Advance()
	if !ok {
		return Task{}, false
	}
	next = t
	next.Passengers = append([]Passenger(nil), t.Passengers...)
	next.CheckInTimes = w
	return next, true
}
