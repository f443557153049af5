package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/securecookie"

	"github.com/example/checkin-scheduler/internal/checkin"
)

const tokenName = "checkin_task"

// DefaultTokenMaxAge covers the longest itinerary we expect to schedule.
const DefaultTokenMaxAge = 30 * 24 * time.Hour

var ErrInvalidToken = errors.New("invalid task token")

// Sealer signs and encrypts tasks so a client can hand one back later
// without being able to alter it.
type Sealer struct {
	sc *securecookie.SecureCookie
}

func NewSealer(hashKey, blockKey []byte, maxAge time.Duration) *Sealer {
	sc := securecookie.New(hashKey, blockKey)
	sc.SetSerializer(securecookie.JSONEncoder{})
	// tasks carry a passenger list; the default 4096 is tight for large parties
	sc.MaxLength(16 * 1024)
	if maxAge <= 0 {
		maxAge = DefaultTokenMaxAge
	}
	sc.MaxAge(int(maxAge.Seconds()))
	return &Sealer{sc: sc}
}

func (s *Sealer) Seal(task checkin.Task) (string, error) {
	tok, err := s.sc.Encode(tokenName, task)
	if err != nil {
		return "", fmt.Errorf("seal task: %w", err)
	}
	return tok, nil
}

func (s *Sealer) Open(token string) (checkin.Task, error) {
	var task checkin.Task
	if err := s.sc.Decode(tokenName, token, &task); err != nil {
		return checkin.Task{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return task, nil
}
