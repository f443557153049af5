package checkin

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const currentTaskJSON = `{
	"passengers": [
		{"firstName": "GEORGE", "lastName": "BUSH"},
		{"firstName": "LAURA", "lastName": "BUSH"}
	],
	"confirmation_number": "ABC123",
	"check_in_times": {
		"remaining": ["2017-05-13T15:10:00-05:00"],
		"next": "2017-05-12T08:55:00-05:00"
	},
	"email": "gwb@example.com"
}`

const legacyTaskJSON = `{
	"first_name": "GEORGE",
	"last_name": "BUSH",
	"confirmation_number": "ABC123",
	"check_in_times": {
		"remaining": [],
		"next": "2017-05-12T08:55:00-05:00"
	},
	"email": "gwb@example.com"
}`

func TestParseTask_CurrentShape(t *testing.T) {
	task, err := ParseTask([]byte(currentTaskJSON))
	require.NoError(t, err)

	assert.Equal(t, "ABC123", task.ConfirmationNumber)
	assert.Equal(t, []Passenger{{"GEORGE", "BUSH"}, {"LAURA", "BUSH"}}, task.Passengers)
	require.NotNil(t, task.CheckInTimes.Next)
	assert.Equal(t, "2017-05-12T08:55:00-05:00", task.CheckInTimes.Next.Format(time.RFC3339))
	require.Len(t, task.CheckInTimes.Remaining, 1)
	assert.Equal(t, "gwb@example.com", task.Email)
}

func TestParseTask_LegacyShape(t *testing.T) {
	task, err := ParseTask([]byte(legacyTaskJSON))
	require.NoError(t, err)

	assert.Equal(t, []Passenger{{FirstName: "GEORGE", LastName: "BUSH"}}, task.Passengers)
	assert.Equal(t, "ABC123", task.ConfirmationNumber)
	assert.Empty(t, task.CheckInTimes.Remaining)
}

func TestParseTask_LegacyMatchesCurrent(t *testing.T) {
	legacy, err := ParseTask([]byte(legacyTaskJSON))
	require.NoError(t, err)

	current := LegacyTask{
		FirstName:          "GEORGE",
		LastName:           "BUSH",
		ConfirmationNumber: "ABC123",
		CheckInTimes:       legacy.CheckInTimes,
		Email:              "gwb@example.com",
	}.Task()

	a, err := json.Marshal(legacy)
	require.NoError(t, err)
	b, err := json.Marshal(current)
	require.NoError(t, err)
	assert.JSONEq(t, string(b), string(a))
}

func TestParseTask_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `{`},
		{"no confirmation", `{"passengers":[{"firstName":"A","lastName":"B"}],"email":"a@b.c"}`},
		{"no passengers", `{"confirmation_number":"ABC123","email":"a@b.c"}`},
		{"blank passenger", `{"passengers":[{"firstName":"","lastName":"B"}],"confirmation_number":"ABC123"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTask([]byte(tt.payload))
			assert.Error(t, err)
		})
	}
}

func TestTask_MarshalRoundTripShape(t *testing.T) {
	task := Task{
		Passengers:         []Passenger{{"GEORGE", "BUSH"}},
		ConfirmationNumber: "ABC123",
		CheckInTimes:       Windows{Next: timePtr(mustTime("2099-08-17T18:50:05-05:00"))},
		Email:              "gwb@example.com",
	}

	b, err := json.Marshal(task)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"passengers": [{"firstName": "GEORGE", "lastName": "BUSH"}],
		"confirmation_number": "ABC123",
		"check_in_times": {"remaining": [], "next": "2099-08-17T18:50:05-05:00"},
		"email": "gwb@example.com"
	}`, string(b))
}

func TestTask_Successor(t *testing.T) {
	task, err := ParseTask([]byte(currentTaskJSON))
	require.NoError(t, err)

	next, ok := task.Successor()
	require.True(t, ok)
	assert.Equal(t, "2017-05-13T15:10:00-05:00", next.CheckInTimes.Next.Format(time.RFC3339))
	assert.Empty(t, next.CheckInTimes.Remaining)
	assert.Equal(t, task.Passengers, next.Passengers)
	assert.Equal(t, task.ConfirmationNumber, next.ConfirmationNumber)
	assert.Equal(t, task.Email, next.Email)

	// the original keeps its windows
	assert.Len(t, task.CheckInTimes.Remaining, 1)

	_, ok = next.Successor()
	assert.False(t, ok)
}

func TestPassenger_Normalize(t *testing.T) {
	p := Passenger{FirstName: " George", LastName: "bush "}.Normalize()
	assert.Equal(t, Passenger{FirstName: "GEORGE", LastName: "BUSH"}, p)
	assert.Equal(t, "GEORGE BUSH", p.String())
}

func TestOutcome_Text(t *testing.T) {
	for _, o := range []Outcome{OutcomeCompleted, OutcomeCancelled, OutcomeFailed, OutcomeContinue} {
		b, err := o.MarshalText()
		require.NoError(t, err)
		var got Outcome
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, o, got)
	}
	var o Outcome
	assert.Error(t, o.UnmarshalText([]byte("bogus")))
}
