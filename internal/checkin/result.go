package checkin

import "fmt"

// Outcome classifies a check-in attempt.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	// OutcomeCompleted: checked in and no windows remain.
	OutcomeCompleted
	// OutcomeCancelled: the airline no longer has the reservation.
	OutcomeCancelled
	// OutcomeFailed: the submission was rejected or could not be made.
	OutcomeFailed
	// OutcomeContinue: checked in, but more legs open later. Result.Successor
	// must be run at its next window.
	OutcomeContinue
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	case OutcomeContinue:
		return "continue"
	default:
		return "unknown"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(b []byte) error {
	switch string(b) {
	case "completed":
		*o = OutcomeCompleted
	case "cancelled":
		*o = OutcomeCancelled
	case "failed":
		*o = OutcomeFailed
	case "continue":
		*o = OutcomeContinue
	default:
		return fmt.Errorf("unknown outcome %q", string(b))
	}
	return nil
}

// Result is what one Executor invocation produced.
type Result struct {
	Outcome   Outcome
	Successor *Task
	Reason    string
}

// CheckedIn reports whether the submission went through.
func (r Result) CheckedIn() bool {
	return r.Outcome == OutcomeCompleted || r.Outcome == OutcomeContinue
}

// Terminal reports whether the task lineage ends with this result.
func (r Result) Terminal() bool {
	return r.Outcome != OutcomeContinue
}

func Completed() Result { return Result{Outcome: OutcomeCompleted} }

func Cancelled() Result { return Result{Outcome: OutcomeCancelled} }

func Failed(reason string) Result { return Result{Outcome: OutcomeFailed, Reason: reason} }

func Continue(successor Task) Result {
	return Result{Outcome: OutcomeContinue, Successor: &successor}
}
