// Package tasks stores check-in tasks until their next window opens.
package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/example/checkin-scheduler/internal/checkin"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
	// StatusContinued marks an entry whose successor was enqueued.
	StatusContinued Status = "continued"
)

var ErrNotFound = errors.New("task not found")

// Entry is a queued task and its bookkeeping.
type Entry struct {
	ID        string       `json:"id"`
	ParentID  string       `json:"parent_id,omitempty"`
	Task      checkin.Task `json:"task"`
	RunAt     time.Time    `json:"run_at"`
	Status    Status       `json:"status"`
	Attempts  int          `json:"attempts"`
	LastError string       `json:"last_error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Queue is the deferred-task store. Claim must hand each due entry to at most
// one caller. A limit of zero or less means no limit.
type Queue interface {
	Enqueue(ctx context.Context, task checkin.Task, runAt time.Time, parentID string) (Entry, error)
	Claim(ctx context.Context, now time.Time, limit int) ([]Entry, error)
	Finish(ctx context.Context, id string, status Status, detail string) error
	// Requeue returns running entries last touched before staleBefore to
	// pending so a worker that died mid-attempt does not strand its lineage.
	Requeue(ctx context.Context, staleBefore time.Time) (int, error)
	List(ctx context.Context, limit int) ([]Entry, error)
}

// StatusFor maps a check-in outcome to the status of the entry that produced it.
func StatusFor(o checkin.Outcome) Status {
	switch o {
	case checkin.OutcomeCompleted:
		return StatusCompleted
	case checkin.OutcomeCancelled:
		return StatusCancelled
	case checkin.OutcomeContinue:
		return StatusContinued
	default:
		return StatusFailed
	}
}

// RunAt returns when task should be executed. ok is false when the task has
// no window left.
func RunAt(task checkin.Task) (time.Time, bool) {
	if task.CheckInTimes.Next == nil {
		return time.Time{}, false
	}
	return *task.CheckInTimes.Next, true
}

// EnqueueNext queues task at its next window. ok is false, and nothing is
// queued, when the task has no window left.
func EnqueueNext(ctx context.Context, q Queue, task checkin.Task, parentID string) (e Entry, ok bool, err error) {
	at, ok := RunAt(task)
	if !ok {
		return Entry{}, false, nil
	}
	e, err = q.Enqueue(ctx, task, at, parentID)
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}
