package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/checkin-scheduler/internal/checkin"
	"github.com/example/checkin-scheduler/internal/tasks"
)

type executorFunc func(ctx context.Context, task checkin.Task) (checkin.Result, error)

func (f executorFunc) CheckIn(ctx context.Context, task checkin.Task) (checkin.Result, error) {
	return f(ctx, task)
}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (c *countingRecorder) RecordScheduled(bool) {}
func (c *countingRecorder) RecordScheduleFailure(string) {}
func (c *countingRecorder) RecordAPIResponse(string, int, time.Duration) {}
func (c *countingRecorder) RecordClaimed(int) {}
func (c *countingRecorder) RecordCheckIn(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, outcome)
}

func task(conf string, next time.Time, remaining ...time.Time) checkin.Task {
	if remaining == nil {
		remaining = []time.Time{}
	}
	return checkin.Task{
		Passengers:         []checkin.Passenger{{FirstName: "GEORGE", LastName: "BUSH"}},
		ConfirmationNumber: conf,
		CheckInTimes:       checkin.Windows{Next: &next, Remaining: remaining},
		Email:              "gwb@example.com",
	}
}

func newRunner(q tasks.Queue, exec CheckInExecutor, now time.Time) (*Runner, *countingRecorder) {
	rec := &countingRecorder{}
	return &Runner{
		Queue:     q,
		Executor:  exec,
		Metrics:   rec,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		BatchSize: 10,
		Now:       func() time.Time { return now },
	}, rec
}

func statusByID(t *testing.T, q tasks.Queue) map[string]tasks.Entry {
	t.Helper()
	list, err := q.List(context.Background(), 0)
	require.NoError(t, err)
	out := make(map[string]tasks.Entry, len(list))
	for _, e := range list {
		out[e.ID] = e
	}
	return out
}

func TestTickCompletesLastLeg(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	q := tasks.NewMemory()
	e, err := q.Enqueue(ctx, task("ABC123", now.Add(-time.Minute)), now.Add(-time.Minute), "")
	require.NoError(t, err)

	var got checkin.Task
	r, rec := newRunner(q, executorFunc(func(_ context.Context, tk checkin.Task) (checkin.Result, error) {
		got = tk
		return checkin.Completed(), nil
	}), now)

	assert.Equal(t, 1, r.Tick(ctx))
	r.Wait()

	assert.Equal(t, "ABC123", got.ConfirmationNumber)
	entries := statusByID(t, q)
	require.Len(t, entries, 1)
	assert.Equal(t, tasks.StatusCompleted, entries[e.ID].Status)
	assert.Equal(t, []string{"completed"}, rec.outcomes)
}

func TestTickQueuesSuccessor(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	second := now.Add(72 * time.Hour)
	q := tasks.NewMemory()
	parent, err := q.Enqueue(ctx, task("ABC123", now, second), now, "")
	require.NoError(t, err)

	r, _ := newRunner(q, executorFunc(func(_ context.Context, tk checkin.Task) (checkin.Result, error) {
		succ, ok := tk.Successor()
		if !ok {
			return checkin.Completed(), nil
		}
		return checkin.Continue(succ), nil
	}), now)

	r.Tick(ctx)
	r.Wait()

	entries := statusByID(t, q)
	require.Len(t, entries, 2)
	assert.Equal(t, tasks.StatusContinued, entries[parent.ID].Status)

	var child tasks.Entry
	for id, e := range entries {
		if id != parent.ID {
			child = e
		}
	}
	assert.Equal(t, parent.ID, child.ParentID)
	assert.Equal(t, tasks.StatusPending, child.Status)
	assert.True(t, child.RunAt.Equal(second))
	require.NotNil(t, child.Task.CheckInTimes.Next)
	assert.True(t, child.Task.CheckInTimes.Next.Equal(second))
	assert.Empty(t, child.Task.CheckInTimes.Remaining)

	// not due yet
	assert.Equal(t, 0, r.Tick(ctx))
}

func TestTickRecordsFailure(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	q := tasks.NewMemory()
	e, err := q.Enqueue(ctx, task("ABC123", now), now, "")
	require.NoError(t, err)

	r, rec := newRunner(q, executorFunc(func(context.Context, checkin.Task) (checkin.Result, error) {
		return checkin.Failed("rejected"), errors.New("check-in submission failed: 500")
	}), now)

	r.Tick(ctx)
	r.Wait()

	got := statusByID(t, q)[e.ID]
	assert.Equal(t, tasks.StatusFailed, got.Status)
	assert.Contains(t, got.LastError, "500")
	assert.Equal(t, []string{"failed"}, rec.outcomes)
}

func TestTickCancelled(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	q := tasks.NewMemory()
	e, err := q.Enqueue(ctx, task("ABC123", now), now, "")
	require.NoError(t, err)

	r, _ := newRunner(q, executorFunc(func(context.Context, checkin.Task) (checkin.Result, error) {
		return checkin.Cancelled(), nil
	}), now)

	r.Tick(ctx)
	r.Wait()

	assert.Equal(t, tasks.StatusCancelled, statusByID(t, q)[e.ID].Status)
}

func TestTickSkipsFutureTasks(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	q := tasks.NewMemory()
	_, err := q.Enqueue(ctx, task("ABC123", now.Add(time.Hour)), now.Add(time.Hour), "")
	require.NoError(t, err)

	r, _ := newRunner(q, executorFunc(func(context.Context, checkin.Task) (checkin.Result, error) {
		t.Fatal("executor should not run")
		return checkin.Result{}, nil
	}), now)

	assert.Equal(t, 0, r.Tick(ctx))
}

func TestRunStopsOnCancel(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	q := tasks.NewMemory()
	_, err := q.Enqueue(context.Background(), task("ABC123", now), now, "")
	require.NoError(t, err)

	done := make(chan struct{})
	r, _ := newRunner(q, executorFunc(func(context.Context, checkin.Task) (checkin.Result, error) {
		close(done)
		return checkin.Completed(), nil
	}), now)
	r.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task was not run")
	}
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
}

func TestTickRequeuesStaleRunningTask(t *testing.T) {
	ctx := context.Background()
	claimedAt := time.Now().Add(-time.Minute)
	q := tasks.NewMemory()
	e, err := q.Enqueue(ctx, task("ABC123", claimedAt), claimedAt, "")
	require.NoError(t, err)

	// a worker claims the task and dies before finishing it
	stranded, err := q.Claim(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, stranded, 1)

	runs := 0
	r, _ := newRunner(q, executorFunc(func(context.Context, checkin.Task) (checkin.Result, error) {
		runs++
		return checkin.Completed(), nil
	}), time.Now().Add(time.Hour))
	r.StaleAfter = 10 * time.Minute

	assert.Equal(t, 1, r.Tick(ctx))
	r.Wait()

	assert.Equal(t, 1, runs)
	got := statusByID(t, q)[e.ID]
	assert.Equal(t, tasks.StatusCompleted, got.Status)
	assert.Equal(t, 2, got.Attempts)
}

func TestTickLeavesFreshRunningTask(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	q := tasks.NewMemory()
	_, err := q.Enqueue(ctx, task("ABC123", now), now, "")
	require.NoError(t, err)
	_, err = q.Claim(ctx, now, 10)
	require.NoError(t, err)

	r, _ := newRunner(q, executorFunc(func(context.Context, checkin.Task) (checkin.Result, error) {
		t.Error("executor should not run")
		return checkin.Result{}, nil
	}), now)
	r.StaleAfter = 10 * time.Minute

	assert.Equal(t, 0, r.Tick(ctx))
	r.Wait()
}
