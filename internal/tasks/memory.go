package tasks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/checkin-scheduler/internal/checkin"
)

// Memory is an in-process Queue for single-node use and tests.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*Entry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*Entry), now: time.Now}
}

func (m *Memory) Enqueue(_ context.Context, task checkin.Task, runAt time.Time, parentID string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	e := &Entry{
		ID:        uuid.NewString(),
		ParentID:  parentID,
		Task:      task,
		RunAt:     runAt,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.entries[e.ID] = e
	return *e, nil
}

func (m *Memory) Claim(_ context.Context, now time.Time, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []*Entry
	for _, e := range m.entries {
		if e.Status == StatusPending && !e.RunAt.After(now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RunAt.Before(due[j].RunAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	out := make([]Entry, 0, len(due))
	for _, e := range due {
		e.Status = StatusRunning
		e.Attempts++
		e.UpdatedAt = m.now()
		out = append(out, *e)
	}
	return out, nil
}

func (m *Memory) Finish(_ context.Context, id string, status Status, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return ErrNotFound
	}
	e.Status = status
	e.LastError = detail
	e.UpdatedAt = m.now()
	return nil
}

func (m *Memory) Requeue(_ context.Context, staleBefore time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.Status == StatusRunning && e.UpdatedAt.Before(staleBefore) {
			e.Status = StatusPending
			e.UpdatedAt = m.now()
			n++
		}
	}
	return n, nil
}

func (m *Memory) List(_ context.Context, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
