package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/checkin-scheduler/internal/checkin"
	"github.com/example/checkin-scheduler/internal/db"
)

const entryColumns = `id::text, COALESCE(parent_id::text, ''), payload, run_at, status, attempts, COALESCE(last_error, ''), created_at, updated_at`

// Postgres is a Queue backed by the check_in_tasks table.
type Postgres struct{ db *db.DB }

func NewPostgres(d *db.DB) *Postgres { return &Postgres{db: d} }

func (p *Postgres) Enqueue(ctx context.Context, task checkin.Task, runAt time.Time, parentID string) (Entry, error) {
	payload, err := json.Marshal(task)
	if err != nil {
		return Entry{}, fmt.Errorf("encode task: %w", err)
	}
	var parent *string
	if parentID != "" {
		parent = &parentID
	}
	row := p.db.QueryRow(ctx, `
INSERT INTO check_in_tasks(id, confirmation_number, payload, run_at, status, parent_id)
VALUES ($1::uuid, $2, $3, $4, 'pending', $5::uuid)
RETURNING `+entryColumns,
		uuid.NewString(), task.ConfirmationNumber, payload, runAt, parent,
	)
	e, err := scanEntry(row)
	return e, db.WrapNotFound(err)
}

// Claim moves up to limit due entries to running. SKIP LOCKED lets several
// workers share the table.
func (p *Postgres) Claim(ctx context.Context, now time.Time, limit int) ([]Entry, error) {
	rows, err := p.db.Query(ctx, `
UPDATE check_in_tasks
SET status='running', attempts=attempts+1, updated_at=now()
WHERE id IN (
	SELECT id FROM check_in_tasks
	WHERE status='pending' AND run_at <= $1
	ORDER BY run_at ASC
	LIMIT $2
	FOR UPDATE SKIP LOCKED
)
RETURNING `+entryColumns, now, sqlLimit(limit))
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (p *Postgres) Finish(ctx context.Context, id string, status Status, detail string) error {
	var lastErr *string
	if detail != "" {
		lastErr = &detail
	}
	n, err := p.db.Exec(ctx, `UPDATE check_in_tasks SET status=$2, last_error=$3, updated_at=now() WHERE id=$1::uuid`, id, string(status), lastErr)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Requeue(ctx context.Context, staleBefore time.Time) (int, error) {
	n, err := p.db.Exec(ctx, `
UPDATE check_in_tasks
SET status='pending', updated_at=now()
WHERE status='running' AND updated_at < $1`, staleBefore)
	return int(n), err
}

func (p *Postgres) List(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := p.db.Query(ctx, `
SELECT `+entryColumns+`
FROM check_in_tasks
ORDER BY created_at DESC
LIMIT $1`, sqlLimit(limit))
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// ListByConfirmation returns every entry of a reservation's lineage, oldest first.
func (p *Postgres) ListByConfirmation(ctx context.Context, confirmation string) ([]Entry, error) {
	rows, err := p.db.Query(ctx, `
SELECT `+entryColumns+`
FROM check_in_tasks
WHERE confirmation_number=$1
ORDER BY created_at ASC`, confirmation)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// sqlLimit maps a non-positive limit to NULL, which Postgres treats as no limit.
func sqlLimit(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}

func collect(rows db.Rows) ([]Entry, error) {
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntry(row db.Row) (Entry, error) {
	var e Entry
	var payload []byte
	var status string
	if err := row.Scan(&e.ID, &e.ParentID, &payload, &e.RunAt, &status, &e.Attempts, &e.LastError, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return Entry{}, err
	}
	if err := json.Unmarshal(payload, &e.Task); err != nil {
		return Entry{}, fmt.Errorf("decode task %s: %w", e.ID, err)
	}
	e.Status = Status(status)
	return e, nil
}
