package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/example/checkin-scheduler/internal/checkin"
)

const defaultRedisPrefix = "checkin:"

// Redis is a Queue backed by a sorted set of due entry ids scored by run time,
// a sorted set of running ids scored by claim time and one hash per entry.
type Redis struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedis(rdb *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &Redis{rdb: rdb, prefix: prefix, now: time.Now}
}

// OpenRedis parses a redis:// URL and returns a client.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (r *Redis) dueKey() string { return r.prefix + "due" }
func (r *Redis) allKey() string { return r.prefix + "all" }
func (r *Redis) runningKey() string { return r.prefix + "running" }
func (r *Redis) entryKey(id string) string { return r.prefix + "task:" + id }

func (r *Redis) Enqueue(ctx context.Context, task checkin.Task, runAt time.Time, parentID string) (Entry, error) {
	now := r.now()
	e := Entry{
		ID:        uuid.NewString(),
		ParentID:  parentID,
		Task:      task,
		RunAt:     runAt,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	fields, err := encodeEntry(e)
	if err != nil {
		return Entry{}, err
	}
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, r.entryKey(e.ID), fields)
		p.ZAdd(ctx, r.dueKey(), redis.Z{Score: score(runAt), Member: e.ID})
		p.ZAdd(ctx, r.allKey(), redis.Z{Score: score(now), Member: e.ID})
		return nil
	})
	if err != nil {
		return Entry{}, fmt.Errorf("redis enqueue: %w", err)
	}
	return e, nil
}

// claimScript moves one id from due to running and marks the entry, all in
// one step. It returns 0 when another worker got the id first.
var claimScript = redis.NewScript(`
if redis.call("ZREM", KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call("ZADD", KEYS[2], ARGV[2], ARGV[1])
redis.call("HINCRBY", KEYS[3], "attempts", 1)
redis.call("HSET", KEYS[3], "status", "running", "updated_at", ARGV[3])
return 1
`)

// requeueScript moves one id from running back to due.
var requeueScript = redis.NewScript(`
if redis.call("ZREM", KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call("ZADD", KEYS[2], ARGV[2], ARGV[1])
redis.call("HSET", KEYS[3], "status", "pending", "updated_at", ARGV[3])
return 1
`)

// Claim moves due ids to the running set; whoever moves an id owns it.
func (r *Redis) Claim(ctx context.Context, now time.Time, limit int) ([]Entry, error) {
	by := &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatFloat(score(now), 'f', -1, 64),
	}
	if limit > 0 {
		by.Count = int64(limit)
	}
	ids, err := r.rdb.ZRangeByScore(ctx, r.dueKey(), by).Result()
	if err != nil {
		return nil, fmt.Errorf("redis due: %w", err)
	}

	var out []Entry
	for _, id := range ids {
		at := r.now()
		won, err := claimScript.Run(ctx, r.rdb,
			[]string{r.dueKey(), r.runningKey(), r.entryKey(id)},
			id, score(at), at.Format(time.RFC3339Nano),
		).Int()
		if err != nil {
			return out, fmt.Errorf("redis claim %s: %w", id, err)
		}
		if won == 0 {
			continue
		}
		e, err := r.get(ctx, id)
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *Redis) Finish(ctx context.Context, id string, status Status, detail string) error {
	key := r.entryKey(id)
	n, err := r.rdb.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRem(ctx, r.runningKey(), id)
		p.HSet(ctx, key,
			"status", string(status),
			"last_error", detail,
			"updated_at", r.now().Format(time.RFC3339Nano),
		)
		return nil
	})
	return err
}

// Requeue makes stale running entries due immediately.
func (r *Redis) Requeue(ctx context.Context, staleBefore time.Time) (int, error) {
	ids, err := r.rdb.ZRangeByScore(ctx, r.runningKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatFloat(score(staleBefore), 'f', -1, 64),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("redis running: %w", err)
	}
	n := 0
	for _, id := range ids {
		at := r.now()
		moved, err := requeueScript.Run(ctx, r.rdb,
			[]string{r.runningKey(), r.dueKey(), r.entryKey(id)},
			id, score(at), at.Format(time.RFC3339Nano),
		).Int()
		if err != nil {
			return n, fmt.Errorf("redis requeue %s: %w", id, err)
		}
		n += moved
	}
	return n, nil
}

func (r *Redis) List(ctx context.Context, limit int) ([]Entry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := r.rdb.ZRevRange(ctx, r.allKey(), 0, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		e, err := r.get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *Redis) get(ctx context.Context, id string) (Entry, error) {
	fields, err := r.rdb.HGetAll(ctx, r.entryKey(id)).Result()
	if err != nil {
		return Entry{}, err
	}
	if len(fields) == 0 {
		return Entry{}, ErrNotFound
	}
	return decodeEntry(id, fields)
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

func encodeEntry(e Entry) (map[string]any, error) {
	payload, err := json.Marshal(e.Task)
	if err != nil {
		return nil, fmt.Errorf("encode task: %w", err)
	}
	return map[string]any{
		"payload":    string(payload),
		"parent_id":  e.ParentID,
		"run_at":     e.RunAt.Format(time.RFC3339Nano),
		"status":     string(e.Status),
		"attempts":   e.Attempts,
		"last_error": e.LastError,
		"created_at": e.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": e.UpdatedAt.Format(time.RFC3339Nano),
	}, nil
}

func decodeEntry(id string, f map[string]string) (Entry, error) {
	e := Entry{
		ID:        id,
		ParentID:  f["parent_id"],
		Status:    Status(f["status"]),
		LastError: f["last_error"],
	}
	if err := json.Unmarshal([]byte(f["payload"]), &e.Task); err != nil {
		return Entry{}, fmt.Errorf("decode task %s: %w", id, err)
	}
	var err error
	if e.Attempts, err = strconv.Atoi(f["attempts"]); err != nil {
		return Entry{}, fmt.Errorf("decode task %s attempts: %w", id, err)
	}
	for _, tf := range []struct {
		key string
		dst *time.Time
	}{
		{"run_at", &e.RunAt},
		{"created_at", &e.CreatedAt},
		{"updated_at", &e.UpdatedAt},
	} {
		if *tf.dst, err = time.Parse(time.RFC3339Nano, f[tf.key]); err != nil {
			return Entry{}, fmt.Errorf("decode task %s %s: %w", id, tf.key, err)
		}
	}
	return e, nil
}
