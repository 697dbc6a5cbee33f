// Package queue is a small redis-backed task queue. Ready tasks live in a
// list, retries wait in a sorted set scored by their due time and tasks that
// exhaust their attempts are parked in a dead-letter list.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"walletcore.backend/pkg/logger"
	"walletcore.backend/pkg/utils"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 2 * time.Second
	promoteBatch       = 100
)

// ErrNoHandler is returned for a task type nobody registered.
var ErrNoHandler = errors.New("no handler registered")

var nowFunc = time.Now

// Task is one unit of queued work.
type Task struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
	LastError   string          `json:"last_error,omitempty"`
}

// Decode unmarshals the payload into v.
func (t *Task) Decode(v interface{}) error {
	return json.Unmarshal(t.Payload, v)
}

// Handler processes a task. A returned error schedules a retry.
type Handler func(ctx context.Context, task *Task) error

// Options tunes retry behaviour.
type Options struct {
	MaxAttempts int
	Backoff     time.Duration
	PollTimeout time.Duration
}

// Queue is safe for concurrent producers and workers.
type Queue struct {
	client      goredis.Cmdable
	name        string
	maxAttempts int
	backoff     time.Duration
	pollTimeout time.Duration

	mu       sync.RWMutex
	handlers map[string]Handler
}

func New(client goredis.Cmdable, name string, opts Options) *Queue {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = time.Second
	}
	return &Queue{
		client:      client,
		name:        name,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
		pollTimeout: opts.PollTimeout,
		handlers:    make(map[string]Handler),
	}
}

func (q *Queue) readyKey() string   { return "queue:" + q.name }
func (q *Queue) delayedKey() string { return "queue:" + q.name + ":delayed" }
func (q *Queue) deadKey() string    { return "queue:" + q.name + ":dead" }

// Register binds a handler to a task type.
func (q *Queue) Register(taskType string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[taskType] = h
}

// Enqueue makes a task ready immediately.
func (q *Queue) Enqueue(ctx context.Context, taskType string, payload interface{}) (string, error) {
	return q.EnqueueIn(ctx, taskType, payload, 0)
}

// EnqueueIn schedules a task after delay.
func (q *Queue) EnqueueIn(ctx context.Context, taskType string, payload interface{}, delay time.Duration) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", taskType, err)
	}
	task := &Task{
		ID:          utils.GenerateUUIDv7().String(),
		Type:        taskType,
		Payload:     raw,
		MaxAttempts: q.maxAttempts,
		EnqueuedAt:  nowFunc().UTC(),
	}
	if err := q.push(ctx, task, delay); err != nil {
		return "", err
	}
	return task.ID, nil
}

func (q *Queue) push(ctx context.Context, task *Task, delay time.Duration) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	if delay <= 0 {
		return q.client.LPush(ctx, q.readyKey(), raw).Err()
	}
	due := nowFunc().Add(delay).UnixMilli()
	return q.client.ZAdd(ctx, q.delayedKey(), goredis.Z{Score: float64(due), Member: raw}).Err()
}

// PromoteDue moves retries whose time has come onto the ready list.
func (q *Queue) PromoteDue(ctx context.Context) (int, error) {
	upper := strconv.FormatInt(nowFunc().UnixMilli(), 10)
	members, err := q.client.ZRangeByScore(ctx, q.delayedKey(), &goredis.ZRangeBy{
		Min: "-inf", Max: upper, Count: promoteBatch,
	}).Result()
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, m := range members {
		// ZREM wins the race between workers promoting the same member.
		n, err := q.client.ZRem(ctx, q.delayedKey(), m).Result()
		if err != nil {
			return moved, err
		}
		if n == 0 {
			continue
		}
		if err := q.client.LPush(ctx, q.readyKey(), m).Err(); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

// ProcessOnce promotes due retries and handles at most one ready task.
// It reports whether a task was handled.
func (q *Queue) ProcessOnce(ctx context.Context) (bool, error) {
	if _, err := q.PromoteDue(ctx); err != nil {
		return false, err
	}
	raw, err := q.client.RPop(ctx, q.readyKey()).Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, q.handle(ctx, raw)
}

func (q *Queue) handle(ctx context.Context, raw string) error {
	var task Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		logger.Error(ctx, "dropping undecodable task", zap.String("queue", q.name), zap.Error(err))
		return q.client.LPush(ctx, q.deadKey(), raw).Err()
	}

	q.mu.RLock()
	h, ok := q.handlers[task.Type]
	q.mu.RUnlock()

	var runErr error
	if !ok {
		runErr = fmt.Errorf("%w for %q", ErrNoHandler, task.Type)
	} else {
		runErr = safeRun(ctx, h, &task)
	}
	if runErr == nil {
		return nil
	}

	task.Attempts++
	task.LastError = runErr.Error()
	maxAttempts := task.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = q.maxAttempts
	}
	if task.Attempts >= maxAttempts || !ok {
		logger.Error(ctx, "task failed permanently",
			zap.String("queue", q.name), zap.String("task_id", task.ID), zap.String("type", task.Type),
			zap.Int("attempts", task.Attempts), zap.Error(runErr))
		buf, _ := json.Marshal(task)
		return q.client.LPush(ctx, q.deadKey(), buf).Err()
	}

	delay := q.backoff * time.Duration(1<<uint(task.Attempts-1))
	logger.Warn(ctx, "task failed, retrying",
		zap.String("queue", q.name), zap.String("task_id", task.ID), zap.String("type", task.Type),
		zap.Int("attempts", task.Attempts), zap.Duration("retry_in", delay), zap.Error(runErr))
	return q.push(ctx, &task, delay)
}

func safeRun(ctx context.Context, h Handler, task *Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return h(ctx, task)
}

// Run starts workers that block on the ready list until ctx is done.
func (q *Queue) Run(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.work(ctx)
		}()
	}
	wg.Wait()
}

func (q *Queue) work(ctx context.Context) {
	for ctx.Err() == nil {
		if _, err := q.PromoteDue(ctx); err != nil && ctx.Err() == nil {
			logger.Warn(ctx, "promote delayed tasks failed", zap.String("queue", q.name), zap.Error(err))
		}
		res, err := q.client.BRPop(ctx, q.pollTimeout, q.readyKey()).Result()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn(ctx, "queue poll failed", zap.String("queue", q.name), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(q.pollTimeout):
			}
			continue
		}
		// res is [key, value]
		if err := q.handle(ctx, res[1]); err != nil {
			logger.Error(ctx, "task bookkeeping failed", zap.String("queue", q.name), zap.Error(err))
		}
	}
}

// Len returns the number of ready tasks.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.readyKey()).Result()
}

// Delayed returns the number of tasks waiting for a retry.
func (q *Queue) Delayed(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.delayedKey()).Result()
}

// DeadLetters returns tasks that exhausted their attempts, newest first.
func (q *Queue) DeadLetters(ctx context.Context, limit int64) ([]Task, error) {
	raws, err := q.client.LRange(ctx, q.deadKey(), 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Task, 0, len(raws))
	for _, raw := range raws {
		var t Task
		if err := json.Unmarshal([]byte(raw), &t); err == nil {
			out = append(out, t)
		}
	}
	return out, nil
}
