package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"LabPulse/pkg/logger"
)

// Consumer pops messages from a queue's pending list and hands each to the
// Job registered for its type. Failed messages wait in a sorted set scored
// by their retry time; after Config.RetryLimit retries, or when nothing
// can handle them, they go to the dead-letter list.
type Consumer struct {
	l      *logger.Logger
	client Client
	keys   keys
	cfg    Config
	jobs   map[string]Job
	now    func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewConsumer(l *logger.Logger, client Client, prefix string, cfg Config, jobs ...Job) *Consumer {
	if l == nil {
		l = logger.Nop()
	}
	c := &Consumer{
		l:      l,
		client: client,
		keys:   keysFor(prefix),
		cfg:    cfg.withDefaults(),
		jobs:   make(map[string]Job, len(jobs)),
		now:    time.Now,
	}
	for _, j := range jobs {
		if prev, dup := c.jobs[j.Type()]; dup {
			l.Warn("queue job type already taken",
				logger.String("type", j.Type()),
				logger.String("job", j.Name()),
				logger.String("registered", prev.Name()))
			continue
		}
		c.jobs[j.Type()] = j
	}
	return c
}

// Start checks Redis and launches the workers and the retry promoter.
func (c *Consumer) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return errors.New("queue consumer already running")
	}

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := c.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	for i := 0; i < c.cfg.Workers; i++ {
		c.wg.Add(1)
		go c.work(ctx, i)
	}
	c.wg.Add(1)
	go c.promoteLoop(ctx)

	c.l.Info("queue consumer started",
		logger.String("queue", c.keys.pending),
		logger.Int("workers", c.cfg.Workers),
		logger.Int("jobs", len(c.jobs)))
	return nil
}

// Stop cancels the workers and waits for in-flight messages up to ctx.
func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		c.l.Info("queue consumer stopped", logger.String("queue", c.keys.pending))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue consumer stop: %w", ctx.Err())
	}
}

func (c *Consumer) work(ctx context.Context, id int) {
	defer c.wg.Done()
	for ctx.Err() == nil {
		res, err := c.client.BRPop(ctx, c.cfg.PollTimeout, c.keys.pending).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			c.l.Error("queue pop failed", logger.Int("worker_id", id), logger.Error(err))
			pause(ctx, time.Second)
			continue
		}
		// BRPOP replies [key, value]
		if len(res) == 2 {
			c.dispatch(ctx, []byte(res[1]))
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.l.Error("queue message malformed", logger.Error(err))
		c.write(c.keys.dead, raw)
		return
	}
	job, ok := c.jobs[msg.Type]
	if !ok {
		c.l.Error("no job for queue message", logger.String("type", msg.Type), logger.String("id", msg.ID))
		c.write(c.keys.dead, raw)
		return
	}

	start := c.now()
	err := job.Handle(ctx, msg.Payload)
	if err == nil {
		c.l.Debug("queue message handled",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Duration("elapsed_ms", c.now().Sub(start)))
		return
	}
	if ctx.Err() != nil {
		// shutting down: hand the message back untouched
		c.write(c.keys.pending, raw)
		return
	}
	c.fail(msg, job, err)
}

func (c *Consumer) fail(msg Message, job Job, cause error) {
	msg.Attempts++
	b, err := json.Marshal(msg)
	if err != nil {
		c.l.Error("queue message marshal", logger.String("id", msg.ID), logger.Error(err))
		return
	}
	if msg.Attempts > c.cfg.RetryLimit {
		c.l.Error("queue message dead-lettered",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Int("attempts", msg.Attempts),
			logger.Error(cause))
		c.write(c.keys.dead, b)
		return
	}

	at := c.now().Add(c.backoff(msg.Attempts))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.client.ZAdd(ctx, c.keys.retry, redis.Z{Score: float64(at.Unix()), Member: b}).Err(); err != nil {
		c.l.Error("queue retry schedule failed", logger.String("id", msg.ID), logger.Error(err))
		return
	}
	c.l.Warn("queue message retry scheduled",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts),
		logger.String("retry_at", at.Format(time.RFC3339)),
		logger.Error(cause))
}

// backoff doubles RetryDelay per attempt, up to 32x.
func (c *Consumer) backoff(attempt int) time.Duration {
	return c.cfg.RetryDelay << uint(min(attempt-1, 5))
}

func (c *Consumer) promoteLoop(ctx context.Context) {
	defer c.wg.Done()
	t := time.NewTicker(c.cfg.PromoteInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.promoteDue(ctx)
		}
	}
}

// promoteDue moves retries whose time has come back to the pending list.
// Only the consumer whose ZREM removed a member pushes it, so replicas
// sharing a queue never requeue the same message twice.
func (c *Consumer) promoteDue(ctx context.Context) {
	due, err := c.client.ZRangeByScore(ctx, c.keys.retry, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(c.now().Unix(), 10),
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			c.l.Error("queue retry scan failed", logger.Error(err))
		}
		return
	}
	for _, m := range due {
		n, err := c.client.ZRem(ctx, c.keys.retry, m).Result()
		if err != nil {
			c.l.Error("queue retry claim failed", logger.Error(err))
			return
		}
		if n == 0 {
			continue
		}
		if err := c.client.LPush(ctx, c.keys.pending, m).Err(); err != nil {
			c.l.Error("queue retry requeue failed", logger.Error(err))
			c.client.ZAdd(context.Background(), c.keys.retry, redis.Z{Score: float64(c.now().Unix()), Member: m})
		}
	}
}

// write pushes raw onto key with its own deadline so shutdown cannot lose it.
func (c *Consumer) write(key string, raw []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.client.LPush(ctx, key, raw).Err(); err != nil {
		c.l.Error("queue write failed", logger.String("key", key), logger.Error(err))
	}
}

func pause(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
