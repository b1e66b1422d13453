package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LabPulse/pkg/logger"
)

// memRedis keeps lists and sorted sets in memory for the commands Client uses.
type memRedis struct {
	mu    sync.Mutex
	lists map[string][]string
	zsets map[string]map[string]float64
}

func newMemRedis() *memRedis {
	return &memRedis{lists: map[string][]string{}, zsets: map[string]map[string]float64{}}
}

func str(v interface{}) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v.(string)
}

func (m *memRedis) Ping(context.Context) *redis.StatusCmd { return redis.NewStatusResult("PONG", nil) }

func (m *memRedis) LPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range values {
		m.lists[key] = append([]string{str(v)}, m.lists[key]...)
	}
	return redis.NewIntResult(int64(len(m.lists[key])), nil)
}

func (m *memRedis) BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd {
	deadline := time.Now().Add(timeout)
	for {
		m.mu.Lock()
		l := m.lists[keys[0]]
		if n := len(l); n > 0 {
			v := l[n-1]
			m.lists[keys[0]] = l[:n-1]
			m.mu.Unlock()
			return redis.NewStringSliceResult([]string{keys[0], v}, nil)
		}
		m.mu.Unlock()
		if ctx.Err() != nil {
			return redis.NewStringSliceResult(nil, ctx.Err())
		}
		if time.Now().After(deadline) {
			return redis.NewStringSliceResult(nil, redis.Nil)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (m *memRedis) ZAdd(_ context.Context, key string, members ...redis.Z) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.zsets[key] == nil {
		m.zsets[key] = map[string]float64{}
	}
	for _, z := range members {
		m.zsets[key][str(z.Member)] = z.Score
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (m *memRedis) ZRangeByScore(_ context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	hi, _ := strconv.ParseFloat(opt.Max, 64)
	var out []string
	for member, score := range m.zsets[key] {
		if score <= hi {
			out = append(out, member)
		}
	}
	sort.Strings(out)
	return redis.NewStringSliceResult(out, nil)
}

func (m *memRedis) ZRem(_ context.Context, key string, members ...interface{}) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, v := range members {
		if _, ok := m.zsets[key][str(v)]; ok {
			delete(m.zsets[key], str(v))
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (m *memRedis) list(key string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lists[key]...)
}

func (m *memRedis) retries(key string) map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]float64{}
	for k, v := range m.zsets[key] {
		out[k] = v
	}
	return out
}

type ingestPayload struct {
	UserID int64    `json:"user_id"`
	Names  []string `json:"names"`
}

type recordingJob struct {
	mu  sync.Mutex
	got []json.RawMessage
	err error
}

func (j *recordingJob) Name() string { return "recording" }
func (j *recordingJob) Type() string { return "ingest" }
func (j *recordingJob) Handle(_ context.Context, payload json.RawMessage) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.got = append(j.got, payload)
	return j.err
}

func (j *recordingJob) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.got)
}

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestConsumer(rdb *memRedis, cfg Config, jobs ...Job) *Consumer {
	c := NewConsumer(logger.Nop(), rdb, "labpulse:test", cfg, jobs...)
	c.now = func() time.Time { return t0 }
	return c
}

func decodeMessage(t *testing.T, raw string) Message {
	t.Helper()
	var msg Message
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))
	return msg
}

func TestProducerPublishesEnvelope(t *testing.T) {
	rdb := newMemRedis()
	p := NewProducer(rdb, "labpulse:ingest")

	require.NoError(t, p.PublishMessage(context.Background(), "ingest", ingestPayload{UserID: 3, Names: []string{"LDL"}}))
	require.NoError(t, p.PublishMessage(context.Background(), "logs", json.RawMessage(`{"a":1}`)))

	pending := rdb.list("labpulse:ingest:messages")
	require.Len(t, pending, 2)

	first := decodeMessage(t, pending[1])
	assert.Equal(t, "ingest", first.Type)
	assert.NotEmpty(t, first.ID)
	assert.Zero(t, first.Attempts)
	p1, err := Decode[ingestPayload](first.Payload)
	require.NoError(t, err)
	assert.Equal(t, int64(3), p1.UserID)
	assert.Equal(t, []string{"LDL"}, p1.Names)

	assert.JSONEq(t, `{"a":1}`, string(decodeMessage(t, pending[0]).Payload))
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode[ingestPayload](nil)
	require.Error(t, err)
	_, err = Decode[ingestPayload](json.RawMessage(`{"user_id":"x"}`))
	require.Error(t, err)
}

func TestKeysFor(t *testing.T) {
	k := keysFor("labpulse:ingest")
	assert.Equal(t, "labpulse:ingest:messages", k.pending)
	assert.Equal(t, "labpulse:ingest:retry", k.retry)
	assert.Equal(t, "labpulse:ingest:dlq", k.dead)
	assert.Equal(t, "labpulse:queue:messages", keysFor("").pending)
}

func TestDispatchRunsRegisteredJob(t *testing.T) {
	rdb := newMemRedis()
	job := &recordingJob{}
	c := newTestConsumer(rdb, Config{}, job, &recordingJob{})
	raw, err := newMessage("ingest", ingestPayload{UserID: 1})
	require.NoError(t, err)

	c.dispatch(context.Background(), raw)

	require.Equal(t, 1, job.count())
	assert.JSONEq(t, `{"user_id":1,"names":null}`, string(job.got[0]))
	assert.Empty(t, rdb.retries("labpulse:test:retry"))
	assert.Empty(t, rdb.list("labpulse:test:dlq"))
}

func TestDispatchDeadLettersWhatNoJobCanHandle(t *testing.T) {
	rdb := newMemRedis()
	c := newTestConsumer(rdb, Config{}, &recordingJob{})
	unknown, err := newMessage("unknown", struct{}{})
	require.NoError(t, err)

	c.dispatch(context.Background(), []byte("not json"))
	c.dispatch(context.Background(), unknown)

	dead := rdb.list("labpulse:test:dlq")
	require.Len(t, dead, 2)
	assert.Equal(t, "unknown", decodeMessage(t, dead[0]).Type)
	assert.Equal(t, "not json", dead[1])
}

func TestFailedMessageRetriesWithBackoffThenDeadLetters(t *testing.T) {
	rdb := newMemRedis()
	job := &recordingJob{err: errors.New("clickhouse down")}
	c := newTestConsumer(rdb, Config{RetryLimit: 2, RetryDelay: 10 * time.Second}, job)
	raw, err := newMessage("ingest", ingestPayload{UserID: 1})
	require.NoError(t, err)

	c.dispatch(context.Background(), raw)
	retry := rdb.retries("labpulse:test:retry")
	require.Len(t, retry, 1)
	var member string
	for m, score := range retry {
		member = m
		assert.Equal(t, float64(t0.Add(10*time.Second).Unix()), score)
	}
	assert.Equal(t, 1, decodeMessage(t, member).Attempts)

	// second failure doubles the delay
	rdb.ZRem(context.Background(), "labpulse:test:retry", member)
	c.dispatch(context.Background(), []byte(member))
	for m, score := range rdb.retries("labpulse:test:retry") {
		member = m
		assert.Equal(t, float64(t0.Add(20*time.Second).Unix()), score)
	}
	assert.Equal(t, 2, decodeMessage(t, member).Attempts)

	rdb.ZRem(context.Background(), "labpulse:test:retry", member)
	c.dispatch(context.Background(), []byte(member))
	assert.Empty(t, rdb.retries("labpulse:test:retry"))
	dead := rdb.list("labpulse:test:dlq")
	require.Len(t, dead, 1)
	assert.Equal(t, 3, decodeMessage(t, dead[0]).Attempts)
	assert.Equal(t, 3, job.count())
}

func TestDispatchDuringShutdownRequeuesUntouched(t *testing.T) {
	rdb := newMemRedis()
	job := &recordingJob{err: context.Canceled}
	c := newTestConsumer(rdb, Config{RetryLimit: 3}, job)
	raw, err := newMessage("ingest", ingestPayload{UserID: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.dispatch(ctx, raw)

	assert.Equal(t, []string{string(raw)}, rdb.list("labpulse:test:messages"))
	assert.Empty(t, rdb.retries("labpulse:test:retry"))
}

func TestPromoteDueMovesOnlyDueRetries(t *testing.T) {
	rdb := newMemRedis()
	c := newTestConsumer(rdb, Config{})
	rdb.ZAdd(context.Background(), "labpulse:test:retry",
		redis.Z{Score: float64(t0.Add(-time.Second).Unix()), Member: "due"},
		redis.Z{Score: float64(t0.Add(time.Minute).Unix()), Member: "later"},
	)

	c.promoteDue(context.Background())

	assert.Equal(t, []string{"due"}, rdb.list("labpulse:test:messages"))
	assert.Equal(t, map[string]float64{"later": float64(t0.Add(time.Minute).Unix())}, rdb.retries("labpulse:test:retry"))
}

func TestConsumerStartStop(t *testing.T) {
	rdb := newMemRedis()
	job := &recordingJob{}
	c := NewConsumer(logger.Nop(), rdb, "labpulse:test", Config{Workers: 2, PollTimeout: 20 * time.Millisecond}, job)
	require.NoError(t, c.Start())
	require.Error(t, c.Start())

	p := NewProducer(rdb, "labpulse:test")
	for i := 0; i < 3; i++ {
		require.NoError(t, p.PublishMessage(context.Background(), "ingest", ingestPayload{UserID: int64(i + 1)}))
	}
	assert.Eventually(t, func() bool { return job.count() == 3 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))
	require.NoError(t, c.Stop(ctx))
}
