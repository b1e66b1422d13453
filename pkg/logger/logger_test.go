package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "debug").With(String("component", "forecast"))

	l.Info("forecast computed",
		Int64("user_id", 7),
		Float64("slope", 0.25),
		Duration("took", 1500*time.Millisecond),
		Error(errors.New("boom")),
	)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "forecast computed", entry["message"])
	assert.Equal(t, "forecast", entry["component"])
	assert.Equal(t, float64(7), entry["user_id"])
	assert.Equal(t, 0.25, entry["slope"])
	assert.Equal(t, float64(1500), entry["took"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn")
	l.Info("dropped")
	assert.Zero(t, buf.Len())
	l.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Output: "stdout"})
	assert.Error(t, err)
}

func TestCollectorAggregatesAndFlushesOnClose(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 50,
		Topic:          "logs.labpulse",
		Publisher:      pub,
		Levels:         []string{"error"},
	})

	for i := 0; i < 3; i++ {
		l.Error("store failed", String("table", "biomarkers"))
	}
	l.Warn("ignored by level filter")
	l.RemoveCollector()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	require.Len(t, pub.batches[0], 1)
	assert.Equal(t, "logs.labpulse", pub.topic)
	assert.Equal(t, 3, pub.batches[0][0].Count)
	assert.Equal(t, "error", pub.batches[0][0].Level)
}
