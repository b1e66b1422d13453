package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"LabPulse/internal/domain/models"
	domrepo "LabPulse/internal/domain/repository"
	pkgkafka "LabPulse/pkg/kafka"
	applogger "LabPulse/pkg/logger"
)

// KafkaReadingsHandler consumes ReadingEvents from the readings topic and
// writes the readings to storage.
type KafkaReadingsHandler struct {
	topic   string
	storage domrepo.Storage
	metrics domrepo.Metrics
	fanout  *IngestFanout
	l       *applogger.Logger
}

func NewKafkaReadingsHandler(topic string, storage domrepo.Storage, metrics domrepo.Metrics, fanout *IngestFanout, l *applogger.Logger) *KafkaReadingsHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &KafkaReadingsHandler{topic: topic, storage: storage, metrics: metrics, fanout: fanout, l: l}
}

func (h *KafkaReadingsHandler) Topic() string { return h.topic }

// Handle stores one event. Events that are not readings are skipped; a
// malformed payload is returned as an error so the consumer dead-letters it.
func (h *KafkaReadingsHandler) Handle(ctx context.Context, b []byte) error {
	var ev models.ReadingEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode reading event: %w", err)
	}
	if ev.Type != models.EventReading || ev.Reading == nil {
		return nil
	}
	if !ev.EmittedAt.IsZero() {
		h.metrics.RecordLatency("ingest_e2e", time.Since(ev.EmittedAt).Seconds())
	}

	start := time.Now()
	err := h.storage.Store(ctx, ev.Reading)
	h.metrics.RecordLatency("store", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		h.l.Error("store reading failed",
			applogger.String("event_id", ev.EventID),
			applogger.String("trace_id", pkgkafka.TraceID(ctx)),
			applogger.Error(err),
		)
		return fmt.Errorf("store reading: %w", err)
	}
	h.metrics.RecordMessageSent("consumer", ev.Reading.Name)

	h.fanout.After(ctx, []*models.Reading{ev.Reading})
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaReadingsHandler)(nil)
