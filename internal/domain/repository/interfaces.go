package repository

import (
	"context"

	"LabPulse/internal/domain/models"
)

type Publisher interface {
	Publish(ctx context.Context, r *models.Reading) error
	PublishBatch(ctx context.Context, readings []*models.Reading) error
	Close() error
}

type Storage interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Store(ctx context.Context, r *models.Reading) error
	StoreBatch(ctx context.Context, readings []*models.Reading) error
	Health(ctx context.Context) error
	Close() error
}

// EventSink receives ingest and anomaly events for live subscribers.
type EventSink interface {
	Broadcast(ev models.ReadingEvent)
}

type Metrics interface {
	RecordMessageSent(backend, biomarker string)
	RecordError(kind string)
	RecordLastValue(biomarker string, value float64)
	RecordLatency(op string, seconds float64)
}
