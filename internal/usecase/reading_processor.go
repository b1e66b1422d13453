package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"LabPulse/internal/domain/models"
	drepo "LabPulse/internal/domain/repository"
	"LabPulse/pkg/config"
	applogger "LabPulse/pkg/logger"
)

// ReadingProcessor routes readings to the configured backend: the Kafka
// publisher, or direct storage for clickhouse and memory.
type ReadingProcessor struct {
	pub     drepo.Publisher
	store   drepo.Storage
	metrics drepo.Metrics
	fanout  *IngestFanout
	backend string
	timeout time.Duration
	l       *applogger.Logger
}

func NewReadingProcessor(
	pub drepo.Publisher,
	store drepo.Storage,
	metrics drepo.Metrics,
	fanout *IngestFanout,
	backend string,
	l *applogger.Logger,
) *ReadingProcessor {
	if l == nil {
		l = applogger.Nop()
	}
	return &ReadingProcessor{
		pub:     pub,
		store:   store,
		metrics: metrics,
		fanout:  fanout,
		backend: backend,
		l:       l,
	}
}

// SetTimeout bounds each backend call; 0 leaves the caller's deadline alone.
func (p *ReadingProcessor) SetTimeout(d time.Duration) { p.timeout = d }

// Process routes a single reading.
func (p *ReadingProcessor) Process(ctx context.Context, r *models.Reading) error {
	if r == nil {
		return fmt.Errorf("reading is nil")
	}
	return p.ProcessBatch(ctx, []*models.Reading{r})
}

// ProcessBatch routes readings in one backend call. Readings without an ID get one.
func (p *ReadingProcessor) ProcessBatch(ctx context.Context, readings []*models.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	for _, r := range readings {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
	}

	callCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	var err error
	switch p.backend {
	case config.BackendKafka:
		if p.pub == nil {
			return fmt.Errorf("kafka backend without publisher")
		}
		err = p.pub.PublishBatch(callCtx, readings)
	case config.BackendClickHouse, config.BackendMemory:
		if p.store == nil {
			return fmt.Errorf("%s backend without storage", p.backend)
		}
		err = p.store.StoreBatch(callCtx, readings)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process")
		p.l.Error("ingest backend failed",
			applogger.String("backend", p.backend),
			applogger.Int("readings", len(readings)),
			applogger.Error(err),
		)
		return fmt.Errorf("process readings: %w", err)
	}

	for _, r := range readings {
		p.metrics.RecordMessageSent(p.backend, r.Name)
		p.metrics.RecordLastValue(r.Name, r.Value)
	}
	p.metrics.RecordLatency("process", time.Since(start).Seconds())

	// with kafka the consumer stores and fans out once the event lands
	if p.backend != config.BackendKafka {
		p.fanout.After(ctx, readings)
	}
	return nil
}

// Backend returns the configured backend name.
func (p *ReadingProcessor) Backend() string { return p.backend }

// Close closes underlying resources if available.
func (p *ReadingProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
