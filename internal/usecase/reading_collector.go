package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"LabPulse/internal/domain/models"
	drepo "LabPulse/internal/domain/repository"
	mid "LabPulse/internal/middleware"
	"LabPulse/pkg/queue"
)

// JobTypeIngest is the queue message type carrying a models.IngestJob.
const JobTypeIngest = "ingest.readings"

// ReadingCollector drains ingest jobs from the Redis queue into the pipeline,
// for producers that enqueue instead of calling the HTTP API.
type ReadingCollector struct {
	pipe    *mid.IngestPipeline
	metrics drepo.Metrics
	now     func() time.Time
}

func NewReadingCollector(pipe *mid.IngestPipeline, metrics drepo.Metrics) *ReadingCollector {
	return &ReadingCollector{pipe: pipe, metrics: metrics, now: time.Now}
}

func (c *ReadingCollector) Name() string { return "reading-collector" }

func (c *ReadingCollector) Type() string { return JobTypeIngest }

// Handle converts and admits one job. Invalid jobs are dropped rather than
// retried; buffered batches count as handled since the pipeline owns them.
func (c *ReadingCollector) Handle(ctx context.Context, payload json.RawMessage) error {
	job, err := queue.Decode[models.IngestJob](payload)
	if err != nil {
		c.metrics.RecordError("collector_decode")
		return nil
	}
	if job.UserID <= 0 || len(job.Readings) == 0 {
		c.metrics.RecordError("collector_empty")
		return nil
	}

	now := c.now()
	readings := make([]*models.Reading, 0, len(job.Readings))
	for _, in := range job.Readings {
		if in.Value == nil {
			c.metrics.RecordError("collector_invalid")
			return nil
		}
		readings = append(readings, in.ToReading(job.UserID, now))
	}

	err = c.pipe.ProcessBatch(ctx, readings)
	switch {
	case err == nil, errors.Is(err, mid.ErrBuffered):
		return nil
	case errors.Is(err, drepo.ErrInvalidReading):
		c.metrics.RecordError("collector_invalid")
		return nil
	default:
		return fmt.Errorf("collect readings: %w", err)
	}
}

// Start launches the pipeline's retry loop.
func (c *ReadingCollector) Start(ctx context.Context) { c.pipe.Start(ctx) }

// Shutdown stops the pipeline.
func (c *ReadingCollector) Shutdown() { c.pipe.Stop() }

var _ queue.Job = (*ReadingCollector)(nil)
