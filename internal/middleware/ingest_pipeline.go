package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"LabPulse/internal/domain/models"
	domrepo "LabPulse/internal/domain/repository"
	applogger "LabPulse/pkg/logger"
)

var (
	// ErrThrottled is returned when a user+name key exceeded its admission rate.
	ErrThrottled = errors.New("ingest throttled")
	// ErrBuffered means the backend failed and the batch is queued for retry.
	ErrBuffered = errors.New("ingest buffered for retry")
)

// Proc is the downstream the pipeline feeds.
type Proc interface {
	ProcessBatch(ctx context.Context, readings []*models.Reading) error
}

// IngestPipeline sits between ingest sources (HTTP, Redis queue) and the
// reading processor. It validates, throttles per user+name, and buffers
// batches the backend rejected for retry with backoff.
type IngestPipeline struct {
	proc       Proc
	metrics    domrepo.Metrics
	l          *applogger.Logger
	maxRPS     int
	retryMax   int
	retryDelay time.Duration
	bufCh      chan bufferedBatch
	stopCh     chan struct{}
	wg         sync.WaitGroup

	mu       sync.Mutex
	started  bool
	lastSeen map[string]time.Time
	now      func() time.Time
}

type bufferedBatch struct {
	readings []*models.Reading
	attempts int
}

type PipelineOption func(*IngestPipeline)

// WithMaxRPS sets admissions per second per user+name; 0 disables throttling.
func WithMaxRPS(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n >= 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets how many failed batches wait for retry.
func WithBufferSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.bufCh = make(chan bufferedBatch, n)
		}
	}
}

// WithRetry sets retry attempts for buffered batches and the base delay.
func WithRetry(max int, delay time.Duration) PipelineOption {
	return func(p *IngestPipeline) {
		if max >= 0 {
			p.retryMax = max
		}
		if delay > 0 {
			p.retryDelay = delay
		}
	}
}

func NewIngestPipeline(proc Proc, metrics domrepo.Metrics, l *applogger.Logger, opts ...PipelineOption) *IngestPipeline {
	if l == nil {
		l = applogger.Nop()
	}
	p := &IngestPipeline{
		proc:       proc,
		metrics:    metrics,
		l:          l,
		maxRPS:     20,
		retryMax:   3,
		retryDelay: 200 * time.Millisecond,
		bufCh:      make(chan bufferedBatch, 1000),
		stopCh:     make(chan struct{}),
		lastSeen:   make(map[string]time.Time),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the retry loop for buffered batches.
func (p *IngestPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.retryLoop(ctx)
}

// Stop ends the retry loop; batches still buffered are dropped and counted.
func (p *IngestPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	p.wg.Wait()

	if n := len(p.bufCh); n > 0 {
		p.l.Warn("ingest pipeline stopped with buffered batches", applogger.Int("batches", n))
	}
}

// Process admits a single reading.
func (p *IngestPipeline) Process(ctx context.Context, r *models.Reading) error {
	return p.ProcessBatch(ctx, []*models.Reading{r})
}

// ProcessBatch validates every reading, assigns missing IDs, throttles once
// per distinct user+name in the batch and forwards the batch. A backend
// failure buffers the batch and returns an error wrapping ErrBuffered.
func (p *IngestPipeline) ProcessBatch(ctx context.Context, readings []*models.Reading) error {
	start := p.now()
	for i, r := range readings {
		if err := ValidateReading(r); err != nil {
			p.metrics.RecordError("pipeline_validate")
			return fmt.Errorf("reading %d: %w", i, err)
		}
	}
	for _, r := range readings {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
	}
	if !p.admit(readings, start) {
		p.metrics.RecordError("pipeline_throttle")
		return ErrThrottled
	}

	if err := p.proc.ProcessBatch(ctx, readings); err != nil {
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- bufferedBatch{readings: readings}:
			p.metrics.RecordLatency("pipeline_buffer_depth", float64(len(p.bufCh)))
			return fmt.Errorf("%w: %v", ErrBuffered, err)
		default:
			p.metrics.RecordError("pipeline_buffer_full")
			return fmt.Errorf("pipeline downstream: %w", err)
		}
	}
	p.metrics.RecordLatency("pipeline_process", p.now().Sub(start).Seconds())
	return nil
}

// ValidateReading rejects readings storage and the engines cannot use.
func ValidateReading(r *models.Reading) error {
	switch {
	case r == nil:
		return fmt.Errorf("%w: nil", domrepo.ErrInvalidReading)
	case r.Name == "":
		return fmt.Errorf("%w: name empty", domrepo.ErrInvalidReading)
	case math.IsNaN(r.Value) || math.IsInf(r.Value, 0):
		return fmt.Errorf("%w: value not finite", domrepo.ErrInvalidReading)
	case r.RecordedAt.IsZero():
		return fmt.Errorf("%w: recorded_at missing", domrepo.ErrInvalidReading)
	case r.RefMin != nil && r.RefMax != nil && *r.RefMin > *r.RefMax:
		return fmt.Errorf("%w: ref_min above ref_max", domrepo.ErrInvalidReading)
	}
	return nil
}

func (p *IngestPipeline) admit(readings []*models.Reading, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	interval := time.Second / time.Duration(p.maxRPS)

	keys := make([]string, 0, len(readings))
	seen := map[string]struct{}{}
	for _, r := range readings {
		k := fmt.Sprintf("%d|%s", r.UserID, r.Name)
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range keys {
		if last, ok := p.lastSeen[k]; ok && now.Sub(last) < interval {
			return false
		}
	}
	for _, k := range keys {
		p.lastSeen[k] = now
	}
	return true
}

func (p *IngestPipeline) retryLoop(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case b := <-p.bufCh:
			b.attempts++
			delay := p.retryDelay * time.Duration(1<<uint(min(b.attempts-1, 5)))
			select {
			case <-time.After(delay):
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			}
			if err := p.proc.ProcessBatch(ctx, b.readings); err != nil {
				p.metrics.RecordError("pipeline_flush")
				if b.attempts >= p.retryMax {
					p.metrics.RecordError("pipeline_buffer_drop")
					p.l.Error("dropping ingest batch after retries",
						applogger.Int("readings", len(b.readings)),
						applogger.Int("attempts", b.attempts),
						applogger.Error(err),
					)
					continue
				}
				select {
				case p.bufCh <- b:
				default:
					p.metrics.RecordError("pipeline_buffer_drop")
				}
			}
		}
	}
}
