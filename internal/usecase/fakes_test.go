package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"LabPulse/internal/domain/models"
	domrepo "LabPulse/internal/domain/repository"
	"LabPulse/internal/repository"
	"LabPulse/internal/services/analytics"
)

type fakeMetrics struct {
	mu     sync.Mutex
	sent   map[string]int
	errors []string
}

func newFakeMetrics() *fakeMetrics { return &fakeMetrics{sent: map[string]int{}} }

func (m *fakeMetrics) RecordMessageSent(backend, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[backend]++
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, kind)
}

func (m *fakeMetrics) RecordLastValue(string, float64) {}
func (m *fakeMetrics) RecordLatency(string, float64)   {}

type fakeSink struct {
	mu     sync.Mutex
	events []models.ReadingEvent
}

func (s *fakeSink) Broadcast(ev models.ReadingEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *fakeSink) ofType(t string) []models.ReadingEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ReadingEvent
	for _, ev := range s.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type fakePublisher struct {
	published []*models.Reading
	err       error
}

func (p *fakePublisher) Publish(ctx context.Context, r *models.Reading) error {
	return p.PublishBatch(ctx, []*models.Reading{r})
}

func (p *fakePublisher) PublishBatch(_ context.Context, rs []*models.Reading) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, rs...)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) ListReadings(context.Context, domrepo.ReadingQuery) ([]models.Reading, error) {
	return nil, errStoreDown
}

func (failingStore) ListNames(context.Context, int64) ([]string, error) { return nil, errStoreDown }

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func rd(user int64, name string, v float64, day int) *models.Reading {
	return &models.Reading{UserID: user, Name: name, Value: v, RecordedAt: day0.AddDate(0, 0, day)}
}

func seededStore(rs ...*models.Reading) *repository.MemoryStore {
	s := repository.NewMemoryStore()
	for i, r := range rs {
		if r.ID == "" {
			r.ID = r.Name + "-" + string(rune('a'+i))
		}
	}
	_ = s.StoreBatch(context.Background(), rs)
	return s
}

func newAnalytics(store domrepo.ReadingStore) *BiomarkerAnalytics {
	return NewBiomarkerAnalytics(store, analytics.NewTrendForecaster(), analytics.NewRuleRiskScorer(), analytics.NewZScoreDetector(), 50000)
}
