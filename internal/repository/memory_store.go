package repository

import (
	"context"
	"sort"
	"sync"

	"LabPulse/internal/domain/models"
	domrepo "LabPulse/internal/domain/repository"
)

// MemoryStore keeps readings in process. It serves as both Storage and
// ReadingStore for the memory backend, the CLI and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	byUser map[int64][]models.Reading
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byUser: make(map[int64][]models.Reading)}
}

func (s *MemoryStore) Init(context.Context) error { return nil }

func (s *MemoryStore) Store(ctx context.Context, r *models.Reading) error {
	return s.StoreBatch(ctx, []*models.Reading{r})
}

func (s *MemoryStore) StoreBatch(_ context.Context, readings []*models.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range readings {
		if r == nil {
			continue
		}
		s.byUser[r.UserID] = append(s.byUser[r.UserID], *r)
	}
	return nil
}

// ListReadings filters by name and orders by recorded_at; equal timestamps
// keep insertion order.
func (s *MemoryStore) ListReadings(_ context.Context, q domrepo.ReadingQuery) ([]models.Reading, error) {
	s.mu.RLock()
	src := s.byUser[q.UserID]
	out := make([]models.Reading, 0, len(src))
	for _, r := range src {
		if q.MatchesName(r.Name) {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	desc := q.Order == domrepo.OrderDesc
	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return out[i].RecordedAt.After(out[j].RecordedAt)
		}
		return out[i].RecordedAt.Before(out[j].RecordedAt)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// ListNames returns distinct names ordered by their earliest recorded_at.
func (s *MemoryStore) ListNames(ctx context.Context, userID int64) ([]string, error) {
	rs, err := s.ListReadings(ctx, domrepo.ReadingQuery{UserID: userID, Order: domrepo.OrderAsc})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(rs))
	names := make([]string, 0)
	for _, r := range rs {
		if _, ok := seen[r.Name]; ok {
			continue
		}
		seen[r.Name] = struct{}{}
		names = append(names, r.Name)
	}
	return names, nil
}

// Len returns the number of stored readings across users.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rs := range s.byUser {
		n += len(rs)
	}
	return n
}

func (s *MemoryStore) Health(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

var (
	_ domrepo.Storage      = (*MemoryStore)(nil)
	_ domrepo.ReadingStore = (*MemoryStore)(nil)
)
