package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LabPulse/internal/domain/models"
	domrepo "LabPulse/internal/domain/repository"
)

func seed(t *testing.T) *MemoryStore {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	require.NoError(t, s.StoreBatch(context.Background(), []*models.Reading{
		{ID: "a", UserID: 1, Name: "LDL Cholesterol", Value: 130, RecordedAt: base.AddDate(0, 2, 0)},
		{ID: "b", UserID: 1, Name: "HbA1c", Value: 5.9, RecordedAt: base},
		{ID: "c", UserID: 1, Name: "ldl", Value: 120, RecordedAt: base.AddDate(0, 1, 0)},
		{ID: "d", UserID: 2, Name: "HbA1c", Value: 7.1, RecordedAt: base},
		{ID: "e", UserID: 1, Name: "HbA1c", Value: 6.1, RecordedAt: base.AddDate(0, 2, 0)},
	}))
	return s
}

func ids(rs []models.Reading) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestMemoryStoreListReadings(t *testing.T) {
	s := seed(t)
	ctx := context.Background()

	tests := []struct {
		name string
		q    domrepo.ReadingQuery
		want []string
	}{
		{name: "ascending all", q: domrepo.ReadingQuery{UserID: 1}, want: []string{"b", "c", "a", "e"}},
		{name: "descending keeps insertion order on ties", q: domrepo.ReadingQuery{UserID: 1, Order: domrepo.OrderDesc}, want: []string{"a", "e", "c", "b"}},
		{name: "case-insensitive substring", q: domrepo.ReadingQuery{UserID: 1, NameContains: "LDL"}, want: []string{"c", "a"}},
		{name: "limit", q: domrepo.ReadingQuery{UserID: 1, Limit: 2}, want: []string{"b", "c"}},
		{name: "other user isolated", q: domrepo.ReadingQuery{UserID: 2}, want: []string{"d"}},
		{name: "unknown user", q: domrepo.ReadingQuery{UserID: 99}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListReadings(ctx, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestMemoryStoreListNames(t *testing.T) {
	s := seed(t)
	names, err := s.ListNames(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"HbA1c", "ldl", "LDL Cholesterol"}, names)
	assert.Equal(t, 5, s.Len())
}

func TestMemoryStoreCopiesOnStore(t *testing.T) {
	s := NewMemoryStore()
	r := &models.Reading{ID: "x", UserID: 3, Name: "TSH", Value: 2}
	require.NoError(t, s.Store(context.Background(), r))
	r.Value = 99

	got, err := s.ListReadings(context.Background(), domrepo.ReadingQuery{UserID: 3})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2.0, got[0].Value)
}
