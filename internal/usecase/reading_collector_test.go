package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LabPulse/internal/domain/models"
	domrepo "LabPulse/internal/domain/repository"
	mid "LabPulse/internal/middleware"
	"LabPulse/internal/repository"
	"LabPulse/pkg/config"
)

func newCollector(store *repository.MemoryStore, m *fakeMetrics) *ReadingCollector {
	proc := NewReadingProcessor(nil, store, m, nil, config.BackendMemory, nil)
	return NewReadingCollector(mid.NewIngestPipeline(proc, m, nil, mid.WithMaxRPS(0)), m)
}

func TestReadingCollectorHandle(t *testing.T) {
	v := 5.9
	job := models.IngestJob{
		UserID: 4,
		Readings: []models.ReadingInput{
			{Name: "HbA1c", Value: &v, RecordedAt: day0},
			{Name: "Glucose", Value: &v},
		},
	}
	raw, err := json.Marshal(job)
	require.NoError(t, err)

	store := repository.NewMemoryStore()
	m := newFakeMetrics()
	c := newCollector(store, m)
	c.now = func() time.Time { return day0.AddDate(0, 0, 1) }

	require.NoError(t, c.Handle(context.Background(), raw))
	rs, err := store.ListReadings(context.Background(), domrepo.ReadingQuery{UserID: 4, Order: domrepo.OrderAsc})
	require.NoError(t, err)
	require.Len(t, rs, 2)
	assert.Equal(t, day0.AddDate(0, 0, 1), rs[1].RecordedAt, "missing time defaults to now")
	assert.NotEmpty(t, rs[0].ID)
}

func TestReadingCollectorDropsInvalidJobs(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		kind    string
	}{
		{"not json", `{`, "collector_decode"},
		{"no user", `{"readings":[{"name":"LDL","value":1}]}`, "collector_empty"},
		{"no readings", `{"user_id":1}`, "collector_empty"},
		{"missing value", `{"user_id":1,"readings":[{"name":"LDL"}]}`, "collector_invalid"},
		{"empty name", `{"user_id":1,"readings":[{"name":"","value":1}]}`, "collector_invalid"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := repository.NewMemoryStore()
			m := newFakeMetrics()
			c := newCollector(store, m)

			require.NoError(t, c.Handle(context.Background(), json.RawMessage(tc.payload)))
			assert.Zero(t, store.Len())
			assert.Contains(t, m.errors, tc.kind)
		})
	}
}
