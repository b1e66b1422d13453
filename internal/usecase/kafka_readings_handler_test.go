package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LabPulse/internal/domain/models"
	"LabPulse/internal/repository"
)

func TestKafkaReadingsHandler(t *testing.T) {
	store := repository.NewMemoryStore()
	sink := &fakeSink{}
	m := newFakeMetrics()
	h := NewKafkaReadingsHandler("readings", store, m, NewIngestFanout(sink, nil, nil, nil, nil), nil)
	assert.Equal(t, "readings", h.Topic())

	r := rd(3, "LDL", 131, 0)
	r.ID = "r-1"
	b, err := json.Marshal(models.NewReadingEvent(r))
	require.NoError(t, err)

	require.NoError(t, h.Handle(context.Background(), b))
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 1, m.sent["consumer"])
	require.Len(t, sink.ofType(models.EventReading), 1)

	t.Run("anomaly events are skipped", func(t *testing.T) {
		b, err := json.Marshal(models.NewAnomalyEvent(3, models.AnomalyFlag{BiomarkerID: "r-1"}))
		require.NoError(t, err)
		require.NoError(t, h.Handle(context.Background(), b))
		assert.Equal(t, 1, store.Len())
	})

	t.Run("malformed payload", func(t *testing.T) {
		require.Error(t, h.Handle(context.Background(), []byte("{not json")))
		assert.Contains(t, m.errors, "consumer_unmarshal")
	})
}
