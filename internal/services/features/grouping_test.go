package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LabPulse/internal/domain/models"
)

var base = time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

func reading(id, name string, v float64, day int) models.Reading {
	return models.Reading{ID: id, Name: name, Value: v, RecordedAt: base.AddDate(0, 0, day)}
}

func TestGroupByNameKeepsFirstSeenOrder(t *testing.T) {
	groups := GroupByName([]models.Reading{
		reading("1", "LDL", 100, 0),
		reading("2", "HbA1c", 5.1, 0),
		reading("3", "LDL", 120, 1),
		reading("4", "ldl", 90, 2),
	})

	require.Equal(t, 3, groups.Len())
	var keys []string
	for pair := groups.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	assert.Equal(t, []string{"LDL", "HbA1c", "ldl"}, keys)

	ldl, ok := groups.Get("LDL")
	require.True(t, ok)
	assert.Equal(t, []float64{100, 120}, Values(ldl))
}

func TestLatestByName(t *testing.T) {
	t.Run("newest wins", func(t *testing.T) {
		latest := LatestByName([]models.Reading{
			reading("1", "HDL", 40, 3),
			reading("2", "HDL", 55, 5),
			reading("3", "HDL", 60, 4),
		})
		r, ok := latest.Get("HDL")
		require.True(t, ok)
		assert.Equal(t, "2", r.ID)
	})

	t.Run("tie keeps first seen", func(t *testing.T) {
		latest := LatestByName([]models.Reading{
			reading("1", "HDL", 40, 3),
			reading("2", "HDL", 55, 3),
		})
		r, _ := latest.Get("HDL")
		assert.Equal(t, "1", r.ID)
	})

	t.Run("replacement keeps key position", func(t *testing.T) {
		latest := LatestByName([]models.Reading{
			reading("1", "Glucose", 90, 0),
			reading("2", "LDL", 110, 0),
			reading("3", "Glucose", 95, 1),
		})
		assert.Equal(t, "Glucose", latest.Oldest().Key)
		assert.Equal(t, 95.0, latest.Oldest().Value.Value)
	})
}

func TestLookupValue(t *testing.T) {
	latest := LatestByName([]models.Reading{
		reading("1", "Glucose (random)", 140, 0),
		reading("2", "Fasting Glucose", 99, 0),
		reading("3", "Hemoglobin A1c", 5.9, 0),
	})

	tests := []struct {
		name       string
		candidates []string
		want       float64
		found      bool
	}{
		{"earlier candidate beats grouping order", []string{"fasting glucose", "glucose"}, 99, true},
		{"first name in grouping order", []string{"glucose"}, 140, true},
		{"synonym", []string{"hba1c", "hemoglobin a1c"}, 5.9, true},
		{"case insensitive", []string{"HEMOGLOBIN"}, 5.9, true},
		{"missing", []string{"ldl"}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := LookupValue(latest, tt.candidates...)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestNames(t *testing.T) {
	names := Names([]models.Reading{
		reading("1", "TSH", 1, 0),
		reading("2", "LDL", 1, 0),
		reading("3", "TSH", 2, 1),
	})
	assert.Equal(t, []string{"TSH", "LDL"}, names)
	assert.Empty(t, Names(nil))
}
