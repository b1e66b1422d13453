package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LabPulse/internal/services/analytics"
)

func TestForecastNeedsTwoPoints(t *testing.T) {
	a := newAnalytics(seededStore(rd(1, "HbA1c", 5.6, 0), rd(2, "HbA1c", 5.8, 1)))
	_, err := a.Forecast(context.Background(), 1, "hba1c")
	require.ErrorIs(t, err, analytics.ErrInsufficientData)
}

func TestForecastMatchesNameSubstring(t *testing.T) {
	a := newAnalytics(seededStore(
		rd(1, "HbA1c", 5.6, 0),
		rd(1, "LDL", 120, 0),
		rd(1, "HbA1c", 5.8, 30),
		rd(1, "HbA1c", 6.0, 60),
	))
	res, err := a.Forecast(context.Background(), 1, "a1c")
	require.NoError(t, err)
	assert.Len(t, res.Historical, 3)
	assert.Len(t, res.Forecast, 3)
	assert.Greater(t, res.Forecast[0].Value, 6.0)
	assert.Greater(t, res.Forecast[2].Value, res.Forecast[0].Value)
}

func TestForecastKeepsNewestReadingsWhenCapped(t *testing.T) {
	store := seededStore(
		rd(1, "LDL", 100, 0),
		rd(1, "LDL", 110, 30),
		rd(1, "LDL", 120, 60),
		rd(1, "LDL", 130, 90),
		rd(1, "LDL", 140, 120),
	)
	a := NewBiomarkerAnalytics(store, analytics.NewTrendForecaster(), analytics.NewRuleRiskScorer(), analytics.NewZScoreDetector(), 3)

	res, err := a.Forecast(context.Background(), 1, "LDL")
	require.NoError(t, err)
	require.Len(t, res.Historical, 3)
	assert.Equal(t, 120.0, res.Historical[0].Value)
	assert.Equal(t, 140.0, res.Historical[2].Value)
	assert.True(t, res.Historical[0].Date.Before(res.Historical[2].Date))

	rs, err := a.List(context.Background(), 1, "", 2)
	require.NoError(t, err)
	require.Len(t, rs, 2)
	assert.Equal(t, []float64{130, 140}, []float64{rs[0].Value, rs[1].Value})
}

func TestRiskScoresUseNewestReading(t *testing.T) {
	a := newAnalytics(seededStore(
		rd(1, "HbA1c", 5.0, 0),
		rd(1, "HbA1c", 6.8, 90),
		rd(1, "LDL", 165, 10),
	))
	res, err := a.RiskScores(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 50, res.Diabetes.Score)
	assert.Equal(t, 30, res.Cardiovascular.Score)
}

func TestRiskScoresPreferMostRecentlyMeasuredSynonym(t *testing.T) {
	// both names contain "glucose"; the newest group comes first.
	a := newAnalytics(seededStore(
		rd(1, "Glucose", 130, 0),
		rd(1, "Glucose, Serum", 90, 30),
	))
	res, err := a.RiskScores(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, res.Diabetes.Factors, 1)
	assert.Equal(t, 90.0, res.Diabetes.Factors[0].Value)
	assert.Zero(t, res.Diabetes.Score)
}

func TestAnomaliesScopedToUser(t *testing.T) {
	store := seededStore()
	for i := 0; i < 10; i++ {
		r := rd(1, "TSH", 2, i)
		r.ID = "tsh-" + string(rune('a'+i))
		require.NoError(t, store.Store(context.Background(), r))
	}
	spike := rd(1, "TSH", 9, 20)
	spike.ID = "tsh-spike"
	require.NoError(t, store.Store(context.Background(), spike))
	require.NoError(t, store.Store(context.Background(), rd(2, "TSH", 50, 0)))

	a := newAnalytics(store)
	flags, err := a.Anomalies(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, "tsh-spike", flags[0].BiomarkerID)
	assert.Equal(t, "high", flags[0].Severity)

	flags, err = a.Anomalies(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, flags)
}

func TestAnalyticsWrapsStoreErrors(t *testing.T) {
	a := newAnalytics(failingStore{})
	_, err := a.RiskScores(context.Background(), 1)
	require.ErrorIs(t, err, errStoreDown)
	_, err = a.Names(context.Background(), 1)
	require.ErrorIs(t, err, errStoreDown)
}

func TestListCapsLimit(t *testing.T) {
	store := seededStore(rd(1, "A", 1, 0), rd(1, "B", 2, 1), rd(1, "C", 3, 2))
	a := NewBiomarkerAnalytics(store, analytics.NewTrendForecaster(), analytics.NewRuleRiskScorer(), analytics.NewZScoreDetector(), 2)
	rs, err := a.List(context.Background(), 1, "", 100)
	require.NoError(t, err)
	assert.Len(t, rs, 2)
}
