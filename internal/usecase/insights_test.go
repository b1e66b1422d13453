package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsightsCombinesEveryPart(t *testing.T) {
	store := seededStore(
		rd(1, "HbA1c", 5.6, 0),
		rd(1, "HbA1c", 6.0, 60),
		rd(1, "HbA1c", 6.6, 120),
		rd(1, "LDL", 140, 10),
	)
	uc := NewInsightsUseCase(newAnalytics(store), time.Second)

	res, err := uc.GetInsights(context.Background(), GetInsightsParams{UserID: 1, MinPoints: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.UserID)
	assert.Nil(t, res.Errors)
	require.NotNil(t, res.Risk)
	assert.Equal(t, 50, res.Risk.Diabetes.Score)
	assert.Empty(t, res.Anomalies)
	require.Contains(t, res.Forecasts, "HbA1c")
	assert.NotContains(t, res.Forecasts, "LDL", "one reading is below min points")
}

func TestInsightsMinPointsFilters(t *testing.T) {
	store := seededStore(rd(1, "HbA1c", 5.6, 0), rd(1, "HbA1c", 6.0, 60))
	uc := NewInsightsUseCase(newAnalytics(store), time.Second)

	res, err := uc.GetInsights(context.Background(), GetInsightsParams{UserID: 1, MinPoints: 3})
	require.NoError(t, err)
	assert.Empty(t, res.Forecasts)
}

func TestInsightsCollectsPartErrors(t *testing.T) {
	uc := NewInsightsUseCase(newAnalytics(failingStore{}), time.Second)

	res, err := uc.GetInsights(context.Background(), GetInsightsParams{UserID: 1})
	require.NoError(t, err)
	assert.Nil(t, res.Risk)
	assert.Len(t, res.Errors, 3)
	for _, part := range []string{"risk", "anomalies", "forecasts"} {
		assert.Contains(t, res.Errors[part], errStoreDown.Error())
	}
}
