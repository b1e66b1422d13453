package repository

import (
	"context"

	"LabPulse/internal/domain/models"
)

// ReadingStore provides read-only, user-scoped access to readings for analytics.
type ReadingStore interface {
	ListReadings(ctx context.Context, q ReadingQuery) ([]models.Reading, error)
	// ListNames returns distinct biomarker names in first-recorded order.
	ListNames(ctx context.Context, userID int64) ([]string, error)
}
