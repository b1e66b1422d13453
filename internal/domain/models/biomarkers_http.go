package models

import (
	"time"

	xutil "LabPulse/pkg/util"
)

// Requests for biomarker HTTP endpoints. Defined in domain for reuse by the CLI.

type ListReadingsRequest struct {
	Name  string `query:"name" json:"name" validate:"max=128"`
	Limit int    `query:"limit" json:"limit" default:"5000" validate:"gte=1,lte=50000"`
}

type ForecastRequest struct {
	Name string `param:"name" json:"name" validate:"required,max=128"`
}

type InsightsRequest struct {
	MinPoints int `query:"min_points" json:"min_points" default:"2" validate:"gte=2,lte=1000"`
}

type ReadingInput struct {
	Name       string    `json:"name" validate:"required,max=128"`
	Value      *float64  `json:"value" validate:"required"`
	Unit       string    `json:"unit" validate:"max=32"`
	RefMin     *float64  `json:"ref_min"`
	RefMax     *float64  `json:"ref_max"`
	RecordedAt time.Time `json:"recorded_at"`
	ReportID   string    `json:"report_id" validate:"max=64"`
}

type IngestRequest struct {
	Readings []ReadingInput `json:"readings" validate:"required,min=1,max=500,dive"`
}

type IngestResponse struct {
	Accepted int      `json:"accepted"`
	IDs      []string `json:"ids"`
}

// ToReading converts the input for userID; a missing recorded_at becomes now
// and the name's whitespace is collapsed.
func (in ReadingInput) ToReading(userID int64, now time.Time) *Reading {
	r := &Reading{
		UserID:     userID,
		ReportID:   in.ReportID,
		Name:       xutil.NormalizeName(in.Name),
		Unit:       in.Unit,
		RefMin:     in.RefMin,
		RefMax:     in.RefMax,
		RecordedAt: in.RecordedAt.UTC(),
	}
	if in.Value != nil {
		r.Value = *in.Value
	}
	if in.RecordedAt.IsZero() {
		r.RecordedAt = now.UTC()
	}
	return r
}

// IngestJob is the payload producers enqueue on the Redis ingest queue.
type IngestJob struct {
	UserID   int64          `json:"user_id" validate:"required,gt=0"`
	Readings []ReadingInput `json:"readings" validate:"required,min=1,max=500,dive"`
}
