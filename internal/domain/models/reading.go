package models

import (
	"time"

	"github.com/google/uuid"
)

// Reading is one lab measurement of a single biomarker for one user.
type Reading struct {
	ID         string    `json:"id"`
	UserID     int64     `json:"user_id"`
	ReportID   string    `json:"report_id,omitempty"`
	Name       string    `json:"name"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	RefMin     *float64  `json:"ref_min"`
	RefMax     *float64  `json:"ref_max"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Ref returns a pointer to v, for optional reference bounds.
func Ref(v float64) *float64 { return &v }

// Event types carried by ReadingEvent.
const (
	EventReading = "reading"
	EventAnomaly = "anomaly"
)

// ReadingEvent is the envelope used on the readings topic and the live stream.
type ReadingEvent struct {
	EventID   string       `json:"event_id"`
	Type      string       `json:"type"`
	UserID    int64        `json:"user_id"`
	Reading   *Reading     `json:"reading,omitempty"`
	Anomaly   *AnomalyFlag `json:"anomaly,omitempty"`
	EmittedAt time.Time    `json:"emitted_at"`
}

// NewReadingEvent wraps an ingested reading.
func NewReadingEvent(r *Reading) ReadingEvent {
	return ReadingEvent{
		EventID:   uuid.NewString(),
		Type:      EventReading,
		UserID:    r.UserID,
		Reading:   r,
		EmittedAt: time.Now().UTC(),
	}
}

// NewAnomalyEvent wraps a flag raised for userID.
func NewAnomalyEvent(userID int64, f AnomalyFlag) ReadingEvent {
	return ReadingEvent{
		EventID:   uuid.NewString(),
		Type:      EventAnomaly,
		UserID:    userID,
		Anomaly:   &f,
		EmittedAt: time.Now().UTC(),
	}
}
