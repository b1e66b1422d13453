package models

import "time"

const (
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// AnomalyFlag marks a reading that deviates from its biomarker group.
type AnomalyFlag struct {
	BiomarkerID string    `json:"biomarker_id"`
	Name        string    `json:"name"`
	Value       float64   `json:"value"`
	ZScore      float64   `json:"z_score"` // |value-mean|/std, 2 decimals
	RecordedAt  time.Time `json:"recorded_at"`
	Severity    string    `json:"severity"`
}
