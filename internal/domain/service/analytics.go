package service

import "LabPulse/internal/domain/models"

// Forecaster projects a single biomarker's trend. Readings must share one name
// and be sorted ascending by RecordedAt.
type Forecaster interface {
	Forecast(readings []models.Reading) (models.ForecastResult, error)
}

// RiskScorer derives composite risk scores from the latest value of each biomarker.
type RiskScorer interface {
	Score(readings []models.Reading) models.RiskResult
}

// AnomalyDetector flags readings that deviate from their biomarker group.
type AnomalyDetector interface {
	Detect(readings []models.Reading) []models.AnomalyFlag
}
