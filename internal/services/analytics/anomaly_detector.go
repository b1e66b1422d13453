package analytics

import (
	"math"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/stat"

	"LabPulse/internal/domain/models"
	domsvc "LabPulse/internal/domain/service"
	"LabPulse/internal/services/features"
)

const (
	minGroupSize  = 3
	flagZ         = 2.5
	highSeverityZ = 3.0
)

// ZScoreDetector flags readings whose population z-score within their
// biomarker group exceeds flagZ. The tested reading is part of its own
// group's mean and std.
type ZScoreDetector struct{}

func NewZScoreDetector() *ZScoreDetector { return &ZScoreDetector{} }

func (d *ZScoreDetector) Detect(readings []models.Reading) []models.AnomalyFlag {
	flags := []models.AnomalyFlag{}
	groups := features.GroupByName(readings)
	for pair := groups.Oldest(); pair != nil; pair = pair.Next() {
		items := pair.Value
		if len(items) < minGroupSize {
			continue
		}
		mean, std := stat.PopMeanStdDev(features.Values(items), nil)
		if std == 0 {
			continue
		}
		for _, r := range items {
			z := math.Abs(r.Value-mean) / std
			severity, flagged := classify(z)
			if !flagged {
				continue
			}
			flags = append(flags, models.AnomalyFlag{
				BiomarkerID: r.ID,
				Name:        pair.Key,
				Value:       r.Value,
				ZScore:      scalar.RoundEven(z, 2),
				RecordedAt:  r.RecordedAt,
				Severity:    severity,
			})
		}
	}
	return flags
}

// classify maps a z-score to a severity. Both thresholds are strict.
func classify(z float64) (string, bool) {
	switch {
	case z > highSeverityZ:
		return models.SeverityHigh, true
	case z > flagZ:
		return models.SeverityMedium, true
	default:
		return "", false
	}
}

var _ domsvc.AnomalyDetector = (*ZScoreDetector)(nil)
