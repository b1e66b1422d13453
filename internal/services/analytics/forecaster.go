package analytics

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/stat"

	"LabPulse/internal/domain/models"
	domsvc "LabPulse/internal/domain/service"
)

// ErrInsufficientData is returned when a series is too short to fit a trend.
var ErrInsufficientData = errors.New("need at least 2 data points for forecast")

const (
	minForecastPoints = 2
	forecastHorizon   = 3
)

// TrendForecaster fits a least-squares line to one biomarker's history and
// projects it forecastHorizon average gaps ahead.
type TrendForecaster struct{}

func NewTrendForecaster() *TrendForecaster { return &TrendForecaster{} }

// Forecast expects readings of a single biomarker sorted ascending by time.
func (f *TrendForecaster) Forecast(readings []models.Reading) (models.ForecastResult, error) {
	n := len(readings)
	if n < minForecastPoints {
		return models.ForecastResult{}, ErrInsufficientData
	}

	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, r := range readings {
		xs[i] = epochSeconds(r.RecordedAt)
		ys[i] = r.Value
	}

	// x is shifted to start at zero for conditioning.
	xMin := floats.Min(xs)
	xNorm := make([]float64, n)
	for i, x := range xs {
		xNorm[i] = x - xMin
	}
	intercept, slope := fitLine(xNorm, ys)

	gap := (xs[n-1] - xs[0]) / float64(max(n-1, 1))
	last := readings[n-1].RecordedAt
	points := make([]models.ForecastPoint, 0, forecastHorizon)
	for i := 1; i <= forecastHorizon; i++ {
		offset := gap * float64(i)
		x := xs[n-1] + offset - xMin
		points = append(points, models.ForecastPoint{
			Date:  last.Add(secondsToDuration(offset)),
			Value: scalar.RoundEven(slope*x+intercept, 2),
		})
	}

	historical := make([]models.ForecastPoint, n)
	for i, r := range readings {
		historical[i] = models.ForecastPoint{Date: r.RecordedAt, Value: r.Value}
	}

	refMax := latestBound(readings, func(r models.Reading) *float64 { return r.RefMax })
	refMin := latestBound(readings, func(r models.Reading) *float64 { return r.RefMin })

	return models.ForecastResult{
		Historical: historical,
		Forecast:   points,
		Slope:      scalar.RoundEven(slope, 6),
		Warning:    breachWarning(points, refMin, refMax),
	}, nil
}

// fitLine returns the OLS intercept and slope. With no spread in x the
// minimum-norm solution applies: a flat line through mean(y).
func fitLine(x, y []float64) (intercept, slope float64) {
	if floats.Max(x) == floats.Min(x) {
		return stat.Mean(y, nil), 0
	}
	return stat.LinearRegression(x, y, nil, false)
}

// latestBound scans newest to oldest for the first non-nil bound.
func latestBound(readings []models.Reading, bound func(models.Reading) *float64) *float64 {
	for i := len(readings) - 1; i >= 0; i-- {
		if b := bound(readings[i]); b != nil {
			return b
		}
	}
	return nil
}

// breachWarning reports the first projected upper breach, else the first
// lower breach. At most one warning is produced.
func breachWarning(points []models.ForecastPoint, refMin, refMax *float64) *string {
	if refMax != nil {
		for _, p := range points {
			if p.Value > *refMax {
				w := fmt.Sprintf("Forecast suggests value may exceed upper reference limit (%s)", formatBound(*refMax))
				return &w
			}
		}
	}
	if refMin != nil {
		for _, p := range points {
			if p.Value < *refMin {
				w := fmt.Sprintf("Forecast suggests value may drop below lower reference limit (%s)", formatBound(*refMin))
				return &w
			}
		}
	}
	return nil
}

func formatBound(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func epochSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

var _ domsvc.Forecaster = (*TrendForecaster)(nil)
