package models

import "time"

// ForecastPoint is a dated value, either observed or projected.
type ForecastPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// ForecastResult holds a biomarker trend projection.
type ForecastResult struct {
	Historical []ForecastPoint `json:"historical"`
	Forecast   []ForecastPoint `json:"forecast"`
	Slope      float64         `json:"slope"`
	Warning    *string         `json:"warning"`
}
