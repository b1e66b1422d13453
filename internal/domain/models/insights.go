package models

import "time"

// Insights is a consolidated view of every analytics result for one user.
// Parts that failed are reported in Errors instead of failing the whole view.
type Insights struct {
	UserID      int64                     `json:"user_id"`
	GeneratedAt time.Time                 `json:"generated_at"`
	Risk        *RiskResult               `json:"risk,omitempty"`
	Anomalies   []AnomalyFlag             `json:"anomalies,omitempty"`
	Forecasts   map[string]ForecastResult `json:"forecasts,omitempty"`
	Errors      map[string]string         `json:"errors,omitempty"`
}
