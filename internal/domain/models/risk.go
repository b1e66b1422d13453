package models

// RiskFactor is one biomarker input and the points it added to a score.
type RiskFactor struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Points int     `json:"points"`
}

// RiskCategory is a capped composite score with its contributing factors.
type RiskCategory struct {
	Score   int          `json:"score"`
	Factors []RiskFactor `json:"factors"`
}

type RiskResult struct {
	Diabetes       RiskCategory `json:"diabetes"`
	Cardiovascular RiskCategory `json:"cardiovascular"`
}
