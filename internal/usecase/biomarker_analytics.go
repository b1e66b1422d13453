package usecase

import (
	"context"
	"fmt"
	"slices"
	"time"

	"LabPulse/internal/domain/models"
	domrepo "LabPulse/internal/domain/repository"
	domsvc "LabPulse/internal/domain/service"
	appmetrics "LabPulse/internal/service/metrics"
)

// BiomarkerAnalytics loads one user's readings in the order each engine
// expects and runs the engine on them.
type BiomarkerAnalytics struct {
	store       domrepo.ReadingStore
	forecaster  domsvc.Forecaster
	scorer      domsvc.RiskScorer
	detector    domsvc.AnomalyDetector
	maxReadings int
}

func NewBiomarkerAnalytics(store domrepo.ReadingStore, forecaster domsvc.Forecaster, scorer domsvc.RiskScorer, detector domsvc.AnomalyDetector, maxReadings int) *BiomarkerAnalytics {
	return &BiomarkerAnalytics{
		store:       store,
		forecaster:  forecaster,
		scorer:      scorer,
		detector:    detector,
		maxReadings: maxReadings,
	}
}

// List returns readings ascending by recorded_at, optionally filtered by a
// case-insensitive name substring.
func (a *BiomarkerAnalytics) List(ctx context.Context, userID int64, name string, limit int) ([]models.Reading, error) {
	if limit <= 0 || (a.maxReadings > 0 && limit > a.maxReadings) {
		limit = a.maxReadings
	}
	rs, err := a.newest(ctx, domrepo.ReadingQuery{
		UserID:       userID,
		NameContains: name,
		Order:        domrepo.OrderAsc,
		Limit:        limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	return rs, nil
}

// Names returns the user's distinct biomarker names.
func (a *BiomarkerAnalytics) Names(ctx context.Context, userID int64) ([]string, error) {
	names, err := a.store.ListNames(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list names: %w", err)
	}
	return names, nil
}

// Forecast fits a trend over every reading whose name contains name. Fewer
// than two readings yields analytics.ErrInsufficientData.
func (a *BiomarkerAnalytics) Forecast(ctx context.Context, userID int64, name string) (models.ForecastResult, error) {
	defer observe("forecast", time.Now())
	rs, err := a.load(ctx, userID, name, domrepo.OrderAsc)
	if err != nil {
		return models.ForecastResult{}, err
	}
	return a.forecaster.Forecast(rs)
}

// RiskScores scores the newest reading of each marker. Readings are loaded
// newest first, so the most recently measured name wins a synonym tie.
func (a *BiomarkerAnalytics) RiskScores(ctx context.Context, userID int64) (models.RiskResult, error) {
	defer observe("risk", time.Now())
	rs, err := a.load(ctx, userID, "", domrepo.OrderDesc)
	if err != nil {
		return models.RiskResult{}, err
	}
	return a.scorer.Score(rs), nil
}

// Anomalies flags outliers within each biomarker's own history.
func (a *BiomarkerAnalytics) Anomalies(ctx context.Context, userID int64) ([]models.AnomalyFlag, error) {
	defer observe("anomalies", time.Now())
	rs, err := a.load(ctx, userID, "", domrepo.OrderAsc)
	if err != nil {
		return nil, err
	}
	flags := a.detector.Detect(rs)
	for _, f := range flags {
		appmetrics.AnomaliesFlagged.WithLabelValues(f.Severity).Inc()
	}
	return flags, nil
}

func (a *BiomarkerAnalytics) load(ctx context.Context, userID int64, name string, order domrepo.Order) ([]models.Reading, error) {
	rs, err := a.newest(ctx, domrepo.ReadingQuery{
		UserID:       userID,
		NameContains: name,
		Order:        order,
		Limit:        a.maxReadings,
	})
	if err != nil {
		return nil, fmt.Errorf("load readings: %w", err)
	}
	return rs, nil
}

// newest applies a row cap to the most recent readings. Ascending capped
// queries run descending and are flipped back.
func (a *BiomarkerAnalytics) newest(ctx context.Context, q domrepo.ReadingQuery) ([]models.Reading, error) {
	if q.Limit <= 0 || q.Order != domrepo.OrderAsc {
		return a.store.ListReadings(ctx, q)
	}
	q.Order = domrepo.OrderDesc
	rs, err := a.store.ListReadings(ctx, q)
	if err != nil {
		return nil, err
	}
	slices.Reverse(rs)
	return rs, nil
}

func observe(endpoint string, start time.Time) {
	appmetrics.AnalyticsLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
