package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"LabPulse/internal/domain/models"
	domrepo "LabPulse/internal/domain/repository"
	"LabPulse/internal/services/features"
)

// InsightsUseCase assembles risk, anomalies and per-marker forecasts
// concurrently. A failing part is reported in Errors; the rest still return.
type InsightsUseCase struct {
	analytics *BiomarkerAnalytics
	timeout   time.Duration
}

func NewInsightsUseCase(analytics *BiomarkerAnalytics, timeout time.Duration) *InsightsUseCase {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &InsightsUseCase{analytics: analytics, timeout: timeout}
}

type GetInsightsParams struct {
	UserID int64
	// MinPoints is the reading count a marker needs to be forecast.
	MinPoints int
}

func (uc *InsightsUseCase) GetInsights(ctx context.Context, p GetInsightsParams) (*models.Insights, error) {
	if p.MinPoints < 2 {
		p.MinPoints = 2
	}

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	res := &models.Insights{
		UserID:      p.UserID,
		GeneratedAt: time.Now().UTC(),
		Errors:      map[string]string{},
	}

	type item struct {
		name string
		val  interface{}
		err  error
	}
	ch := make(chan item, 3)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := uc.analytics.RiskScores(ctx, p.UserID)
		ch <- item{"risk", v, err}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := uc.analytics.Anomalies(ctx, p.UserID)
		ch <- item{"anomalies", v, err}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := uc.forecasts(ctx, p.UserID, p.MinPoints)
		ch <- item{"forecasts", v, err}
	}()

	go func() { wg.Wait(); close(ch) }()

	for it := range ch {
		if it.err != nil {
			res.Errors[it.name] = it.err.Error()
			continue
		}
		switch it.name {
		case "risk":
			v := it.val.(models.RiskResult)
			res.Risk = &v
		case "anomalies":
			res.Anomalies = it.val.([]models.AnomalyFlag)
		case "forecasts":
			fr := it.val.(forecastSet)
			res.Forecasts = fr.results
			for name, msg := range fr.errs {
				res.Errors["forecast:"+name] = msg
			}
		}
	}

	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	return res, nil
}

type forecastSet struct {
	results map[string]models.ForecastResult
	errs    map[string]string
}

// forecasts fits each exact-name group with at least minPoints readings.
func (uc *InsightsUseCase) forecasts(ctx context.Context, userID int64, minPoints int) (forecastSet, error) {
	rs, err := uc.analytics.load(ctx, userID, "", domrepo.OrderAsc)
	if err != nil {
		return forecastSet{}, err
	}
	out := forecastSet{results: map[string]models.ForecastResult{}, errs: map[string]string{}}
	for pair := features.GroupByName(rs).Oldest(); pair != nil; pair = pair.Next() {
		if len(pair.Value) < minPoints {
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("forecasts: %w", err)
		}
		fr, err := uc.analytics.forecaster.Forecast(pair.Value)
		if err != nil {
			out.errs[pair.Key] = err.Error()
			continue
		}
		out.results[pair.Key] = fr
	}
	return out, nil
}
