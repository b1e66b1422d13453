package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"LabPulse/internal/domain/models"
	domrepo "LabPulse/internal/domain/repository"
	mid "LabPulse/internal/middleware"
	icache "LabPulse/internal/service/cache"
	"LabPulse/internal/service/metrics"
	"LabPulse/internal/service/ratelimit"
	"LabPulse/internal/service/stream"
	"LabPulse/internal/services/analytics"
	"LabPulse/internal/usecase"
	xhttp "LabPulse/pkg/http"
	applogger "LabPulse/pkg/logger"
)

const msgInsufficientData = "Need at least 2 data points for forecast"

// Ingester admits readings into the ingest path.
type Ingester interface {
	ProcessBatch(ctx context.Context, readings []*models.Reading) error
}

// BiomarkersHandler serves the user-scoped biomarker API under /api/biomarkers.
type BiomarkersHandler struct {
	l         *applogger.Logger
	analytics *usecase.BiomarkerAnalytics
	insights  *usecase.InsightsUseCase
	ingest    Ingester
	hub       *stream.Hub
	cache     icache.BytesCache
	cacheTTL  time.Duration
	rl        *ratelimit.Limiter
	now       func() time.Time
}

func NewBiomarkersHandler(
	l *applogger.Logger,
	analytics *usecase.BiomarkerAnalytics,
	insights *usecase.InsightsUseCase,
	ingest Ingester,
	hub *stream.Hub,
) *BiomarkersHandler {
	metrics.Register()
	if l == nil {
		l = applogger.Nop()
	}
	return &BiomarkersHandler{
		l:         l,
		analytics: analytics,
		insights:  insights,
		ingest:    ingest,
		hub:       hub,
		rl:        ratelimit.New(20, 5),
		now:       time.Now,
	}
}

// SetCache enables response caching for analytics endpoints.
func (h *BiomarkersHandler) SetCache(c icache.BytesCache, ttl time.Duration) {
	h.cache = c
	h.cacheTTL = ttl
}

// SetLimiter replaces the per-user rate limiter.
func (h *BiomarkersHandler) SetLimiter(rl *ratelimit.Limiter) { h.rl = rl }

func (h *BiomarkersHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/biomarkers")
	g.GET("", h.List)
	g.POST("", h.Ingest)
	g.GET("/names", h.Names)
	g.GET("/forecast/:name", h.Forecast)
	g.GET("/risk-scores", h.RiskScores)
	g.GET("/anomalies", h.Anomalies)
	g.GET("/insights", h.Insights)
	g.GET("/stream", h.Stream)
}

func (h *BiomarkersHandler) List(c echo.Context) error {
	userID, err := xhttp.UserID(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	req := &models.ListReadingsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rows, err := h.analytics.List(c.Request().Context(), userID, req.Name, req.Limit)
	if err != nil {
		h.l.Error("biomarkers.list error", applogger.Int64("user_id", userID), applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("failed to list readings").WithError(err))
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *BiomarkersHandler) Names(c echo.Context) error {
	userID, err := xhttp.UserID(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	names, err := h.analytics.Names(c.Request().Context(), userID)
	if err != nil {
		h.l.Error("biomarkers.names error", applogger.Int64("user_id", userID), applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("failed to list names").WithError(err))
	}
	return xhttp.SuccessResponse(c, names)
}

func (h *BiomarkersHandler) Forecast(c echo.Context) error {
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return h.cached(c, "forecast", []string{req.Name}, func(ctx context.Context, userID int64) (interface{}, error) {
		return h.analytics.Forecast(ctx, userID, req.Name)
	})
}

func (h *BiomarkersHandler) RiskScores(c echo.Context) error {
	return h.cached(c, "risk", nil, func(ctx context.Context, userID int64) (interface{}, error) {
		return h.analytics.RiskScores(ctx, userID)
	})
}

func (h *BiomarkersHandler) Anomalies(c echo.Context) error {
	return h.cached(c, "anomalies", nil, func(ctx context.Context, userID int64) (interface{}, error) {
		return h.analytics.Anomalies(ctx, userID)
	})
}

func (h *BiomarkersHandler) Insights(c echo.Context) error {
	req := &models.InsightsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return h.cached(c, "insights", []string{strconv.Itoa(req.MinPoints)}, func(ctx context.Context, userID int64) (interface{}, error) {
		return h.insights.GetInsights(ctx, usecase.GetInsightsParams{UserID: userID, MinPoints: req.MinPoints})
	})
}

// Ingest accepts {"readings":[...]}. 201 when stored, 202 when the backend
// failed and the batch was buffered for retry.
func (h *BiomarkersHandler) Ingest(c echo.Context) error {
	userID, err := xhttp.UserID(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	req := &models.IngestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	now := h.now()
	readings := make([]*models.Reading, 0, len(req.Readings))
	for _, in := range req.Readings {
		readings = append(readings, in.ToReading(userID, now))
	}

	err = h.ingest.ProcessBatch(c.Request().Context(), readings)
	resp := &models.IngestResponse{Accepted: len(readings), IDs: make([]string, 0, len(readings))}
	for _, r := range readings {
		resp.IDs = append(resp.IDs, r.ID)
	}

	switch {
	case err == nil:
		return xhttp.DataResponse(c, http.StatusCreated, resp)
	case errors.Is(err, mid.ErrBuffered):
		h.l.Warn("biomarkers.ingest buffered", applogger.Int64("user_id", userID), applogger.Error(err))
		return xhttp.AcceptedResponse(c, resp)
	case errors.Is(err, mid.ErrThrottled):
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("ingest rate exceeded for this biomarker"))
	case errors.Is(err, domrepo.ErrInvalidReading):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithError(err))
	default:
		h.l.Error("biomarkers.ingest error", applogger.Int64("user_id", userID), applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("ingest backend unavailable").WithError(err))
	}
}

// Stream upgrades to a websocket carrying the user's reading and anomaly events.
func (h *BiomarkersHandler) Stream(c echo.Context) error {
	if h.hub == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("live stream is disabled"))
	}
	userID, err := xhttp.UserID(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	h.hub.ServeHTTP(c.Response(), c.Request(), userID)
	return nil
}

// cached rate limits per user and endpoint, then serves the computed result
// from the cache when present.
func (h *BiomarkersHandler) cached(
	c echo.Context,
	endpoint string,
	args []string,
	compute func(ctx context.Context, userID int64) (interface{}, error),
) error {
	userID, err := xhttp.UserID(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	if !h.rl.Allow(fmt.Sprintf("%d:%s", userID, endpoint)) {
		h.l.Warn("biomarkers rate_limited", applogger.String("endpoint", endpoint), applogger.Int64("user_id", userID))
		return xhttp.TooManyRequestsResponse(c)
	}

	key := icache.Key(userID, endpoint, args...)
	ctx := c.Request().Context()
	if h.cache != nil {
		if b, ok, err := h.cache.GetBytes(ctx, key); err != nil {
			h.l.Warn("biomarkers cache_get_error", applogger.String("key", key), applogger.Error(err))
		} else if ok {
			metrics.CacheLookups.WithLabelValues(endpoint, "hit").Inc()
			return xhttp.SuccessResponse(c, json.RawMessage(b))
		}
		metrics.CacheLookups.WithLabelValues(endpoint, "miss").Inc()
	}

	res, err := compute(ctx, userID)
	if err != nil {
		if errors.Is(err, analytics.ErrInsufficientData) {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError(msgInsufficientData).WithError(err))
		}
		metrics.AnalyticsErrors.WithLabelValues(endpoint).Inc()
		h.l.Error("biomarkers."+endpoint+" error", applogger.Int64("user_id", userID), applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("analytics failed").WithError(err))
	}

	b, err := json.Marshal(res)
	if err != nil {
		h.l.Error("biomarkers marshal_error", applogger.String("endpoint", endpoint), applogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	if h.cache != nil && h.cacheTTL > 0 {
		if err := h.cache.SetBytes(ctx, key, b, h.cacheTTL); err != nil {
			h.l.Warn("biomarkers cache_set_error", applogger.String("key", key), applogger.Error(err))
		}
	}
	return xhttp.SuccessResponse(c, json.RawMessage(b))
}

var _ xhttp.Handler = (*BiomarkersHandler)(nil)
