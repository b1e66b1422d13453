package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LabPulse/pkg/logger"
)

type sampleRequest struct {
	Name  string `query:"name" validate:"required,max=8"`
	Limit int    `query:"limit" default:"10" validate:"gte=1,lte=100"`
}

func newContext(method, target string, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestReadAndValidateRequest(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		wantErrs  []string
		wantLimit int
	}{
		{name: "defaults applied", target: "/?name=ldl", wantLimit: 10},
		{name: "explicit limit", target: "/?name=ldl&limit=5", wantLimit: 5},
		{name: "missing name", target: "/", wantErrs: []string{"ERR_REQUIRED"}},
		{name: "limit too large", target: "/?name=ldl&limit=500", wantErrs: []string{"ERR_LTE"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newContext(http.MethodGet, tt.target, "")
			var req sampleRequest
			errs := ReadAndValidateRequest(c, &req)
			if len(tt.wantErrs) == 0 {
				require.Nil(t, errs)
				assert.Equal(t, tt.wantLimit, req.Limit)
				return
			}
			verrs, ok := errs.([]ValidationError)
			require.True(t, ok)
			codes := make([]string, 0, len(verrs))
			for _, v := range verrs {
				codes = append(codes, v.Code)
			}
			assert.Equal(t, tt.wantErrs, codes)
		})
	}
}

func TestValidationUsesWireFieldNames(t *testing.T) {
	c, _ := newContext(http.MethodGet, "/", "")
	var req sampleRequest
	verrs := ReadAndValidateRequest(c, &req).([]ValidationError)
	require.Len(t, verrs, 1)
	assert.Equal(t, "name", verrs[0].Field)
	assert.Equal(t, "name is required", verrs[0].Message)
}

func TestDataResponseWritesStatus(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/", "")
	require.NoError(t, DataResponse(c, http.StatusTooManyRequests, "slow down"))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	var body APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusTooManyRequests, body.Status)
	assert.Equal(t, "Too Many Requests", body.Message)
	assert.Equal(t, "slow down", body.Data)
}

func TestAppErrorResponse(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/", "")
	err := BadRequestError("Need at least 2 data points for forecast")
	require.NoError(t, AppErrorResponse(c, err))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Need at least 2 data points for forecast")

	c, rec = newContext(http.MethodGet, "/", "")
	require.NoError(t, AppErrorResponse(c, errors.New("boom")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestUserID(t *testing.T) {
	tests := []struct {
		name   string
		header string
		target string
		want   int64
		status int
	}{
		{name: "header", header: "42", target: "/", want: 42},
		{name: "query fallback", target: "/?user_id=7", want: 7},
		{name: "missing", target: "/", status: http.StatusUnauthorized},
		{name: "garbage", header: "abc", target: "/", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newContext(http.MethodGet, tt.target, "")
			if tt.header != "" {
				c.Request().Header.Set(HeaderUserID, tt.header)
			}
			got, err := UserID(c)
			if tt.status != 0 {
				var appErr *AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, tt.status, appErr.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ping", func(c echo.Context) error { return SuccessResponse(c, "pong") })
	e.GET("/panic", func(c echo.Context) error { panic("kaboom") })
}

func TestServerRoutesAndHealth(t *testing.T) {
	s := NewServer(logger.Nop(), []Handler{pingHandler{}}, WithMetricsPath(""))
	s.AddHealthCheck("store", func(context.Context) error { return nil })

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pong")

	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	s.AddHealthCheck("broker", func(context.Context) error { return errors.New("down") })
	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "down")

	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestClientGetData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "9", r.Header.Get(HeaderUserID))
		assert.Equal(t, "/api/biomarkers/names", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":200,"message":"OK","data":["HbA1c","LDL"]}`))
	}))
	defer srv.Close()

	cli := NewClient(WithBaseURL(srv.URL), WithHeader(HeaderUserID, "9"))
	var names []string
	require.NoError(t, cli.GetData(context.Background(), "/api/biomarkers/names", nil, &names))
	assert.Equal(t, []string{"HbA1c", "LDL"}, names)
}
