package observability

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(buf *bytes.Buffer, metrics *Metrics) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := NewLogger("debug", "json", buf)

	r := gin.New()
	r.Use(RequestIDMiddleware(logger), RequestLoggingMiddleware(metrics), RecoverMiddleware())
	r.GET("/ok", func(c *gin.Context) {
		LoggerFrom(c.Request.Context()).Info("inside_handler")
		c.String(http.StatusOK, RequestIDFrom(c.Request.Context()))
	})
	r.GET("/boom", func(c *gin.Context) {
		panic("boom")
	})
	return r
}

func TestRequestIDMiddleware(t *testing.T) {
	var buf bytes.Buffer
	r := newTestEngine(&buf, nil)

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-123", rec.Body.String())
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
	assert.Contains(t, buf.String(), `"request_id":"req-123"`)
	assert.Contains(t, buf.String(), "inside_handler")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	assert.Equal(t, rec.Header().Get(RequestIDHeader), rec.Body.String())
}

func TestRecoverMiddleware(t *testing.T) {
	var buf bytes.Buffer
	metrics := NewMetrics()
	r := newTestEngine(&buf, metrics)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"Internal server error"}`, rec.Body.String())
	assert.Contains(t, buf.String(), "panic_recovered")
	assert.Contains(t, scrape(t, metrics), `http_requests_total{method="GET",path="/boom",status="500"} 1`)
}

func TestLoggerFromFallsBack(t *testing.T) {
	entry := LoggerFrom(context.Background())
	require.NotNil(t, entry)
	assert.Equal(t, logrus.StandardLogger(), entry.Logger)
	assert.Empty(t, RequestIDFrom(context.Background()))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("nonsense", "text", &buf)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())

	logger.Info("hello")
	assert.True(t, strings.Contains(buf.String(), "msg=hello"))
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Login("success")
	m.Locked()
	m.Issued("access")
	m.Revoked(3)
	m.Rejected("expired")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.Login("failure")
	m.Login("failure")
	m.Locked()
	m.Revoked(2)

	body := scrape(t, m)
	assert.Contains(t, body, `auth_login_attempts_total{outcome="failure"} 2`)
	assert.Contains(t, body, "auth_lockouts_total 1")
	assert.Contains(t, body, "auth_tokens_revoked_total 2")
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}
