package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/blackt666/immoxx--sub004/monitor"
	"github.com/blackt666/immoxx--sub004/ratelimit"
	"github.com/blackt666/immoxx--sub004/security"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []security.Event
}

func (f *fakeEmitter) Emit(_ context.Context, e security.Event) security.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return e
}

func (f *fakeEmitter) all() []security.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]security.Event(nil), f.events...)
}

func serve(r http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "203.0.113.9:4711"
	req.Header.Set("User-Agent", "test-agent")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func newLimiter() *ratelimit.Limiter {
	return ratelimit.New(map[ratelimit.Category]ratelimit.Rule{
		ratelimit.CategoryLogin:   {Limit: 2, Window: 15 * time.Minute, RefundSuccess: true},
		ratelimit.CategoryGeneral: {Limit: 3, Window: 15 * time.Minute},
	}, nil)
}

var classifier = ratelimit.Classifier{LoginPaths: []string{"/api/login"}, AdminPrefixes: []string{"/api/admin"}}

func TestRateLimitRejectsWithHeadersAndEvent(t *testing.T) {
	events := &fakeEmitter{}
	metrics := monitor.NewMetrics()
	r := gin.New()
	r.Use(RateLimit(newLimiter(), classifier, events, metrics))
	r.GET("/listings", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	for i := 0; i < 3; i++ {
		w := serve(r, http.MethodGet, "/listings")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
	}

	w := serve(r, http.MethodGet, "/listings")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	assert.Equal(t, "900", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), `"retry_after":900`)

	got := events.all()
	require.Len(t, got, 1)
	assert.Equal(t, security.EventRateLimitExceeded, got[0].Type)
	assert.Equal(t, security.SeverityMedium, got[0].Severity)
	assert.Equal(t, "203.0.113.9", got[0].IP)
	assert.Equal(t, "general", got[0].Details["category"])
	count, err := testutil.GatherAndCount(metrics.Registry(), "immoxx_gateway_ratelimit_rejected_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLoginOnlyCountsFailures(t *testing.T) {
	events := &fakeEmitter{}
	r := gin.New()
	r.Use(RateLimit(newLimiter(), classifier, events, nil))

	status := http.StatusOK
	r.POST("/api/login", func(c *gin.Context) { c.Status(status) })

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/api/login").Code)
	}

	status = http.StatusUnauthorized
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/api/login").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/api/login").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodPost, "/api/login").Code)

	got := events.all()
	require.Len(t, got, 1)
	assert.Equal(t, security.SeverityHigh, got[0].Severity)
}

func TestRecoveryEmitsPanicEvent(t *testing.T) {
	events := &fakeEmitter{}
	r := gin.New()
	r.Use(RequestID(), Recovery(zap.NewNop(), events))
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := serve(r, http.MethodGet, "/boom")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())

	got := events.all()
	require.Len(t, got, 1)
	assert.Equal(t, security.EventPanicRecovered, got[0].Type)
	assert.Equal(t, security.SeverityHigh, got[0].Severity)
	assert.Equal(t, "kaboom", got[0].Details["panic"])
	assert.Equal(t, w.Header().Get(RequestIDHeader), got[0].Details["request_id"])
}

func TestRequestIDKeepsCallerValue(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	w := serve(r, http.MethodGet, "/")
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := serve(r, http.MethodGet, "/")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", w.Header().Get("X-Frame-Options"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestPerformanceRecordsRouteAndLogsSlowRequests(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	mon := monitor.New(10, time.Millisecond)
	metrics := monitor.NewMetrics()

	r := gin.New()
	r.Use(Performance(mon, metrics, zap.New(core)))
	r.GET("/api/items/:id", func(c *gin.Context) {
		time.Sleep(5 * time.Millisecond)
		c.Status(http.StatusOK)
	})

	serve(r, http.MethodGet, "/api/items/42")
	serve(r, http.MethodGet, "/unknown/123")

	recent := mon.Recent(0)
	require.Len(t, recent, 2)
	assert.Equal(t, "/unknown/:id", recent[0].Route)
	assert.Equal(t, http.StatusNotFound, recent[0].Status)
	assert.Equal(t, "/api/items/:id", recent[1].Route)

	assert.GreaterOrEqual(t, logs.FilterMessage("Slow request").Len(), 1)

	count, err := testutil.GatherAndCount(metrics.Registry(), "immoxx_gateway_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPerformanceKeepsProxiedRouteLabelsBounded(t *testing.T) {
	mon := monitor.New(100, time.Second)
	metrics := monitor.NewMetrics("/api/properties", "/api/admin")

	r := gin.New()
	r.Use(Performance(mon, metrics, zap.NewNop()))
	r.NoRoute(func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 500; i++ {
		serve(r, http.MethodGet, fmt.Sprintf("/x%dy", i))
		serve(r, http.MethodGet, fmt.Sprintf("/api/properties/villa-%d-am-see", i))
	}
	req := httptest.NewRequest("PROPFIND", "/api/admin/users", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	count, err := testutil.GatherAndCount(metrics.Registry(), "immoxx_gateway_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	assert.Equal(t, float64(500), testutil.ToFloat64(metrics.Requests().WithLabelValues("GET", monitor.ProxyRoute, "200")))
	assert.Equal(t, float64(500), testutil.ToFloat64(metrics.Requests().WithLabelValues("GET", "/api/properties", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Requests().WithLabelValues("OTHER", "/api/admin", "200")))

	// the ring still keeps the detailed path
	assert.Equal(t, "/api/admin/users", mon.Recent(1)[0].Route)
}

func TestRequestLoggerLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := gin.New()
	r.Use(RequestID(), RequestLogger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	serve(r, http.MethodGet, "/ok")
	serve(r, http.MethodGet, "/fail")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.True(t, strings.HasPrefix(entries[1].ContextMap()["path"].(string), "/fail"))
}
