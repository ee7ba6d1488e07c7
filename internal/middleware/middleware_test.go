package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/tmx-importer/internal/logging"
)

func TestPrometheusMiddleware_BasicMetrics(t *testing.T) {
	// Отдельный реестр для изоляции тестов
	registry := prometheus.NewRegistry()

	gin.SetMode(gin.TestMode)
	r := gin.New()

	promMw := NewPrometheusMiddleware("test", registry, registry)
	r.Use(promMw.Handler())

	r.GET("/test", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })
	r.GET("/error", func(c *gin.Context) { c.JSON(500, gin.H{"error": "test error"}) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
	assert.Equal(t, 200, w.Code)

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest("GET", "/error", nil))
	assert.Equal(t, 500, w2.Code)

	metricFamilies, err := registry.Gather()
	require.NoError(t, err)

	var durationFound, errorsFound bool
	for _, mf := range metricFamilies {
		switch mf.GetName() {
		case "test_http_request_duration_seconds":
			durationFound = true
			assert.Equal(t, "Длительность HTTP-запросов.", mf.GetHelp())
			assert.Len(t, mf.Metric, 2)
		case "test_http_request_errors_total":
			errorsFound = true
			require.Len(t, mf.Metric, 1)
			assert.Equal(t, float64(1), mf.Metric[0].GetCounter().GetValue())
		}
	}

	assert.True(t, durationFound, "Duration metric not found")
	assert.True(t, errorsFound, "Errors metric not found")
}

func TestPrometheusMiddleware_UnmatchedPath(t *testing.T) {
	registry := prometheus.NewRegistry()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewPrometheusMiddleware("unmatched_test", registry, registry).Handler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/no/such/route", nil))
	assert.Equal(t, 404, w.Code)

	metricFamilies, err := registry.Gather()
	require.NoError(t, err)

	var paths []string
	for _, mf := range metricFamilies {
		if mf.GetName() != "unmatched_test_http_request_errors_total" {
			continue
		}
		for _, m := range mf.Metric {
			for _, l := range m.Label {
				if l.GetName() == "path" {
					paths = append(paths, l.GetValue())
				}
			}
		}
	}
	assert.Equal(t, []string{"unmatched"}, paths)
}

func TestPrometheusMiddleware_ErrorCounting(t *testing.T) {
	registry := prometheus.NewRegistry()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewPrometheusMiddleware("error_test", registry, registry).Handler())

	r.GET("/400", func(c *gin.Context) { c.JSON(400, gin.H{"error": "bad request"}) })
	r.GET("/404", func(c *gin.Context) { c.JSON(404, gin.H{"error": "not found"}) })
	r.GET("/422", func(c *gin.Context) { c.JSON(422, gin.H{"error": "unresolved"}) })
	r.GET("/500", func(c *gin.Context) { c.JSON(500, gin.H{"error": "internal error"}) })
	r.GET("/200", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	for _, endpoint := range []string{"/400", "/404", "/422", "/500", "/200", "/200"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", endpoint, nil))
	}

	metricFamilies, err := registry.Gather()
	require.NoError(t, err)

	var totalErrors float64
	for _, mf := range metricFamilies {
		if mf.GetName() == "error_test_http_request_errors_total" {
			for _, metric := range mf.Metric {
				totalErrors += metric.GetCounter().GetValue()
			}
		}
	}

	// 400, 404, 422, 500
	assert.Equal(t, float64(4), totalErrors)
}

func TestPrometheusMiddleware_MetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()

	gin.SetMode(gin.TestMode)
	r := gin.New()

	promMw := NewPrometheusMiddleware("endpoint_test", registry, registry)
	r.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(r)

	r.GET("/api/test", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, httptest.NewRequest("GET", "/api/test", nil))
	assert.Equal(t, 200, w1.Code)

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, w2.Code)
	assert.Contains(t, w2.Header().Get("Content-Type"), "text/plain")
	body := w2.Body.String()
	assert.Contains(t, body, "# HELP")
	assert.Contains(t, body, "endpoint_test_http_request_duration_seconds")
}

func TestRequestLogger_TraceID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	var buf bytes.Buffer
	r.Use(NewRequestLogger(logging.NewWriterLogger("api", &buf, logging.DEBUG)).Handler())

	var capturedTraceID string
	r.GET("/test", func(c *gin.Context) {
		traceID, exists := c.Get(TraceIDKey)
		if exists {
			capturedTraceID = traceID.(string)
		}
		c.JSON(200, gin.H{"trace_id": capturedTraceID})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, 200, w.Code)
	require.NotEmpty(t, capturedTraceID, "trace_id should be set in context")
	assert.Equal(t, capturedTraceID, w.Header().Get("X-Trace-Id"))
	assert.Contains(t, w.Body.String(), capturedTraceID)
	assert.Contains(t, buf.String(), "trace="+capturedTraceID)
}

func TestRequestLogger_ErrorLevelForServerErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	var buf bytes.Buffer
	r.Use(NewRequestLogger(logging.NewWriterLogger("api", &buf, logging.INFO)).Handler())
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/boom", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/ok", nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[ERROR]")
	assert.Contains(t, lines[0], "/boom 500")
	assert.Contains(t, lines[1], "[INFO]")
}

// BenchmarkPrometheusMiddleware измеряет overhead middleware
func BenchmarkPrometheusMiddleware(b *testing.B) {
	registry := prometheus.NewRegistry()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(NewPrometheusMiddleware("bench", registry, registry).Handler())
	r.GET("/bench", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/bench", nil))
		}
	})
}
