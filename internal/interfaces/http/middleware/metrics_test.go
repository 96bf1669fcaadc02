package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newMeterAndReader returns a meter backed by a manual reader so tests can
// collect exactly what the middleware recorded. The global meter provider
// is left alone.
func newMeterAndReader(t *testing.T) (metric.Meter, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
	})

	return mp.Meter("http.server"), reader
}

func metricByName(t *testing.T, reader *sdkmetric.ManualReader, name string) *metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// requestCounter returns the data points of http_server_request_total along
// with their total across all label sets.
func requestCounter(t *testing.T, reader *sdkmetric.ManualReader) ([]metricdata.DataPoint[int64], int64) {
	t.Helper()

	m := metricByName(t, reader, "http_server_request_total")
	require.NotNil(t, m, "http_server_request_total not collected")
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "request counter should collect as Sum[int64]")

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return sum.DataPoints, total
}

func histogramSum(t *testing.T, reader *sdkmetric.ManualReader, name string) float64 {
	t.Helper()

	m := metricByName(t, reader, name)
	require.NotNil(t, m, name+" not collected")
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok, name+" should collect as Histogram[float64]")
	require.Len(t, hist.DataPoints, 1)
	return hist.DataPoints[0].Sum
}

func pointAttr(dp metricdata.DataPoint[int64], key string) (string, bool) {
	for _, attr := range dp.Attributes.ToSlice() {
		if string(attr.Key) == key {
			return attr.Value.AsString(), true
		}
	}
	return "", false
}

func TestDefaultHTTPMetricsConfig(t *testing.T) {
	cfg := DefaultHTTPMetricsConfig()

	assert.Equal(t, "properly-backend", cfg.ServiceName)
	assert.True(t, cfg.Enabled)
	assert.Nil(t, cfg.MeterProvider)
}

func TestHTTPMetrics_NoopPaths(t *testing.T) {
	gin.SetMode(gin.TestMode)

	serve := func(mw gin.HandlerFunc) *httptest.ResponseRecorder {
		router := gin.New()
		router.Use(mw)
		router.GET("/api/v1/owner-statements", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"summaries": []string{}})
		})
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/owner-statements", nil)
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("disabled config serves without recording", func(t *testing.T) {
		w := serve(HTTPMetrics(HTTPMetricsConfig{Enabled: false}))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("nil meter provider serves without recording", func(t *testing.T) {
		w := serve(HTTPMetrics(HTTPMetricsConfig{Enabled: true, MeterProvider: nil}))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("disabled meter variant serves without recording", func(t *testing.T) {
		meter, reader := newMeterAndReader(t)
		w := serve(HTTPMetricsWithMeter(meter, false))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Nil(t, metricByName(t, reader, "http_server_request_total"))
	})
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("counts repeated requests under one label set", func(t *testing.T) {
		meter, reader := newMeterAndReader(t)
		router := gin.New()
		router.Use(HTTPMetricsWithMeter(meter, true))
		router.GET("/api/v1/owner-statements", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"summaries": []string{}})
		})

		for i := 0; i < 3; i++ {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/api/v1/owner-statements", nil)
			router.ServeHTTP(w, req)
			require.Equal(t, http.StatusOK, w.Code)
		}

		points, total := requestCounter(t, reader)
		require.Len(t, points, 1)
		assert.Equal(t, int64(3), total)
	})

	t.Run("splits label sets by method, route, and status", func(t *testing.T) {
		meter, reader := newMeterAndReader(t)
		router := gin.New()
		router.Use(HTTPMetricsWithMeter(meter, true))
		router.GET("/api/v1/owner-statements", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"summaries": []string{}})
		})
		router.GET("/api/v1/owner-statements/:id", func(c *gin.Context) {
			c.JSON(http.StatusNotFound, gin.H{"error": "statement not found"})
		})
		router.POST("/api/v1/owner-statements", func(c *gin.Context) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "totals drifted"})
		})

		requests := []struct{ method, path string }{
			{http.MethodGet, "/api/v1/owner-statements"},
			{http.MethodGet, "/api/v1/owner-statements"},
			{http.MethodGet, "/api/v1/owner-statements/missing"},
			{http.MethodPost, "/api/v1/owner-statements"},
		}
		for _, r := range requests {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(r.method, r.path, nil)
			router.ServeHTTP(w, req)
		}

		points, total := requestCounter(t, reader)
		assert.Equal(t, int64(4), total)
		assert.Len(t, points, 3)
	})

	t.Run("records handler latency", func(t *testing.T) {
		meter, reader := newMeterAndReader(t)
		router := gin.New()
		router.Use(HTTPMetricsWithMeter(meter, true))
		router.POST("/api/v1/owner-statements/batch", func(c *gin.Context) {
			time.Sleep(50 * time.Millisecond)
			c.JSON(http.StatusOK, gin.H{"created": 0})
		})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/api/v1/owner-statements/batch", nil)
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		sum := histogramSum(t, reader, "http_server_request_duration_seconds")
		assert.Greater(t, sum, 0.05)
	})

	t.Run("records request and response body sizes", func(t *testing.T) {
		meter, reader := newMeterAndReader(t)
		router := gin.New()
		router.Use(HTTPMetricsWithMeter(meter, true))
		router.POST("/api/v1/owner-statements", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"id": "st-1", "grand_total": "1520.75"})
		})

		body := strings.NewReader(`{"property_id":"p-1","statement_month":"2026-06"}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/api/v1/owner-statements", body)
		req.Header.Set("Content-Type", "application/json")
		req.ContentLength = int64(body.Len())
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		assert.Greater(t, histogramSum(t, reader, "http_server_request_size_bytes"), float64(0))
		assert.Greater(t, histogramSum(t, reader, "http_server_response_size_bytes"), float64(0))
	})

	t.Run("active requests settle back to zero", func(t *testing.T) {
		meter, reader := newMeterAndReader(t)
		router := gin.New()
		router.Use(HTTPMetricsWithMeter(meter, true))
		router.GET("/api/v1/owner-statements", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"summaries": []string{}})
		})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/owner-statements", nil)
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		m := metricByName(t, reader, "http_server_active_requests")
		require.NotNil(t, m, "http_server_active_requests not collected")
		sum, ok := m.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		if len(sum.DataPoints) > 0 {
			assert.Equal(t, int64(0), sum.DataPoints[0].Value)
		}
	})

	t.Run("labels the counter with the org claim", func(t *testing.T) {
		meter, reader := newMeterAndReader(t)
		router := gin.New()
		router.Use(func(c *gin.Context) {
			c.Set(JWTOrgIDKey, "org-123")
			c.Next()
		})
		router.Use(HTTPMetricsWithMeter(meter, true))
		router.GET("/api/v1/owner-statements", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"summaries": []string{}})
		})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/owner-statements", nil)
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		points, _ := requestCounter(t, reader)
		require.Len(t, points, 1)
		orgID, ok := pointAttr(points[0], "org_id")
		require.True(t, ok, "org_id label missing")
		assert.Equal(t, "org-123", orgID)
	})

	t.Run("collapses concrete paths into the route pattern", func(t *testing.T) {
		meter, reader := newMeterAndReader(t)
		router := gin.New()
		router.Use(HTTPMetricsWithMeter(meter, true))
		router.GET("/api/v1/owner-statements/:id", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
		})

		// distinct ids must not fan out into distinct label sets
		for _, id := range []string{"1", "2", "abc", "xyz"} {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/api/v1/owner-statements/"+id, nil)
			router.ServeHTTP(w, req)
			require.Equal(t, http.StatusOK, w.Code)
		}

		points, total := requestCounter(t, reader)
		require.Len(t, points, 1)
		assert.Equal(t, int64(4), total)

		route, ok := pointAttr(points[0], "http.route")
		require.True(t, ok, "http.route label missing")
		assert.Equal(t, "/api/v1/owner-statements/:id", route)
	})
}

func TestGetRoutePattern(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("matched routes report their pattern", func(t *testing.T) {
		router := gin.New()
		router.GET("/api/v1/owner-statements/:id", func(c *gin.Context) {
			c.String(http.StatusOK, getRoutePattern(c))
		})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/owner-statements/123", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, "/api/v1/owner-statements/:id", w.Body.String())
	})

	t.Run("unmatched routes collapse to unknown", func(t *testing.T) {
		router := gin.New()
		router.Use(func(c *gin.Context) {
			c.String(http.StatusNotFound, getRoutePattern(c))
			c.Abort()
		})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/nonexistent", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, "unknown", w.Body.String())
	})
}

func TestGetRequestSize(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name          string
		contentLength int64
		want          int64
	}{
		{"declared length", 100, 100},
		{"zero length", 0, 0},
		{"unknown length", -1, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/owner-statements", nil)
			c.Request.ContentLength = tc.contentLength

			assert.Equal(t, tc.want, getRequestSize(c))
		})
	}
}

func TestGetOrgIDFromContext(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name  string
		value interface{}
		want  string
	}{
		{"string claim", "org-123", "org-123"},
		{"empty claim", "", ""},
		{"absent claim", nil, ""},
		{"non-string claim", 123, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			if tc.value != nil {
				c.Set(JWTOrgIDKey, tc.value)
			}

			assert.Equal(t, tc.want, getOrgIDFromContext(c))
		})
	}
}

func TestHTTPMetricsStatusGroup(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{200, "2xx"}, {201, "2xx"}, {299, "2xx"},
		{300, "3xx"}, {399, "3xx"},
		{400, "4xx"}, {404, "4xx"}, {499, "4xx"},
		{500, "5xx"}, {503, "5xx"}, {599, "5xx"},
		// open-ended upper class
		{600, "5xx"},
		{100, "other"}, {199, "other"}, {0, "other"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, HTTPMetricsStatusGroup(tc.status), "status %d", tc.status)
	}
}

func TestParseStatusCode(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"200", 200},
		{"404", 404},
		{"500", 500},
		{"invalid", 0},
		{"", 0},
		{"12.34", 0},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, ParseStatusCode(tc.input), "input %q", tc.input)
	}
}

func TestHTTPMetricsResponseWriter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	rw := &HTTPMetricsResponseWriter{ResponseWriter: ctx.Writer}

	n, err := rw.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 5, rw.BytesWritten())

	n, err = rw.Write([]byte(" world"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, 11, rw.BytesWritten())
}
