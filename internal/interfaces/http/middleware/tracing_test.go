package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

// setupTestTracer swaps the global tracer provider for a recording one and
// restores the original when the test finishes.
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})

	return sr
}

// tracedRouter builds a router that serves a statement listing route behind
// the given middleware chain.
func tracedRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(handlers...)
	router.GET("/api/v1/owner-statements", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"summaries": []string{}})
	})
	return router
}

func listStatements(router *gin.Engine, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/owner-statements", nil)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	router.ServeHTTP(w, req)
	return w
}

func findSpan(sr *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	for _, span := range sr.Ended() {
		if span.Name() == name {
			return span
		}
	}
	return nil
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (string, bool) {
	for _, attr := range span.Attributes() {
		if string(attr.Key) == key {
			return attr.Value.AsString(), true
		}
	}
	return "", false
}

func TestDefaultTracingConfig(t *testing.T) {
	cfg := DefaultTracingConfig()

	assert.Equal(t, "properly-backend", cfg.ServiceName)
	assert.True(t, cfg.Enabled)
}

func TestTracingMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("disabled config passes requests through untouched", func(t *testing.T) {
		sr := setupTestTracer(t)
		router := tracedRouter(TracingWithConfig(TracingConfig{Enabled: false, ServiceName: "statements-api"}))

		w := listStatements(router, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Nil(t, findSpan(sr, "GET /api/v1/owner-statements"))
	})

	t.Run("enabled config records a span named after the route", func(t *testing.T) {
		sr := setupTestTracer(t)
		router := tracedRouter(TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "statements-api"}))

		w := listStatements(router, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotNil(t, findSpan(sr, "GET /api/v1/owner-statements"))
	})

	t.Run("default constructor traces", func(t *testing.T) {
		sr := setupTestTracer(t)
		router := tracedRouter(Tracing())

		w := listStatements(router, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, sr.Ended())
	})
}

func TestTracingAttributeInjector(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tracingChain := func(extra ...gin.HandlerFunc) []gin.HandlerFunc {
		chain := []gin.HandlerFunc{TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "statements-api"})}
		chain = append(chain, extra...)
		return append(chain, TracingAttributeInjector())
	}

	t.Run("request id lands on the span", func(t *testing.T) {
		sr := setupTestTracer(t)
		router := tracedRouter(tracingChain(RequestID())...)

		listStatements(router, map[string]string{"X-Request-ID": "req-reconcile-42"})

		span := findSpan(sr, "GET /api/v1/owner-statements")
		require.NotNil(t, span)
		value, ok := spanAttr(span, "request_id")
		require.True(t, ok, "request_id attribute missing")
		assert.Equal(t, "req-reconcile-42", value)
	})

	t.Run("identity claims land on the span", func(t *testing.T) {
		sr := setupTestTracer(t)
		claims := func(c *gin.Context) {
			c.Set(JWTUserIDKey, "user-123")
			c.Set(JWTOrgIDKey, "org-456")
			c.Next()
		}
		router := tracedRouter(tracingChain(claims)...)

		listStatements(router, nil)

		span := findSpan(sr, "GET /api/v1/owner-statements")
		require.NotNil(t, span)
		userID, _ := spanAttr(span, "user_id")
		orgID, _ := spanAttr(span, "org_id")
		assert.Equal(t, "user-123", userID)
		assert.Equal(t, "org-456", orgID)
	})

	t.Run("org header is accepted when it is a uuid", func(t *testing.T) {
		sr := setupTestTracer(t)
		router := tracedRouter(tracingChain()...)

		listStatements(router, map[string]string{"X-Org-ID": "12345678-1234-1234-1234-123456789abc"})

		span := findSpan(sr, "GET /api/v1/owner-statements")
		require.NotNil(t, span)
		orgID, ok := spanAttr(span, "org_id")
		require.True(t, ok, "org_id attribute missing")
		assert.Equal(t, "12345678-1234-1234-1234-123456789abc", orgID)
	})

	t.Run("without a recording span it is a no-op", func(t *testing.T) {
		original := otel.GetTracerProvider()
		otel.SetTracerProvider(noop.NewTracerProvider())
		t.Cleanup(func() { otel.SetTracerProvider(original) })
		router := tracedRouter(TracingAttributeInjector())

		w := listStatements(router, nil)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestSpanErrorMarker(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name            string
		status          int
		wantError       bool
		wantDescription string
	}{
		{name: "not found", status: http.StatusNotFound, wantError: true, wantDescription: "Not Found"},
		{name: "unauthorized", status: http.StatusUnauthorized, wantError: true, wantDescription: "Unauthorized"},
		{name: "forbidden", status: http.StatusForbidden, wantError: true, wantDescription: "Forbidden"},
		{name: "generic client error", status: http.StatusBadRequest, wantError: true, wantDescription: "Client Error"},
		// otelgin marks 5xx itself after the marker runs, so the
		// description is not asserted here.
		{name: "server error", status: http.StatusInternalServerError, wantError: true},
		{name: "success stays unset", status: http.StatusOK, wantError: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sr := setupTestTracer(t)
			router := gin.New()
			router.Use(TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "statements-api"}))
			router.Use(SpanErrorMarker())
			router.GET("/api/v1/owner-statements/:id", func(c *gin.Context) {
				c.JSON(tc.status, gin.H{"status": tc.status})
			})

			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/api/v1/owner-statements/abc", nil)
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)

			span := findSpan(sr, "GET /api/v1/owner-statements/:id")
			require.NotNil(t, span)
			if !tc.wantError {
				assert.NotEqual(t, codes.Error, span.Status().Code)
				return
			}
			assert.Equal(t, codes.Error, span.Status().Code)
			if tc.wantDescription != "" {
				assert.Equal(t, tc.wantDescription, span.Status().Description)
			}
		})
	}

	t.Run("without a recording span it is a no-op", func(t *testing.T) {
		original := otel.GetTracerProvider()
		otel.SetTracerProvider(noop.NewTracerProvider())
		t.Cleanup(func() { otel.SetTracerProvider(original) })
		router := gin.New()
		router.Use(SpanErrorMarker())
		router.GET("/api/v1/owner-statements", func(c *gin.Context) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
		})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/owner-statements", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestRequestMetadataLookups(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// The lookups only need a gin context, not a full router.
	newCtx := func(headers map[string]string) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/owner-statements", nil)
		for key, value := range headers {
			c.Request.Header.Set(key, value)
		}
		return c
	}

	t.Run("request id prefers the context over the header", func(t *testing.T) {
		c := newCtx(map[string]string{"X-Request-ID": "from-header"})
		c.Set("request_id", "from-context")

		assert.Equal(t, "from-context", getRequestID(c))
	})

	t.Run("request id falls back to the header", func(t *testing.T) {
		c := newCtx(map[string]string{"X-Request-ID": "from-header"})

		assert.Equal(t, "from-header", getRequestID(c))
	})

	t.Run("oversized request id headers are truncated", func(t *testing.T) {
		c := newCtx(map[string]string{"X-Request-ID": strings.Repeat("x", 300)})

		assert.Len(t, getRequestID(c), MaxRequestIDLength)
	})

	t.Run("org id prefers claims over the header", func(t *testing.T) {
		c := newCtx(map[string]string{"X-Org-ID": "12345678-1234-1234-1234-123456789abc"})
		c.Set(JWTOrgIDKey, "org-from-claims")

		assert.Equal(t, "org-from-claims", getOrgID(c))
	})

	t.Run("org id falls back to a uuid header", func(t *testing.T) {
		c := newCtx(map[string]string{"X-Org-ID": "12345678-1234-1234-1234-123456789abc"})

		assert.Equal(t, "12345678-1234-1234-1234-123456789abc", getOrgID(c))
	})

	t.Run("non-uuid org headers are dropped", func(t *testing.T) {
		c := newCtx(map[string]string{"X-Org-ID": "statements'; DROP TABLE spans;--"})

		assert.Empty(t, getOrgID(c))
	})

	t.Run("user id comes only from claims", func(t *testing.T) {
		c := newCtx(nil)
		assert.Empty(t, getUserID(c))

		c.Set(JWTUserIDKey, "user-789")
		assert.Equal(t, "user-789", getUserID(c))
	})
}

func TestIsValidOrgID(t *testing.T) {
	tests := []struct {
		name  string
		orgID string
		valid bool
	}{
		{"lowercase uuid", "12345678-1234-1234-1234-123456789abc", true},
		{"uppercase uuid", "12345678-1234-1234-1234-123456789ABC", true},
		{"mixed case uuid", "12345678-1234-1234-1234-123456789AbC", true},
		{"truncated", "12345678-1234-1234", false},
		{"no dashes", "12345678123412341234123456789abc", false},
		{"special characters", "12345678-1234-1234-1234-123456789<>!", false},
		{"script injection", "<script>alert(1)</script>", false},
		{"empty", "", false},
		{"embedded space", "12345678-1234 -1234-1234-123456789abc", false},
		{"longer than the cap", "12345678-1234-1234-1234-123456789abc" + strings.Repeat("a", 100), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.valid, isValidOrgID(tc.orgID))
		})
	}
}
