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
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func newTracedRouter(cfg TracingConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Tracing(cfg), SpanAnnotator())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/ledger/accounts/:id", func(c *gin.Context) {
		switch c.Param("id") {
		case "missing":
			c.Status(http.StatusNotFound)
		case "duplicate":
			c.Status(http.StatusConflict)
		case "broken":
			c.Status(http.StatusInternalServerError)
		default:
			c.Status(http.StatusOK)
		}
	})
	return r
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracing_SpanPerRoute(t *testing.T) {
	sr := setupTestTracer(t)
	r := newTracedRouter(TracingConfig{ServiceName: "ledger", Enabled: true})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger/accounts/a1", nil)
	req.Header.Set(RequestIDKey, "req-42")
	req.Header.Set(UserIDHeader, "alice@example.com")
	r.ServeHTTP(httptest.NewRecorder(), req)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, trace.SpanKindServer, span.SpanKind())
	assert.Contains(t, span.Name(), "/api/v1/ledger/accounts/:id")
	assert.NotEqual(t, codes.Error, span.Status().Code)

	attrs := spanAttrs(span)
	assert.Equal(t, "req-42", attrs[attrRequestID].AsString())
	assert.Equal(t, "alice@example.com", attrs[attrUserID].AsString())
}

func TestTracing_SkipPaths(t *testing.T) {
	sr := setupTestTracer(t)
	r := newTracedRouter(TracingConfig{ServiceName: "ledger", Enabled: true, SkipPaths: []string{"/health"}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sr.Ended())
}

func TestTracing_Disabled(t *testing.T) {
	sr := setupTestTracer(t)
	r := newTracedRouter(TracingConfig{Enabled: false})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ledger/accounts/a1", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sr.Ended())
}

func TestSpanAnnotator_ErrorStatus(t *testing.T) {
	tests := []struct {
		id          string
		status      int
		description string
	}{
		{"missing", http.StatusNotFound, "Not Found"},
		{"duplicate", http.StatusConflict, "Conflict"},
		{"broken", http.StatusInternalServerError, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			sr := setupTestTracer(t)
			r := newTracedRouter(TracingConfig{ServiceName: "ledger", Enabled: true})
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/ledger/accounts/"+tt.id, nil))

			spans := sr.Ended()
			require.Len(t, spans, 1)
			assert.Equal(t, codes.Error, spans[0].Status().Code)
			assert.Equal(t, tt.description, spans[0].Status().Description)
			assert.Equal(t, int64(tt.status), spanAttrs(spans[0])[attrStatusCode].AsInt64())
		})
	}
}

func TestSpanAnnotator_WithoutSpan(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SpanAnnotator())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusDescription(t *testing.T) {
	assert.Equal(t, "Client Error", statusDescription(http.StatusBadRequest))
	assert.Equal(t, "Unprocessable Entity", statusDescription(http.StatusUnprocessableEntity))
	assert.Equal(t, "Internal Server Error", statusDescription(http.StatusServiceUnavailable))
}

func TestRequestIDOf(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("stored id wins", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Request.Header.Set(RequestIDKey, "from-header")
		c.Set(requestIDContextKey, "from-context")
		assert.Equal(t, "from-context", requestIDOf(c))
	})

	t.Run("header is truncated", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Request.Header.Set(RequestIDKey, strings.Repeat("a", MaxRequestIDLength+50))
		assert.Len(t, requestIDOf(c), MaxRequestIDLength)
	})
}

func TestUserIDOf(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for header, want := range map[string]string{
		"":                                     "",
		"bob":                                  "bob",
		"carol.smith@example.com":              "carol.smith@example.com",
		"mallory<script>":                      "",
		"eve; drop table":                      "",
		strings.Repeat("u", MaxUserIDLength+1): "",
	} {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			c.Request.Header.Set(UserIDHeader, header)
		}
		assert.Equal(t, want, userIDOf(c), "header %q", header)
	}
}
