package middleware

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// MaxRequestIDLength caps header-supplied request ids recorded on spans
	MaxRequestIDLength = 128
	// MaxUserIDLength caps the acting user recorded on spans
	MaxUserIDLength = 100

	// UserIDHeader carries the acting user for audit fields
	UserIDHeader = "X-User-ID"
)

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9@._-]+$`)

// Span attributes added by SpanAnnotator.
var (
	attrRequestID  = attribute.Key("request_id")
	attrUserID     = attribute.Key("user_id")
	attrStatusCode = attribute.Key("http.status_code")
)

// TracingConfig configures the server span middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
	// SkipPaths are served without a span, e.g. the health check.
	SkipPaths []string
}

// Tracing starts a server span per request using otelgin. Spans are named
// after the matched route pattern, not the raw path.
func Tracing(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return otelgin.Middleware(cfg.ServiceName,
		otelgin.WithFilter(func(r *http.Request) bool {
			_, skipped := skip[r.URL.Path]
			return !skipped
		}),
	)
}

// SpanAnnotator tags the active server span with the request and user ids and,
// once the handler chain has run, marks 4xx and 5xx responses as errors.
// It must run inside Tracing.
func SpanAnnotator() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}

		if id := requestIDOf(c); id != "" {
			span.SetAttributes(attrRequestID.String(id))
		}
		if user := userIDOf(c); user != "" {
			span.SetAttributes(attrUserID.String(user))
		}

		c.Next()

		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}
		span.SetAttributes(attrStatusCode.Int(status))
		span.SetStatus(codes.Error, statusDescription(status))
	}
}

func statusDescription(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "Internal Server Error"
	case status == http.StatusNotFound:
		return "Not Found"
	case status == http.StatusConflict:
		return "Conflict"
	case status == http.StatusUnprocessableEntity:
		return "Unprocessable Entity"
	}
	return "Client Error"
}

// requestIDOf prefers the id stored by RequestID and falls back to a truncated header.
func requestIDOf(c *gin.Context) string {
	if id := c.GetString(requestIDContextKey); id != "" {
		return id
	}
	id := c.GetHeader(RequestIDKey)
	if len(id) > MaxRequestIDLength {
		id = id[:MaxRequestIDLength]
	}
	return id
}

// userIDOf returns the X-User-ID header, or "" when it is too long or malformed.
func userIDOf(c *gin.Context) string {
	user := c.GetHeader(UserIDHeader)
	if len(user) > MaxUserIDLength || !userIDPattern.MatchString(user) {
		return ""
	}
	return user
}
