// Package middleware provides HTTP middleware for the sync service.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// MaxRequestIDLength bounds client supplied request ids
	MaxRequestIDLength = 128
	// MaxTopicLength bounds webhook topics copied into spans
	MaxTopicLength = 64

	// tenantParam is the route parameter carrying the tenant id
	tenantParam = "tenantId"
	// topicHeader names the webhook topic on store deliveries
	topicHeader = "X-Shopify-Topic"
)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
	// SkipPaths are not traced (health checks)
	SkipPaths []string
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "store-sync",
		Enabled:     true,
		SkipPaths:   []string{"/health"},
	}
}

// Tracing starts a server span per request with otelgin. Span names follow
// "METHOD route" (for example "POST /webhook/:tenantId").
func Tracing(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return otelgin.Middleware(cfg.ServiceName,
		otelgin.WithGinFilter(func(c *gin.Context) bool {
			_, skipped := skip[c.Request.URL.Path]
			return !skipped
		}),
	)
}

// SpanAnnotator adds request, tenant and webhook attributes to the server
// span and marks it as failed on 4xx/5xx responses. Install it after Tracing.
func SpanAnnotator() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}

		if requestID := getRequestID(c); requestID != "" {
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		if tenantID := getTenantID(c); tenantID != "" {
			span.SetAttributes(attribute.String("tenant_id", tenantID))
		}
		if topic := c.GetHeader(topicHeader); topic != "" && len(topic) <= MaxTopicLength {
			span.SetAttributes(attribute.String("webhook.topic", topic))
		}

		c.Next()

		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, "Internal Server Error")
			return
		}
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}

// getRequestID returns the id set by RequestID, falling back to a bounded
// copy of the header.
func getRequestID(c *gin.Context) string {
	if id := c.GetString(requestIDContextKey); id != "" {
		return id
	}
	id := c.GetHeader(RequestIDHeader)
	if len(id) > MaxRequestIDLength {
		return id[:MaxRequestIDLength]
	}
	return id
}

// getTenantID returns the :tenantId route parameter when it is a UUID.
// Anything else is dropped so arbitrary path segments never reach span or
// metric attributes.
func getTenantID(c *gin.Context) string {
	raw := c.Param(tenantParam)
	if raw == "" {
		return ""
	}
	id, err := uuid.Parse(raw)
	if err != nil || !strings.EqualFold(id.String(), raw) {
		return ""
	}
	return raw
}
