package middleware

import (
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/storesync/backend/internal/infrastructure/telemetry"
)

func TestDefaultProfilingConfig(t *testing.T) {
	cfg := DefaultProfilingConfig()

	assert.True(t, cfg.Enabled)
	assert.Contains(t, cfg.SkipPaths, "/health")
	assert.Contains(t, cfg.SkipPaths, "/metrics")
	assert.Contains(t, cfg.SkipPathPrefixes, "/debug")
}

func TestProfilingMiddleware_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(ProfilingWithConfig(ProfilingConfig{Enabled: false}))

	var route string
	var ok bool
	r.GET("/api/v1/sync/jobs", func(c *gin.Context) {
		route, ok = pprof.Label(c.Request.Context(), telemetry.ProfilingLabelRoute)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sync/jobs", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, ok)
	assert.Empty(t, route)
}

func TestProfilingMiddleware_LabelsTenantRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tenantID := "12345678-1234-1234-1234-123456789abc"

	r := gin.New()
	r.Use(Profiling())

	labels := map[string]string{}
	r.POST("/api/v1/tenants/:tenantId/sync", func(c *gin.Context) {
		ctx := c.Request.Context()
		for _, key := range []string{
			telemetry.ProfilingLabelMethod,
			telemetry.ProfilingLabelRoute,
			telemetry.ProfilingLabelOperation,
			telemetry.ProfilingLabelTenantID,
		} {
			if v, ok := pprof.Label(ctx, key); ok {
				labels[key] = v
			}
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/tenants/"+tenantID+"/sync", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{
		telemetry.ProfilingLabelMethod:    http.MethodPost,
		telemetry.ProfilingLabelRoute:     "/api/v1/tenants/:tenantId/sync",
		telemetry.ProfilingLabelOperation: "tenants",
		telemetry.ProfilingLabelTenantID:  tenantID,
	}, labels)
}

func TestProfilingMiddleware_SkipPaths(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		path string
	}{
		{"health", "/health"},
		{"metrics", "/metrics"},
		{"debug prefix", "/debug/pprof"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(Profiling())

			labelled := true
			r.GET(tt.path, func(c *gin.Context) {
				_, labelled = pprof.Label(c.Request.Context(), telemetry.ProfilingLabelRoute)
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.False(t, labelled, "skipped path %s should carry no labels", tt.path)
		})
	}
}

func TestProfilingMiddleware_ContextPreserved(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("custom_key", "custom_value")
		c.Next()
	})
	r.Use(Profiling())
	r.GET("/api/v1/sync/jobs", func(c *gin.Context) {
		value, exists := c.Get("custom_key")
		assert.True(t, exists)
		assert.Equal(t, "custom_value", value)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sync/jobs", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestExtractOperationFromRoute(t *testing.T) {
	tests := []struct {
		route    string
		expected string
	}{
		{"/webhook/:tenantId", "webhook"},
		{"/api/v1/tenants/:tenantId/sync", "tenants"},
		{"/api/v1/tenants/:tenantId/webhooks/register", "tenants"},
		{"/api/v1/sync/fleet", "sync"},
		{"/api/v2/sync/jobs/:jobId", "sync"},
		{"/health", "health"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractOperationFromRoute(tt.route))
		})
	}
}

func TestIsVersionSegment(t *testing.T) {
	tests := []struct {
		segment  string
		expected bool
	}{
		{"v1", true},
		{"V2", true},
		{"v10", true},
		{"v", false},
		{"vx", false},
		{"sync", false},
		{"1", false},
	}

	for _, tt := range tests {
		t.Run(tt.segment, func(t *testing.T) {
			assert.Equal(t, tt.expected, isVersionSegment(tt.segment))
		})
	}
}
