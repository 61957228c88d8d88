package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(registry *Registry) *gin.Engine {
	router := gin.New()
	router.Use(registry.Middleware())
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/fail", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	router.GET("/health", registry.HealthHandler())
	router.GET("/health/ready", registry.ReadinessHandler())
	router.GET("/health/live", registry.LivenessHandler())
	router.GET("/metrics", registry.MetricsHandler())
	return router
}

func serve(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestRegistry_MiddlewareCountsRequests(t *testing.T) {
	registry := NewRegistry()
	router := newTestRouter(registry)

	serve(router, "/ok")
	serve(router, "/ok")
	serve(router, "/fail")

	metrics := registry.GetMetrics()
	if metrics.RequestCount != 3 {
		t.Errorf("Expected 3 requests, got %d", metrics.RequestCount)
	}
	if metrics.ErrorCount != 1 {
		t.Errorf("Expected 1 error, got %d", metrics.ErrorCount)
	}
	if metrics.ActiveRequests != 0 {
		t.Errorf("Expected no active requests, got %d", metrics.ActiveRequests)
	}
	if metrics.Endpoints["GET /ok"] != 2 {
		t.Errorf("Expected 2 calls to GET /ok, got %d", metrics.Endpoints["GET /ok"])
	}
	if metrics.StatusCodes["Not Found"] != 1 {
		t.Errorf("Expected one Not Found status, got %d", metrics.StatusCodes["Not Found"])
	}
}

func TestRegistry_HealthChecksRunOnEveryProbe(t *testing.T) {
	registry := NewRegistry()
	var calls int32
	var failing atomic.Bool
	registry.RegisterHealthCheck("database", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		if failing.Load() {
			return errors.New("connection refused")
		}
		return nil
	})
	router := newTestRouter(registry)

	if w := serve(router, "/health"); w.Code != http.StatusOK {
		t.Fatalf("Expected 200 while healthy, got %d", w.Code)
	}

	failing.Store(true)
	w := serve(router, "/health")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503 once the check fails, got %d", w.Code)
	}

	var body struct {
		Status string                 `json:"status"`
		Checks map[string]HealthCheck `json:"checks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode health body: %v", err)
	}
	if body.Status != "unhealthy" {
		t.Errorf("Expected unhealthy status, got %s", body.Status)
	}
	if body.Checks["database"].Message != "connection refused" {
		t.Errorf("Expected failure message, got %q", body.Checks["database"].Message)
	}

	if w := serve(router, "/health/ready"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected readiness to fail, got %d", w.Code)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("Expected the check to run 3 times, got %d", got)
	}
}

func TestRegistry_LivenessIgnoresChecks(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterHealthCheck("redis", func(ctx context.Context) error {
		return errors.New("down")
	})
	router := newTestRouter(registry)

	if w := serve(router, "/health/live"); w.Code != http.StatusOK {
		t.Errorf("Expected liveness 200, got %d", w.Code)
	}
}

func TestRegistry_MetricsIncludesComponentStats(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterStats("cache", func() map[string]interface{} {
		return map[string]interface{}{"hits": 4}
	})
	router := newTestRouter(registry)

	w := serve(router, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var body struct {
		Components map[string]map[string]interface{} `json:"components"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode metrics body: %v", err)
	}
	if body.Components["cache"]["hits"] != float64(4) {
		t.Errorf("Expected cache stats in metrics, got %v", body.Components)
	}
}
